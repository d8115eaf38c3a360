package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB // nil on the in-memory engine
	users  user.Repository
	engine *compliance.Engine
	clock  core.Clock
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL - create (or reactivate) an admin; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  sweep - run a compliance sweep over all active officers and residents")
	fmt.Fprintln(cli.out, "  reinstate - reactivate officers whose suspension has ended")
	fmt.Fprintln(cli.out, "  report [-from DATE] [-to DATE] [-xlsx FILE] - print (or export) the compliance audit report")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The admin's full name.")
	addUserUname := addUserCmd.String("username", "", "The admin's username.")
	addUserEmail := addUserCmd.String("email", "", "The admin's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportFrom := reportCmd.String("from", "", "First day of the report (YYYY-MM-DD). Defaults to the start of the week.")
	reportTo := reportCmd.String("to", "", "Day after the report (YYYY-MM-DD). Defaults to a week after -from.")
	reportXLSX := reportCmd.String("xlsx", "", "Export the report to this XLSX file instead of printing it.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, reportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "sweep":
		return cli.sweep()

	case "reinstate":
		return cli.reinstate()

	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		from, err := parseDay(*reportFrom)
		if err != nil {
			return err
		}
		to, err := parseDay(*reportTo)
		if err != nil {
			return err
		}
		return cli.report(from, to, *reportXLSX)

	default:
		cli.printUsage()
		return errHelp
	}
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
