package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/notification"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
	emailsvc "github.com/trezcool/neighborguard/services/email"
	logsvc "github.com/trezcool/neighborguard/services/logger"
	smssvc "github.com/trezcool/neighborguard/services/sms"
	"github.com/trezcool/neighborguard/storage/database"
	inmemdb "github.com/trezcool/neighborguard/storage/database/inmem"
	sqlxrepos "github.com/trezcool/neighborguard/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	z, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = z.Sync() }()
	logger := logsvc.NewRollbarLogger(z.Named("admin"), conf)

	var (
		db    *sql.DB
		users user.Repository
		scans patrol.Repository
	)
	switch conf.Database.Engine {
	case "memory":
		mem, err := inmemdb.Open()
		errAndDie(logger, err)
		users, scans = inmemdb.NewUserRepository(mem), inmemdb.NewScanRepository(mem)
	default:
		ctx := context.Background()
		errAndDie(logger, database.CreateIfNotExist(ctx, conf))
		sqlxDB, err := database.Open(conf)
		errAndDie(logger, err)
		defer sqlxDB.Close()
		errAndDie(logger, database.Ping(ctx, sqlxDB, 3))
		db = sqlxDB.DB
		users, scans = sqlxrepos.NewUserRepository(sqlxDB), sqlxrepos.NewScanRepository(sqlxDB)
	}

	var (
		emails core.EmailService = emailsvc.NewConsoleService(conf)
		sms    core.SMSService   = smssvc.NewConsoleService(conf)
	)
	if !conf.Debug && conf.SendgridApiKey != "" {
		emails = emailsvc.NewSendgridService(conf)
	}
	if !conf.Debug && conf.SMS.GatewayURL != "" {
		sms = smssvc.NewGatewayService(conf)
	}

	reg := prometheus.NewRegistry()
	th := compliance.ThresholdsFromConfig(conf.Compliance)
	policy, err := compliance.PolicyByName(conf.Compliance.SweepPolicy, th.DefaultTargetScans)
	errAndDie(logger, err)

	// start CLI
	cli := commandLine{
		db:    db,
		users: users,
		clock: core.SystemClock,
		out:   os.Stdout,
		engine: compliance.NewEngine(compliance.Options{
			Users:       users,
			Scans:       scans,
			Sender:      notification.NewSender(emails, sms, logger, reg),
			Clock:       core.SystemClock,
			Logger:      logger,
			Thresholds:  th,
			SweepPolicy: policy,
			AdminEmail:  conf.Compliance.AdminEmail,
			Registerer:  reg,
		}),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
