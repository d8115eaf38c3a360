package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/trezcool/neighborguard/core"
	reportsvc "github.com/trezcool/neighborguard/services/report"
)

func (cli *commandLine) sweep() error {
	summary, err := cli.engine.PerformComplianceCheck(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "officers: %d checked, %d warned, %d suspended\n",
		summary.OfficersChecked, summary.OfficersWarned, summary.OfficersSuspended)
	fmt.Fprintf(cli.out, "residents: %d checked, %d reminded, %d suspended\n",
		summary.ResidentsChecked, summary.ResidentsReminded, summary.ResidentsSuspended)
	if summary.Skipped > 0 {
		fmt.Fprintf(cli.out, "skipped: %d\n", summary.Skipped)
	}
	return nil
}

func (cli *commandLine) reinstate() error {
	officers, err := cli.engine.ReinstateExpired(context.Background())
	if err != nil {
		return err
	}
	for _, ofc := range officers {
		fmt.Fprintf(cli.out, "reinstated %s (%s)\n", ofc.Name, ofc.ID)
	}
	fmt.Fprintf(cli.out, "%d officer(s) reinstated\n", len(officers))
	return nil
}

// report prints the audit report for [from, to), or writes it to xlsxPath when set.
func (cli *commandLine) report(from, to time.Time, xlsxPath string) error {
	if from.IsZero() {
		from = core.StartOfWeek(cli.clock.Now())
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 7)
	}
	if !to.After(from) {
		return fmt.Errorf("-to must be after -from")
	}

	rep, err := cli.engine.AuditReport(context.Background(), from, to)
	if err != nil {
		return err
	}

	if xlsxPath != "" {
		content, err := reportsvc.AuditXLSX(rep)
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxPath, content, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "report written to %s\n", xlsxPath)
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "OFFICER\tBADGE\tHOUSES\tSCANS\tRATE\tSTATUS\n")
	for _, row := range rep.Rows {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%d%%\t%s\n",
			row.Name, row.BadgeNumber, row.ScannedHouses, row.AssignedHouses, row.TotalScans, row.ComplianceRate, row.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s to %s: %d compliant, %d non-compliant, %d suspended\n",
		rep.From.Format("2006-01-02"), rep.To.Format("2006-01-02"),
		rep.CompliantOfficers, rep.NonCompliantOfficers, rep.SuspendedOfficers)
	return nil
}
