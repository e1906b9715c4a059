package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"userManagement/internal/db"
)

type migrateReport struct {
	From    int              `json:"from"`
	To      int              `json:"to"`
	Latest  int              `json:"latest"`
	Applied []migrateApplied `json:"applied"`
}

type migrateApplied struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

func newMigrateCommand(deps commandDeps) *cobra.Command {
	var (
		target     int
		statusOnly bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Example: "  usermgr migrate\n" +
			"  usermgr migrate --to 2\n" +
			"  usermgr --json migrate --status",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(deps, false)
			if err != nil {
				return err
			}
			defer rt.close()

			d, err := db.Connect(rt.cfg.Database.Path)
			if err != nil {
				return mapCommandError(err)
			}
			defer d.Close()

			m := rt.migrator()
			from, err := m.Version(cmd.Context(), d)
			if err != nil {
				return mapCommandError(err)
			}
			report := migrateReport{From: from, To: from, Latest: m.Latest(), Applied: []migrateApplied{}}
			if statusOnly {
				return printMigrateReport(deps, report)
			}

			if target == 0 {
				target = m.Latest()
			}
			if target < 0 || target > m.Latest() {
				return usageErrorf("--to must be between 1 and %d", m.Latest())
			}

			results, runErr := m.MigrateTo(cmd.Context(), d, target)
			for _, r := range results {
				a := migrateApplied{Version: r.Version, Name: r.Name, State: r.State.String()}
				if r.Err != nil {
					a.Error = r.Err.Error()
				}
				report.Applied = append(report.Applied, a)
			}
			if report.To, err = m.Version(cmd.Context(), d); err != nil && runErr == nil {
				runErr = err
			}
			if err := printMigrateReport(deps, report); err != nil {
				return err
			}
			if runErr != nil {
				return &ExitError{Code: ExitCodeMigration, Err: runErr}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "to", 0, "Target schema version (default latest)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only print the current and latest version")
	return cmd
}

func printMigrateReport(deps commandDeps, r migrateReport) error {
	if deps.globals.JSON {
		return printJSON(deps.out, r)
	}
	for _, a := range r.Applied {
		line := fmt.Sprintf("%04d %s %s", a.Version, a.Name, a.State)
		if a.Error != "" {
			line += ": " + a.Error
		}
		if _, err := fmt.Fprintln(deps.out, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(deps.out, "schema version=%d latest=%d\n", r.To, r.Latest)
	return err
}
