package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type globalFlags struct {
	DBPath  string
	JSON    bool
	Verbose bool
}

type commandDeps struct {
	out     io.Writer
	build   BuildInfo
	globals *globalFlags
	// remote is set for the users subcommands only.
	remote *remoteFlags
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &globalFlags{}
	deps := commandDeps{out: out, build: build, globals: globals}

	cmd := &cobra.Command{
		Use:           "usermgr",
		Short:         "Manage, filter and migrate the user directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.PersistentFlags().StringVar(&globals.DBPath, "db", "", "SQLite database path (overrides DB_PATH)")
	cmd.PersistentFlags().BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON")
	cmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "Log to stdout at the configured level")

	cmd.AddCommand(newVersionCommand(deps))
	cmd.AddCommand(newServeCommand(deps))
	cmd.AddCommand(newMigrateCommand(deps))
	cmd.AddCommand(newUsersCommand(deps))
	cmd.AddCommand(newTokenCommand(deps))
	return cmd
}

func newVersionCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.globals.JSON {
				return printJSON(deps.out, deps.build)
			}
			_, err := fmt.Fprintf(deps.out, "version=%s commit=%s build_time=%s\n", deps.build.Version, deps.build.Commit, deps.build.BuildTime)
			return err
		},
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
