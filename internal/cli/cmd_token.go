package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"userManagement/internal/auth"
)

func newTokenCommand(deps commandDeps) *cobra.Command {
	var (
		name string
		kind string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the gRPC API",
		Example: "  usermgr token --name ops --kind admin --ttl 1h\n" +
			"  usermgr token --name dashboard --kind viewer",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(deps, false)
			if err != nil {
				return err
			}
			defer rt.close()

			tok, err := auth.IssueToken(rt.cfg.Auth.JWTSecret, name, kind, ttl)
			if err != nil {
				return usageErrorf("%v", err)
			}
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]string{"token": tok, "kind": kind, "name": name})
			}
			_, err = fmt.Fprintln(deps.out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Principal name (required)")
	cmd.Flags().StringVar(&kind, "kind", auth.KindViewer, "Principal kind: admin or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime, 0 for none")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
