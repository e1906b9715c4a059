package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"userManagement/internal/filter"
	"userManagement/internal/users"
	"userManagement/models"
)

func newUsersCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List, filter and edit users in the local database or on a server",
		Example: "  usermgr users list\n" +
			"  usermgr users --remote localhost:50051 --token $TOKEN filter --first jo",
	}
	rf := &remoteFlags{}
	bindRemoteFlags(cmd, rf)
	deps.remote = rf
	cmd.AddCommand(
		newUsersListCommand(deps),
		newUsersFilterCommand(deps),
		newUsersSearchCommand(deps),
		newUsersGetCommand(deps),
		newUsersAddCommand(deps),
		newUsersUpdateCommand(deps),
		newUsersDeleteCommand(deps),
	)
	return cmd
}

// withService runs fn against the server named by --remote, or else against
// a freshly opened local store.
func withService(cmd *cobra.Command, deps commandDeps, fn func(ctx context.Context, svc userStore) error) error {
	if deps.remote != nil && deps.remote.Addr != "" {
		store, closeConn, err := dialRemote(deps.remote)
		if err != nil {
			return err
		}
		defer closeConn()
		return mapCommandError(fn(cmd.Context(), store))
	}

	rt, err := newRuntime(deps, false)
	if err != nil {
		return err
	}
	defer rt.close()
	svc, err := rt.service(cmd.Context())
	if err != nil {
		return mapCommandError(err)
	}
	return mapCommandError(fn(cmd.Context(), svc))
}

func newUsersListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				list, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return printUsers(deps, list)
			})
		},
	}
}

func newUsersFilterCommand(deps commandDeps) *cobra.Command {
	var c filter.Criteria
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Narrow users by name prefix, email fragment and phone prefix",
		Example: "  usermgr users filter --first jo --email example.com\n" +
			"  usermgr users filter --phone +44",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				list, err := svc.Filter(ctx, c)
				if err != nil {
					return err
				}
				return printUsers(deps, list)
			})
		},
	}
	cmd.Flags().StringVar(&c.FirstName, "first", "", "First name prefix")
	cmd.Flags().StringVar(&c.LastName, "last", "", "Last name prefix")
	cmd.Flags().StringVar(&c.Email, "email", "", "Email fragment")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "Phone prefix")
	return cmd
}

func newUsersSearchCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY",
		Short: "Find users whose first or last name contains QUERY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				list, err := svc.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return printUsers(deps, list)
			})
		},
	}
}

func newUsersGetCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				u, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				return printUser(deps, u)
			})
		},
	}
}

func bindInputFlags(cmd *cobra.Command, in *users.Input) {
	cmd.Flags().StringVar(&in.FirstName, "first", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number, digits with optional leading +")
	cmd.Flags().StringVar(&in.DOB, "dob", "", "Date of birth, yyyy-MM-dd")
	cmd.Flags().StringVar(&in.Address, "address", "", "Postal address")
}

func newUsersAddCommand(deps commandDeps) *cobra.Command {
	var in users.Input
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create a user",
		Example: "  usermgr users add --first Ada --last Lovelace --email ada@example.com --phone +441234567",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				u, err := svc.Create(ctx, in)
				if err != nil {
					return err
				}
				return printUser(deps, u)
			})
		},
	}
	bindInputFlags(cmd, &in)
	return cmd
}

func newUsersUpdateCommand(deps commandDeps) *cobra.Command {
	var in users.Input
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a user; flags not given keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				cur, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				merged := users.Input{
					FirstName: pick(cmd, "first", in.FirstName, cur.FirstName),
					LastName:  pick(cmd, "last", in.LastName, cur.LastName),
					Email:     pick(cmd, "email", in.Email, cur.Email),
					Phone:     pick(cmd, "phone", in.Phone, cur.Phone),
					DOB:       pick(cmd, "dob", in.DOB, cur.DOB),
					Address:   pick(cmd, "address", in.Address, cur.Address),
				}
				u, err := svc.Update(ctx, id, merged)
				if err != nil {
					return err
				}
				return printUser(deps, u)
			})
		},
	}
	bindInputFlags(cmd, &in)
	return cmd
}

func newUsersDeleteCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, deps, func(ctx context.Context, svc userStore) error {
				if err := svc.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(deps.out, "user deleted: %d\n", id)
				return err
			})
		},
	}
}

func pick(cmd *cobra.Command, flag, given, current string) string {
	if cmd.Flags().Changed(flag) {
		return given
	}
	return current
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid user id %q", s)
	}
	return id, nil
}

func printUsers(deps commandDeps, list []*models.User) error {
	if deps.globals.JSON {
		return printJSON(deps.out, list)
	}
	for _, u := range list {
		if err := printUserLine(deps, u); err != nil {
			return err
		}
	}
	return nil
}

func printUser(deps commandDeps, u *models.User) error {
	if deps.globals.JSON {
		return printJSON(deps.out, u)
	}
	return printUserLine(deps, u)
}

func printUserLine(deps commandDeps, u *models.User) error {
	_, err := fmt.Fprintf(deps.out, "id=%d first_name=%q last_name=%q email=%s phone=%s dob=%s address=%q\n",
		u.ID, u.FirstName, u.LastName, u.Email, u.Phone, u.DOB, u.Address)
	return err
}
