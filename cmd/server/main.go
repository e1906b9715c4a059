// Command server runs only the API processes, configured from the
// environment. It is the container entrypoint; usermgr carries the rest.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"userManagement/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand(os.Stdout, cli.BuildInfo{Version: version})
	cmd.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		var withExitCode interface{ ExitCode() int }
		if errors.As(err, &withExitCode) {
			os.Exit(withExitCode.ExitCode())
		}
		os.Exit(1)
	}
}
