// Command moc is the modelops contracts toolbox: compute parameter and
// task identities, validate task documents, record trial results, and
// inspect bundle registries and deployment environments.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vsbuffalo/modelops-contracts/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own formatted errors; this catches flag
		// and argument errors cobra reports directly.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
