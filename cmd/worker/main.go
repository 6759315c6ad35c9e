// Command worker is the job pipeline worker's entrypoint: it wires the
// cobra root command (run/enqueue/track/version/completion) from
// internal/cli.
package main

import (
	"os"

	"github.com/reelvault/worker/internal/cli"
)

// version is stamped at release build time via
// -ldflags "-X main.version=..." and threaded into the version command,
// matching the teacher's cmd/vget-server/main.go build-info wiring.
var version = "dev"

func main() {
	cli.Version = version
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
