// Package cli implements the ndjson-import command line tool, which runs
// the import engine on a local file or stdin and prints the run summary.
package cli

import (
	"github.com/spf13/cobra"
)

// Version and BuildDate are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/JonMunkholm/ndjson-import/internal/cli.Version=1.2.0"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree:
//
//	ndjson-import
//	├── run [file|-]
//	└── version
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ndjson-import",
		Short: "Stream, group and process NDJSON payload files",
		Long: `ndjson-import reads a newline-delimited JSON stream, groups payload records
by examplePayloadId and hands every group to the processor once the stream
has been read completely. Malformed lines and failing groups are reported in
the summary; only an unreadable stream fails the run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}
