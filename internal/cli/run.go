package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/ndjson-import/internal/config"
	"github.com/JonMunkholm/ndjson-import/internal/core"
	"github.com/JonMunkholm/ndjson-import/internal/logging"
	"github.com/spf13/cobra"
)

type runOptions struct {
	workers     int
	sentinel    int64
	maxLineSize int
	output      string
	encoding    string
	logLevel    string
	logFormat   string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Import one NDJSON stream and print the run summary",
		Long: `Import one NDJSON stream. With no argument, or "-", the stream is read from
stdin. Compressed files are detected by extension (.gz, .zst, .lz4) unless
--encoding is given.

Flags left unset fall back to the IMPORT_* and LOG_* environment variables
used by the server. The summary goes to stdout and diagnostics to stderr.
The exit status is 1 only when the run aborts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return opts.run(cmd, path)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.workers, "workers", "w", 1, "groups processed in parallel")
	flags.Int64Var(&opts.sentinel, "sentinel", core.DefaultSentinelAmount, "amount that fails a group")
	flags.IntVar(&opts.maxLineSize, "max-line-size", core.DefaultMaxLineSize, "maximum bytes per line")
	flags.StringVarP(&opts.output, "output", "o", "text", "summary format: text, json or yaml")
	flags.StringVar(&opts.encoding, "encoding", "", "content encoding: identity, gzip, zstd or lz4 (default: from extension)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "diagnostics level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "diagnostics format: text or json")

	return cmd
}

// applyEnv fills options the user did not set on the command line from
// the environment configuration.
func (o *runOptions) applyEnv(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if !flags.Changed("workers") {
		o.workers = cfg.Import.GroupWorkers
	}
	if !flags.Changed("sentinel") {
		o.sentinel = cfg.Import.SentinelAmount
	}
	if !flags.Changed("max-line-size") {
		o.maxLineSize = cfg.Import.MaxLineSize
	}
	if !flags.Changed("log-level") && os.Getenv("LOG_LEVEL") != "" {
		o.logLevel = cfg.Logging.Level
	}
	if !flags.Changed("log-format") && os.Getenv("LOG_FORMAT") != "" {
		o.logFormat = cfg.Logging.Format
	}
}

func (o *runOptions) run(cmd *cobra.Command, path string) error {
	render, err := rendererFor(o.output)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.applyEnv(cmd, cfg)

	in, closeIn, err := openInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	defer closeIn()

	encoding := o.encoding
	if encoding == "" {
		encoding = core.EncodingFromPath(path)
	}
	body, err := core.DecodeContent(encoding, in)
	if err != nil {
		return err
	}
	defer body.Close()

	logger := logging.New(cmd.ErrOrStderr(), o.logLevel, o.logFormat).With("source", path)
	engine := core.NewEngine(core.SentinelRule{Amount: o.sentinel},
		core.WithLogger(logger),
		core.WithWorkers(o.workers),
		core.WithMaxLineSize(o.maxLineSize),
		core.WithMaxDiagnostics(cfg.Import.MaxDiagnostics),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	summary, runErr := engine.Run(ctx, body)

	if err := render(cmd.OutOrStdout(), summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("import aborted: %w", runErr)
	}
	return nil
}

// openInput opens path, or returns stdin for "-".
func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
