package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/output"
	"github.com/moondance-labs/netports/internal/pipeline"
	"github.com/moondance-labs/netports/internal/proc"
)

var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

func SetVersionBuildCommitString(v, c, d string) {
	if v != "" {
		version = v
	}
	commit = c
	buildDate = d
}

func versionString() string {
	s := version
	if commit != "" {
		s += " (" + commit
		if buildDate != "" {
			s += ", " + buildDate
		}
		s += ")"
	}
	return s
}

type openFunc func(root string) (proc.FS, error)

func openLive(root string) (proc.FS, error) {
	fs, err := pipeline.OpenProc(root)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// env is the per-invocation state the commands share.
type env struct {
	stdout io.Writer
	stderr io.Writer
	open   openFunc

	started bool
	cfg     Config
	log     *zap.Logger
	fs      proc.FS
	printer *output.Printer
}

func (e *env) session() *pipeline.Session {
	return pipeline.NewSession(e.fs, pipeline.SessionConfig{Logger: e.log, Concurrency: e.cfg.Concurrency})
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	e.started = true
	e.cfg = cfg
	e.log = newLogger(e.stderr, cfg.Verbose)

	if e.fs, err = e.open(cfg.ProcRoot); err != nil {
		return err
	}
	e.printer = output.NewPrinter(e.stdout, e.stderr, cfg.JSON, !cfg.NoColor)
	e.log.Debug("config", zap.String("procRoot", cfg.ProcRoot), zap.Int("concurrency", cfg.Concurrency), zap.Bool("json", cfg.JSON))
	return nil
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "netports",
		Short:         "Inspect TCP listeners from /proc to find SO_REUSEPORT port conflicts",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		Example: `  netports check-conflicts --all
  netports by-pid --names "tanssi-node,tanssi-relay,polkadot"
  netports by-port -p 30335
  netports probe-reuseport -p 30335
  netports connections-between --pids "123,456,789"`,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return pipeline.AsUsage(err)
	})
	bindGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newByPortCmd(e),
		newByPIDCmd(e),
		newCheckConflictsCmd(e),
		newProbeCmd(e),
		newConnectionsCmd(e),
		newWatchCmd(e),
	)
	return root
}

// Execute runs the CLI and exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, openLive)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open openFunc) int {
	e := &env{stdout: stdout, stderr: stderr, open: open}
	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if e.log != nil {
		_ = e.log.Sync()
	}
	if err == nil {
		return ExitOK
	}

	// Anything that fails before setup is an argument problem.
	if !e.started && pipeline.KindOf(err) == pipeline.KindInternal {
		err = pipeline.AsUsage(err)
	}
	var ee *exitError
	if !errors.As(err, &ee) {
		fmt.Fprintln(stderr, "error:", err.Error())
	}
	return exitCode(err)
}
