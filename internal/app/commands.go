package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/pipeline"
	"github.com/moondance-labs/netports/internal/reuseport"
	"github.com/moondance-labs/netports/internal/tui"
	"github.com/moondance-labs/netports/pkg/model"
)

func newByPortCmd(e *env) *cobra.Command {
	var (
		port     int
		include6 bool
	)
	cmd := &cobra.Command{
		Use:   "by-port",
		Short: "List processes listening on a TCP port",
		Example: `  netports by-port -p 30335
  netports by-port -p 30335 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := e.session().ByPort(cmd.Context(), port, include6)
			if err != nil {
				return err
			}
			return e.printer.Print(res)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port (e.g. 30335)")
	cmd.Flags().BoolVarP(&include6, "ipv6", "6", false, "Also include IPv6 (tcp6)")
	return cmd
}

func newByPIDCmd(e *env) *cobra.Command {
	var (
		targets  targetFlags
		include6 bool
	)
	cmd := &cobra.Command{
		Use:   "by-pid",
		Short: "List listening ports of processes selected by pid or exact name",
		Example: `  netports by-pid --names 'tanssi-node,tanssi-relay'
  netports by-pid --name tanssi-node`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := e.session()
			pids, err := targets.resolve(s)
			if err != nil {
				return err
			}
			res, err := s.ByPID(cmd.Context(), pids, include6)
			if err != nil {
				return err
			}
			return e.printer.Print(res)
		},
	}
	targets.register(cmd)
	cmd.Flags().BoolVarP(&include6, "ipv6", "6", false, "Also include IPv6 (tcp6)")
	return cmd
}

func newCheckConflictsCmd(e *env) *cobra.Command {
	var (
		targets  targetFlags
		include6 bool
		all      bool
		exitCode bool
	)
	cmd := &cobra.Command{
		Use:   "check-conflicts",
		Short: "Find TCP ports LISTENed by more than one process",
		Example: `  netports check-conflicts --all
  netports check-conflicts --pids "123,456" --exit-code`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := e.session()
			req := pipeline.ConflictsRequest{All: all, Include6: include6}
			if !all {
				if !targets.given() {
					return pipeline.Usagef("Provide PIDs or names, or use --all.")
				}
				pids, err := targets.resolve(s)
				if err != nil {
					return err
				}
				req.PIDs = pids
			}
			res, err := s.Conflicts(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := e.printer.Print(res); err != nil {
				return err
			}
			if exitCode && len(res.Conflicts) > 0 {
				return &exitError{code: ExitNoMatch}
			}
			return nil
		},
	}
	targets.register(cmd)
	cmd.Flags().BoolVarP(&include6, "ipv6", "6", false, "Also include IPv6 (tcp6)")
	cmd.Flags().BoolVar(&all, "all", false, "Check conflicts among ALL running PIDs (system-wide)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit 1 if conflicts found (0 if none).")
	return cmd
}

func newProbeCmd(e *env) *cobra.Command {
	var (
		req      pipeline.ProbeRequest
		holdMS   int
		exitCode bool
	)
	cmd := &cobra.Command{
		Use:   "probe-reuseport",
		Short: "Try to bind a port with SO_REUSEPORT and report the result",
		Example: `  netports probe-reuseport -p 30335
  netports probe-reuseport -p 30335 --host :: --ipv6only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Hold = time.Duration(holdMS) * time.Millisecond
			res, err := e.session().Probe(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := e.printer.Print(res); err != nil {
				return err
			}
			if res.Bound {
				return nil
			}
			if exitCode {
				return &exitError{code: ExitNoMatch}
			}
			return &exitError{code: ExitOSErr}
		},
	}
	cmd.Flags().IntVarP(&req.Port, "port", "p", 0, "TCP port (e.g. 30335)")
	cmd.Flags().StringVar(&req.Host, "host", "", "Bind host (default 0.0.0.0 or :: if --ipv6)")
	cmd.Flags().BoolVarP(&req.IPv6, "ipv6", "6", false, "Prefer IPv6 host (::)")
	cmd.Flags().BoolVar(&req.IPv6Only, "ipv6only", false, "Set IPV6_V6ONLY when binding to :: (no dual-stack)")
	cmd.Flags().IntVar(&holdMS, "timeout", int(reuseport.DefaultHold/time.Millisecond), "How long to hold the socket open (ms)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit 1 if the bind fails.")
	return cmd
}

func newConnectionsCmd(e *env) *cobra.Command {
	var targets targetFlags
	cmd := &cobra.Command{
		Use:   "connections-between",
		Short: "Find direct TCP/IPv4 connections among processes",
		Example: `  netports connections-between --pids "111,222" --json
  netports connections-between --names "tanssi-node,tanssi-relay,polkadot"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := e.session()
			pids, err := targets.resolve(s)
			if err != nil {
				return err
			}
			res, err := s.Connections(cmd.Context(), pids)
			if err != nil {
				return err
			}
			return e.printer.Print(res)
		},
	}
	targets.register(cmd)
	return cmd
}

func newWatchCmd(e *env) *cobra.Command {
	var (
		interval time.Duration
		include6 bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of system-wide port conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return pipeline.Usagef("Invalid --interval %s.", interval)
			}
			fs, concurrency := e.fs, e.cfg.Concurrency
			source := func(ctx context.Context) (model.ConflictsResult, error) {
				s := pipeline.NewSession(fs, pipeline.SessionConfig{Logger: zap.NewNop(), Concurrency: concurrency})
				return s.Conflicts(ctx, pipeline.ConflictsRequest{All: true, Include6: include6})
			}
			return tui.Start(cmd.Context(), source, interval, versionString())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	cmd.Flags().BoolVarP(&include6, "ipv6", "6", false, "Also include IPv6 (tcp6)")
	return cmd
}
