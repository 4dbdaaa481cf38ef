package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/moondance-labs/netports/internal/pipeline"
	"github.com/moondance-labs/netports/internal/target"
)

// targetFlags are the --pids/--names selectors shared by several commands.
type targetFlags struct {
	pids  []string
	names []string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVarP(&t.pids, "pids", "p", nil, "Space/comma separated: --pids '1,2,3'. Repeatable: -p 1 -p 2 (alias --pid)")
	f.StringArrayVarP(&t.names, "names", "n", nil, "Exact process names (comm), comma separated or repeated (alias --name)")
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		switch name {
		case "pid":
			name = "pids"
		case "name":
			name = "names"
		}
		return pflag.NormalizedName(name)
	})
}

func (t *targetFlags) given() bool {
	return len(t.pids) > 0 || len(t.names) > 0
}

// resolve returns the selected pids, deduplicated and ascending.
func (t *targetFlags) resolve(s *pipeline.Session) ([]int, error) {
	pids, err := target.ParsePIDList(t.pids...)
	if err != nil {
		return nil, pipeline.AsUsage(err)
	}
	return s.CollectPIDs(pids, target.ParseNameList(t.names...))
}
