package pipeline

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/internal/target"
)

// OpenProc checks that the host can be inspected and opens its procfs. It
// runs before any other work.
func OpenProc(root string) (*proc.LiveFS, error) {
	if runtime.GOOS != "linux" {
		return nil, Platformf("this tool requires Linux (/proc), running on %s", runtime.GOOS)
	}
	fs, err := proc.NewLiveFS(root)
	if err != nil {
		return nil, Platformf("this tool requires Linux (/proc): %v", err)
	}
	return fs, nil
}

// Session holds the state of one invocation. Name lookups are cached for
// its lifetime; socket tables are read by each operation exactly once.
// A Session is not safe for concurrent use.
type Session struct {
	fs      proc.FS
	scanner *proc.Scanner
	names   *proc.NameResolver
	log     *zap.Logger
}

type SessionConfig struct {
	Logger      *zap.Logger
	Concurrency int
}

func NewSession(fs proc.FS, cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		fs:      fs,
		scanner: proc.NewScanner(fs, proc.WithLogger(log), proc.WithConcurrency(cfg.Concurrency)),
		names:   proc.NewNameResolver(fs),
		log:     log,
	}
}

// CollectPIDs resolves explicit pids plus exact process names.
func (s *Session) CollectPIDs(pids []int, names []string) ([]int, error) {
	return target.Collect(s.fs, pids, names)
}

func validPort(port int) error {
	if port < 1 || port > 65535 {
		return Usagef("Invalid --port %d.", port)
	}
	return nil
}
