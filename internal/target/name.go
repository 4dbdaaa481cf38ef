package target

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/moondance-labs/netports/internal/proc"
)

var listSep = regexp.MustCompile(`[,\s]+`)

// ResolveNames returns the pids whose comm equals one of names exactly.
// Matching is case-sensitive and never looks at the command line.
func ResolveNames(fs proc.FS, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	pids, err := fs.PIDs()
	if err != nil {
		return nil, errors.Wrap(err, "list processes")
	}

	var matched []int
	for _, pid := range pids {
		comm, err := fs.Comm(pid)
		if err != nil {
			continue
		}
		if want[strings.TrimRight(comm, "\n")] {
			matched = append(matched, pid)
		}
	}
	sort.Ints(matched)
	return matched, nil
}

// Collect merges explicit pids with the pids matching names, deduplicated
// and in ascending order.
func Collect(fs proc.FS, pids []int, names []string) ([]int, error) {
	byName, err := ResolveNames(fs, names)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(pids)+len(byName))
	var out []int
	for _, pid := range append(append([]int{}, pids...), byName...) {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, pid)
	}
	sort.Ints(out)
	return out, nil
}

// ParseNameList splits "a,b c" style input on commas or whitespace.
func ParseNameList(raw ...string) []string {
	var out []string
	for _, r := range raw {
		for _, s := range listSep.Split(r, -1) {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// ParsePIDList is ParseNameList for pids. Every item must be a positive integer.
func ParsePIDList(raw ...string) ([]int, error) {
	var pids []int
	for _, s := range ParseNameList(raw...) {
		pid, err := strconv.Atoi(s)
		if err != nil || pid <= 0 {
			return nil, errors.Errorf("invalid pid '%s' in list", s)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
