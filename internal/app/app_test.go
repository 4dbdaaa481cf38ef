package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moondance-labs/netports/internal/pipeline"
	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/internal/proc/proctest"
	"github.com/moondance-labs/netports/pkg/model"
)

func host() *proctest.FS {
	fs := proctest.New()
	fs.SetTable(model.FamilyTCP4, proctest.Table(
		proctest.Row(0, "00000000", 30335, "00000000", 0, model.StateListen, 1),
		proctest.Row(1, "00000000", 30335, "00000000", 0, model.StateListen, 2),
	))
	fs.AddProcess(100, &proctest.Process{Comm: "tanssi-node", FDs: map[string]string{"3": proctest.Socket(1)}})
	fs.AddProcess(200, &proctest.Process{Comm: "polkadot", FDs: map[string]string{"3": proctest.Socket(2)}})
	fs.AddProcess(300, &proctest.Process{Comm: "bash"})
	fs.AddProcess(500, &proctest.Process{Comm: "secret", Unreadable: true})
	return fs
}

type invocation struct {
	code   int
	stdout string
	stderr string
	root   string
}

func invoke(t *testing.T, fs proc.FS, args ...string) invocation {
	t.Helper()
	var out, errOut bytes.Buffer
	var root string
	open := func(r string) (proc.FS, error) {
		root = r
		return fs, nil
	}
	code := run(context.Background(), args, &out, &errOut, open)
	return invocation{code: code, stdout: out.String(), stderr: errOut.String(), root: root}
}

func TestByPortCommand(t *testing.T) {
	res := invoke(t, host(), "by-port", "-p", "30335", "--no-color")
	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "Listeners on port 30335:")
	assert.Contains(t, res.stdout, "polkadot")
	assert.Equal(t, proc.DefaultRoot, res.root)

	res = invoke(t, host(), "by-port", "-p", "1")
	assert.Equal(t, ExitOK, res.code)
	assert.Equal(t, "No listeners found on port 1.\n", res.stdout)
}

func TestJSONFlagAndEnv(t *testing.T) {
	res := invoke(t, host(), "by-port", "--json", "-p", "30335")
	require.Equal(t, ExitOK, res.code)
	assert.JSONEq(t, `{"command":"by-port","port":30335,"listeners":[{"pid":100,"name":"tanssi-node"},{"pid":200,"name":"polkadot"}]}`, res.stdout)

	t.Setenv("NETPORTS_JSON", "true")
	res = invoke(t, host(), "check-conflicts", "--all")
	require.Equal(t, ExitOK, res.code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, "check-conflicts", doc["command"])
}

func TestUsageErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing port", []string{"by-port"}, "error: Invalid --port 0.\n"},
		{"port out of range", []string{"by-port", "-p", "70000"}, "error: Invalid --port 70000.\n"},
		{"no targets", []string{"by-pid"}, "error: Provide PIDs via --pid/--pids or names via --names/--name.\n"},
		{"no conflict mode", []string{"check-conflicts"}, "error: Provide PIDs or names, or use --all.\n"},
		{"one pid", []string{"connections-between", "--pids", "100"}, "error: Provide at least two PIDs or names.\n"},
		{"bad pid list", []string{"by-pid", "--pids", "1,abc"}, "error: invalid pid 'abc' in list\n"},
		{"unknown pid", []string{"connections-between", "--pids", "100,999"}, "error: PID 999 not found (no /proc/999).\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := invoke(t, host(), tc.args...)
			assert.Equal(t, ExitUsage, res.code)
			assert.Equal(t, tc.msg, res.stderr)
			assert.Empty(t, res.stdout)
		})
	}

	for _, args := range [][]string{{"by-port", "--bogus"}, {"nope"}, {"by-port", "-p", "x"}} {
		res := invoke(t, host(), args...)
		assert.Equal(t, ExitUsage, res.code, "%v", args)
		assert.Contains(t, res.stderr, "error: ")
	}
}

func TestAliases(t *testing.T) {
	res := invoke(t, host(), "by-pid", "--pid", "100", "--name", "polkadot", "--no-color")
	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "tanssi-node")
	assert.Contains(t, res.stdout, "polkadot")
}

func TestCheckConflictsExitCode(t *testing.T) {
	res := invoke(t, host(), "check-conflicts", "--all", "--no-color")
	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "Processes with conflicting listeners:")

	res = invoke(t, host(), "check-conflicts", "--all", "--exit-code")
	assert.Equal(t, ExitNoMatch, res.code)
	assert.Empty(t, res.stderr)

	res = invoke(t, host(), "check-conflicts", "--names", "bash,polkadot", "--exit-code", "--no-color")
	assert.Equal(t, ExitOK, res.code)
	assert.Equal(t, "No conflicts found.\n", res.stdout)
}

func TestPermissionDenied(t *testing.T) {
	res := invoke(t, host(), "by-pid", "--pids", "100,500")
	assert.Equal(t, ExitNoPerm, res.code)
	assert.Equal(t, "error: Permission denied reading sockets for PID 500. Try elevated privileges.\n", res.stderr)
}

func TestPlatformError(t *testing.T) {
	var out, errOut bytes.Buffer
	open := func(string) (proc.FS, error) {
		return nil, pipeline.Platformf("this tool requires Linux (/proc)")
	}
	code := run(context.Background(), []string{"check-conflicts", "--all"}, &out, &errOut, open)
	assert.Equal(t, ExitPlatform, code)
	assert.Equal(t, "error: this tool requires Linux (/proc)\n", errOut.String())
}

func TestProcRootFromEnv(t *testing.T) {
	t.Setenv("NETPORTS_PROC_ROOT", "/host/proc")
	res := invoke(t, host(), "by-port", "-p", "1")
	assert.Equal(t, "/host/proc", res.root)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, exitCode(nil))
	assert.Equal(t, ExitNoMatch, exitCode(&exitError{code: ExitNoMatch}))
	assert.Equal(t, ExitPlatform, exitCode(errors.Wrap(&exitError{code: ExitPlatform}, "open")))
	assert.Equal(t, ExitNoMatch, exitCode(errors.Wrap(&exitError{code: ExitNoMatch}, "check-conflicts")))
	assert.Equal(t, ExitUsage, exitCode(pipeline.Usagef("x")))
	assert.Equal(t, ExitNoPerm, exitCode(pipeline.Permissionf("x")))
	assert.Equal(t, ExitOSErr, exitCode(assert.AnError))
}
