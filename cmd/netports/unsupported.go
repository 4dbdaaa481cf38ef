//go:build !linux

package main

import (
	"fmt"
	"os"
)

// EX_CONFIG: the host has no /proc socket tables to inspect.
const exitPlatform = 78

func main() {
	fmt.Fprintln(
		os.Stderr,
		"error: netports requires Linux (/proc).\n\nIf you are seeing this message, you are attempting to run netports on a platform without /proc/net/tcp and /proc/<pid>/fd.",
	)
	os.Exit(exitPlatform)
}
