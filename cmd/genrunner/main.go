// genrunner is the sandbox side of graph generation. The gateway spawns one
// genrunner process per request, writes the job as JSON on stdin, and reads
// the script's result binding as JSON from stdout. The process applies its
// own memory ceiling before touching the script and exits with a distinct
// code when the script finished without producing a result.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"

	"graphscape/internal/sandbox/runner"
)

func main() {
	applyMemoryLimit()

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal("read job: %v", err)
	}
	var job runner.Job
	if err := json.Unmarshal(input, &job); err != nil {
		fatal("decode job: %v", err)
	}

	out, err := runner.Run(job)
	if err != nil {
		if errors.Is(err, runner.ErrNoResult) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(runner.ExitNoResult)
		}
		fatal("%v", err)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		fatal("write result: %v", err)
	}
}

func applyMemoryLimit() {
	raw := os.Getenv(runner.EnvMaxMemory)
	if raw == "" {
		return
	}
	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || limit == 0 {
		return
	}
	rl := &syscall.Rlimit{Cur: limit, Max: limit}
	// Best effort: an unrestricted run is still bounded by the parent's
	// wall-clock kill.
	_ = syscall.Setrlimit(syscall.RLIMIT_AS, rl)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(runner.ExitFault)
}
