// Package runner evaluates an accepted generation script and extracts its
// single output binding. It is the code that runs inside the short-lived
// child process spawned for each generation request; keeping it as a library
// lets the evaluation logic be exercised in-process by tests.
package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// ResultBinding is the global a script must assign its output to.
const ResultBinding = "result"

// Exit codes the runner process uses so the supervising executor can tell a
// script fault apart from a script that simply never assigned the binding.
const (
	ExitFault    = 1
	ExitNoResult = 2
)

// EnvMaxMemory carries the address-space ceiling (bytes) from the executor
// to the runner process, which applies it to itself with setrlimit.
const EnvMaxMemory = "GRAPHSCAPE_MAX_MEMORY"

// ErrNoResult reports a script that ran to completion without assigning
// the output binding.
var ErrNoResult = errors.New("script did not assign " + ResultBinding)

// Job is the unit of work handed to a runner process, written as JSON on
// its stdin by the supervising executor.
type Job struct {
	Script         string   `json:"script"`
	AllowedModules []string `json:"allowed_modules"`
	MaxSteps       uint64   `json:"max_steps,omitempty"`
}

// Run evaluates the job's script with only the allow-listed modules
// predeclared and returns the output binding serialized as JSON.
func Run(job Job) ([]byte, error) {
	predeclared := starlark.StringDict{}
	modules := map[string]starlark.Value{}
	for _, name := range job.AllowedModules {
		if mod, ok := builtinModule(name); ok {
			predeclared[name] = mod
			modules[name] = mod
		}
	}

	thread := &starlark.Thread{
		Name: "generation",
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			mod, ok := modules[module]
			if !ok {
				return nil, fmt.Errorf("module %q is not available", module)
			}
			return moduleMembers(module, mod), nil
		},
	}
	if job.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(job.MaxSteps)
	}

	// Generation scripts loop and accumulate at the top level, so control
	// flow and global reassignment are permitted there.
	opts := &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
	globals, err := starlark.ExecFileOptions(opts, thread, "script.star", job.Script, predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("%s\n%s", evalErr.Msg, evalErr.Backtrace())
		}
		return nil, err
	}

	out, ok := globals[ResultBinding]
	if !ok {
		return nil, ErrNoResult
	}
	native, err := toNative(out, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(native)
}

// builtinModule resolves an allow-list name to its module implementation.
func builtinModule(name string) (starlark.Value, bool) {
	switch name {
	case "math":
		return starlarkmath.Module, true
	case "json":
		return starlarkjson.Module, true
	case "time":
		return starlarktime.Module, true
	case "random":
		return randomModule(), true
	}
	return nil, false
}

// moduleMembers exposes a module's attributes for load() statements so that
// both `math.sqrt(2)` and `load("math", "sqrt")` work.
func moduleMembers(name string, v starlark.Value) starlark.StringDict {
	out := starlark.StringDict{name: v}
	if mod, ok := v.(*starlarkstruct.Module); ok {
		for k, member := range mod.Members {
			out[k] = member
		}
	}
	return out
}

// randomModule mirrors the handful of functions generation scripts actually
// use from Python's random.
func randomModule() *starlarkstruct.Module {
	rng := rand.New(rand.NewSource(rand.Int63()))
	return &starlarkstruct.Module{
		Name: "random",
		Members: starlark.StringDict{
			"random": starlark.NewBuiltin("random", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
					return nil, err
				}
				return starlark.Float(rng.Float64()), nil
			}),
			"uniform": starlark.NewBuiltin("uniform", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var a, bnd float64
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &a, &bnd); err != nil {
					return nil, err
				}
				return starlark.Float(a + rng.Float64()*(bnd-a)), nil
			}),
			"randint": starlark.NewBuiltin("randint", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lo, hi int64
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &lo, &hi); err != nil {
					return nil, err
				}
				if hi < lo {
					return nil, fmt.Errorf("randint: empty range [%d,%d]", lo, hi)
				}
				return starlark.MakeInt64(lo + rng.Int63n(hi-lo+1)), nil
			}),
			"seed": starlark.NewBuiltin("seed", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var n int64
				if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
					return nil, err
				}
				rng.Seed(n)
				return starlark.None, nil
			}),
		},
	}
}

const maxConvertDepth = 64

// toNative converts a Starlark value into the JSON-serializable subset of Go
// values. Unknown kinds degrade to their string form rather than failing the
// whole result.
func toNative(v starlark.Value, depth int) (any, error) {
	if depth > maxConvertDepth {
		return nil, fmt.Errorf("result nesting exceeds %d levels", maxConvertDepth)
	}
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		f, _ := starlark.AsFloat(v)
		return f, nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case *starlark.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := toNative(v.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, 0, len(v))
		for _, item := range v {
			converted, err := toNative(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, kv := range v.Items() {
			key, ok := starlark.AsString(kv[0])
			if !ok {
				key = kv[0].String()
			}
			val, err := toNative(kv[1], depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case *starlarkstruct.Struct:
		out := make(map[string]any)
		names := v.AttrNames()
		sort.Strings(names)
		for _, name := range names {
			attr, err := v.Attr(name)
			if err != nil {
				continue
			}
			val, err := toNative(attr, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = val
		}
		return out, nil
	default:
		return v.String(), nil
	}
}
