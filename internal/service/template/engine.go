// Package template expands named Starlark query templates into SQL text.
// Expansion runs in a sandboxed interpreter with a step cap, a wall-clock
// timeout, and an output byte cap. Expanded text holds no privilege:
// it re-enters the validation pipeline exactly like hand-written SQL.
package template

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"scoutgw/internal/domain"
)

const (
	defaultMaxSteps = uint64(50_000)
	defaultTimeout  = 2 * time.Second
	maxOutputBytes  = 64 * 1024
	maxModuleBytes  = 256 * 1024
	maxArgs         = 16
)

//go:embed templates.star
var defaultModule string

// Definition describes one template for capability discovery.
type Definition struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

// Engine holds one loaded template module. Globals are immutable after
// load, so an Engine is safe for concurrent expansion.
type Engine struct {
	globals  starlark.StringDict
	maxSteps uint64
	timeout  time.Duration
}

// Default loads the built-in template module.
func Default() (*Engine, error) {
	return New("templates.star", defaultModule)
}

// Load reads a template module from disk.
func Load(path string) (*Engine, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template module: %w", err)
	}
	return New(filepath.Base(path), string(src))
}

// New executes a module's top level under the sandbox limits and keeps its
// globals. Every public function becomes a callable template.
func New(filename, src string) (*Engine, error) {
	if len(src) > maxModuleBytes {
		return nil, fmt.Errorf("template module %s exceeds %d bytes", filename, maxModuleBytes)
	}

	e := &Engine{maxSteps: defaultMaxSteps, timeout: defaultTimeout}

	thread := &starlark.Thread{Name: "template-load"}
	thread.SetMaxExecutionSteps(e.maxSteps)
	if err := runWithTimeout(thread, e.timeout, func() error {
		globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, nil)
		if err != nil {
			return err
		}
		e.globals = globals
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load template module %s: %w", filename, err)
	}

	return e, nil
}

// List returns the public templates sorted by name. Underscore-prefixed
// globals are module-private helpers and stay hidden.
func (e *Engine) List() []Definition {
	defs := make([]Definition, 0, len(e.globals))
	for name, v := range e.globals {
		fn, ok := v.(*starlark.Function)
		if !ok || strings.HasPrefix(name, "_") {
			continue
		}
		def := Definition{Name: name}
		for i := 0; i < fn.NumParams(); i++ {
			p, _ := fn.Param(i)
			def.Params = append(def.Params, p)
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Expand calls the named template with keyword arguments and returns the
// SQL text it produced. All failure modes are user-correctable and surface
// as validation errors.
func (e *Engine) Expand(name string, args map[string]any) (string, error) {
	callable, err := e.lookup(name)
	if err != nil {
		return "", err
	}
	if len(args) > maxArgs {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate,
			"template %q takes at most %d arguments", name, maxArgs)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kwargs := make([]starlark.Tuple, 0, len(args))
	for _, k := range keys {
		val, err := toStarlark(args[k])
		if err != nil {
			return "", domain.ErrValidation(domain.ViolationInvalidTemplate,
				"template argument %q: %v", k, err)
		}
		kwargs = append(kwargs, starlark.Tuple{starlark.String(k), val})
	}

	thread := &starlark.Thread{Name: "template-expand"}
	thread.SetMaxExecutionSteps(e.maxSteps)

	var result starlark.Value
	if err := runWithTimeout(thread, e.timeout, func() error {
		out, err := starlark.Call(thread, callable, nil, kwargs)
		if err != nil {
			return err
		}
		result = out
		return nil
	}); err != nil {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate, "template %q: %v", name, err)
	}

	text, ok := starlark.AsString(result)
	if !ok {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate,
			"template %q must return SQL text, got %s", name, result.Type())
	}
	if len(text) > maxOutputBytes {
		return "", domain.ErrValidation(domain.ViolationInvalidTemplate,
			"template %q output exceeds %d bytes", name, maxOutputBytes)
	}
	return text, nil
}

func (e *Engine) lookup(name string) (starlark.Callable, error) {
	if strings.HasPrefix(name, "_") {
		return nil, domain.ErrValidation(domain.ViolationInvalidTemplate, "unknown template %q", name)
	}
	v, ok := e.globals[name]
	if !ok {
		return nil, domain.ErrValidation(domain.ViolationInvalidTemplate, "unknown template %q", name)
	}
	callable, ok := v.(starlark.Callable)
	if !ok {
		return nil, domain.ErrValidation(domain.ViolationInvalidTemplate, "%q is not a template function", name)
	}
	return callable, nil
}

// toStarlark converts a decoded JSON argument. Integral float64 values
// become ints so %d formatting inside templates works on JSON numbers.
func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case string:
		return starlark.String(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return starlark.MakeInt64(int64(x)), nil
		}
		return starlark.Float(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", string(x))
		}
		return starlark.Float(f), nil
	case []any:
		items := make([]starlark.Value, 0, len(x))
		for _, item := range x {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items = append(items, sv)
		}
		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(x))
		for k, item := range x {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", v)
	}
}

// runWithTimeout cancels the thread when the wall clock expires. Step caps
// alone do not bound time spent inside builtins.
func runWithTimeout(thread *starlark.Thread, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		return fn()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		thread.Cancel("expansion timed out")
		<-done
		return fmt.Errorf("expansion timed out after %s", timeout)
	}
}
