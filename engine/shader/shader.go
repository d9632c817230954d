// Package shader loads the WGSL programs the pipelines compile. Built-in programs are
// embedded; a directory on disk may override any of them by file name, and a Watcher
// reports edits so the pipelines can be rebuilt while the engine runs.
package shader

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

//go:embed assets/*.wgsl
var builtin embed.FS

// Ext is the file extension of shader sources.
const Ext = ".wgsl"

// Stage identifies a programmable pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StagePixel
)

func (s Stage) String() string {
	if s == StagePixel {
		return "fragment"
	}
	return "vertex"
}

// program is a pre-processed shader with its entry points.
type program struct {
	code   string
	vertex string
	pixel  string
}

// Library holds the raw sources by name and the pre-processed programs derived from them.
// Safe for concurrent use; Load swaps the whole set at once.
type Library struct {
	mu         sync.RWMutex
	dir        string
	maxShadows int
	raw        map[string]string
	programs   map[string]program
}

// LibraryBuilderOption is a functional option used to configure a Library.
type LibraryBuilderOption func(*Library)

// WithDir sets a directory whose .wgsl files override the built-in sources of the same name.
//
// Parameters:
//   - dir: the override directory, or "" for built-ins only
//
// Returns:
//   - LibraryBuilderOption: option function to apply
func WithDir(dir string) LibraryBuilderOption {
	return func(l *Library) {
		l.dir = dir
	}
}

// WithMaxShadows sets the number of shadow map bindings generated by //@oxy:shadow_maps.
// Must match the main pass layout's shadow table size.
func WithMaxShadows(n int) LibraryBuilderOption {
	return func(l *Library) {
		l.maxShadows = max(n, 1)
	}
}

// NewLibrary creates a library and performs the first Load.
//
// Parameters:
//   - options: functional options for the override directory and shadow count
//
// Returns:
//   - *Library: the loaded library
//   - error: a read or pre-processing failure
func NewLibrary(options ...LibraryBuilderOption) (*Library, error) {
	l := &Library{maxShadows: 1}
	for _, opt := range options {
		opt(l)
	}
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load re-reads every source and pre-processes every program. On failure the
// previous set is kept and the error wraps gpu.ErrShaderCompile.
func (l *Library) Load() error {
	raw := make(map[string]string)
	err := fs.WalkDir(builtin, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != Ext {
			return err
		}
		data, err := builtin.ReadFile(path)
		if err != nil {
			return err
		}
		raw[strings.TrimSuffix(d.Name(), Ext)] = string(data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("shader: built-ins: %w", err)
	}

	if l.dir != "" {
		entries, err := os.ReadDir(l.dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shader: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != Ext {
				continue
			}
			data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
			if err != nil {
				return fmt.Errorf("shader: %w", err)
			}
			raw[strings.TrimSuffix(e.Name(), Ext)] = string(data)
		}
	}

	pp := newPreProcessor(raw, l.maxShadows)
	programs := make(map[string]program)
	for name, src := range raw {
		code, err := pp.Process(name, src)
		if err != nil {
			return fmt.Errorf("shader %s: %w: %w", name, gpu.ErrShaderCompile, err)
		}
		vs := parseEntryPoint(code, StageVertex)
		if vs == "" {
			// Include-only source.
			continue
		}
		programs[name] = program{code: code, vertex: vs, pixel: parseEntryPoint(code, StagePixel)}
	}

	l.mu.Lock()
	l.raw = raw
	l.programs = programs
	l.mu.Unlock()
	return nil
}

// Vertex returns the vertex program of the named shader.
func (l *Library) Vertex(name string) (gpu.ShaderSource, error) {
	p, err := l.program(name)
	if err != nil {
		return gpu.ShaderSource{}, err
	}
	return gpu.ShaderSource{Name: name + "." + StageVertex.String(), Code: p.code, Entry: p.vertex}, nil
}

// Pixel returns the fragment program of the named shader. ok is false for
// depth-only shaders with no fragment entry point.
func (l *Library) Pixel(name string) (gpu.ShaderSource, bool, error) {
	p, err := l.program(name)
	if err != nil || p.pixel == "" {
		return gpu.ShaderSource{}, false, err
	}
	return gpu.ShaderSource{Name: name + "." + StagePixel.String(), Code: p.code, Entry: p.pixel}, true, nil
}

func (l *Library) program(name string) (program, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[name]
	if !ok {
		return program{}, fmt.Errorf("shader %q: no such program: %w", name, gpu.ErrShaderCompile)
	}
	return p, nil
}

// Names returns the names of every loaded program, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.programs))
	for n := range l.programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dir returns the override directory.
func (l *Library) Dir() string {
	return l.dir
}
