package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
)

// Sources resolves shader programs by name.
type Sources interface {
	// Vertex returns the vertex program of the named shader.
	Vertex(name string) (gpu.ShaderSource, error)

	// Pixel returns the pixel program of the named shader, or ok false when it has none.
	Pixel(name string) (src gpu.ShaderSource, ok bool, err error)
}

// Library compiles every pipeline of a key Set and serves them by key. A build
// either replaces the whole set or leaves the previous one untouched.
//
// Get may be called from the render goroutine while Build runs on another goroutine;
// the swap is atomic. Pipelines of a replaced set are released by the next Build,
// which must not start before the frames that used them have completed.
type Library struct {
	dev         gpu.Device
	layouts     Layouts
	keys        []Key
	colorFormat gpu.Format
	idFormat    gpu.Format
	depthFormat gpu.Format

	current    atomic.Pointer[map[Key]gpu.PipelineState]
	retired    map[Key]gpu.PipelineState
	generation atomic.Uint64
}

// NewLibrary creates an empty library. Call Build before the first frame.
//
// Parameters:
//   - dev: the device to compile on
//   - layouts: the pass layouts pipelines bind against
//   - keys: every key to build
//   - options: format overrides
//
// Returns:
//   - *Library: the library
func NewLibrary(dev gpu.Device, layouts Layouts, keys []Key, options ...LibraryBuilderOption) *Library {
	l := &Library{
		dev:         dev,
		layouts:     layouts,
		keys:        keys,
		colorFormat: gpu.FormatBGRA8Unorm,
		idFormat:    gpu.FormatR32Uint,
		depthFormat: gpu.FormatDepth32Float,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Build compiles every key from src. On any failure nothing is swapped, the
// pipelines compiled so far are released and the error wraps ErrCompile.
//
// Parameters:
//   - src: the shader programs
//
// Returns:
//   - error: wrapped ErrCompile on a shader failure
func (l *Library) Build(src Sources) error {
	next := make(map[Key]gpu.PipelineState, len(l.keys))
	var errs []error
	for _, k := range l.keys {
		ps, err := l.compile(k, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		next[k] = ps
	}
	if len(errs) > 0 {
		for _, ps := range next {
			ps.Release()
		}
		return fmt.Errorf("%w: %w", ErrCompile, errors.Join(errs...))
	}

	for _, ps := range l.retired {
		ps.Release()
	}
	if prev := l.current.Swap(&next); prev != nil {
		l.retired = *prev
	}
	gen := l.generation.Add(1)
	logger.Logger().Info("pipelines built", "count", len(next), "generation", gen)
	return nil
}

// Reload rebuilds from src and keeps the last good set on failure. Compile errors
// are logged and returned; any other error is returned as is.
func (l *Library) Reload(src Sources) error {
	err := l.Build(src)
	if errors.Is(err, ErrCompile) {
		logger.Logger().Warn("shader reload rejected, keeping previous pipelines",
			"generation", l.generation.Load(), "err", err)
	}
	return err
}

func (l *Library) compile(k Key, src Sources) (gpu.PipelineState, error) {
	name := k.Pass.shaderName()
	vs, err := src.Vertex(name)
	if err != nil {
		return nil, err
	}
	desc := gpu.PipelineDesc{
		Label:         k.String(),
		RootSignature: l.layouts.For(k.Pass.Layout()).RootSignature(),
		Vertex:        vs,
		VertexLayout:  k.Pass.VertexLayout(),
		DepthFormat:   l.depthFormat,
		DepthWrite:    k.DepthWrite,
		DepthCompare:  k.DepthCompare(),
		Cull:          k.Cull,
		Blend:         k.Blend,
	}
	ps, ok, err := src.Pixel(name)
	if err != nil {
		return nil, err
	}
	if ok {
		desc.Pixel = &ps
	}
	switch k.Pass {
	case PassColor, PassColorAlphaCut:
		desc.ColorFormats = []gpu.Format{l.colorFormat}
	case PassObjectID:
		desc.ColorFormats = []gpu.Format{l.idFormat}
	}
	return l.dev.CreatePipelineState(desc)
}

// Get returns the pipeline for k from the current set.
//
// Returns:
//   - gpu.PipelineState: the pipeline
//   - error: ErrUnknownKey if k was not built
func (l *Library) Get(k Key) (gpu.PipelineState, error) {
	set := l.current.Load()
	if set == nil {
		return nil, fmt.Errorf("%s: %w", k, ErrUnknownKey)
	}
	ps, ok := (*set)[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrUnknownKey)
	}
	return ps, nil
}

// Generation returns the number of successful builds.
func (l *Library) Generation() uint64 {
	return l.generation.Load()
}

// Layouts returns the pass layouts the pipelines bind against.
func (l *Library) Layouts() Layouts {
	return l.layouts
}

// Release frees every pipeline. The layouts are owned by the caller.
func (l *Library) Release() {
	for _, ps := range l.retired {
		ps.Release()
	}
	l.retired = nil
	if set := l.current.Swap(nil); set != nil {
		for _, ps := range *set {
			ps.Release()
		}
	}
}
