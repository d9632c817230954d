// Package engine ties the renderer together: it loads the scene and compiles the
// pipelines at startup, then runs the frame loop that drives the presenter, the
// composer and the on-demand picking pass on one recording goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/composer"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/Carmen-Shannon/oxy-frame/engine/picking"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/presenter"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/settings"
	"github.com/Carmen-Shannon/oxy-frame/engine/shader"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// MaxShadows is the size of the main pass shadow table.
const MaxShadows = 4

// Logger returns the logger shared by the engine and its sub-packages.
func Logger() *slog.Logger {
	return logger.Logger()
}

// SetLogger replaces the shared logger. nil silences it.
func SetLogger(l *slog.Logger) {
	logger.SetLogger(l)
}

// PickResult is the resolved object under a picked pixel.
type PickResult struct {
	X, Y int
	// ID is the object id at the pixel, or picking.NoObject.
	ID    uint32
	Depth float32
	// Object is the picked object, or nil over the background.
	Object *scene.Object
}

// Engine is the main entry point. All methods except RequestPick, Resize and the
// setters must be called from the goroutine that runs the frames.
type Engine interface {
	// Run renders frames until ctx is done or the window closes. The returned error
	// is fatal; a nil error is a clean stop. Close must still be called.
	Run(ctx context.Context) error

	// Frame renders one frame that advances the scene by dt seconds.
	//
	// Returns:
	//   - profiler.FrameStats: the recorded work
	//   - error: fatal device or recording failures
	Frame(dt float32) (profiler.FrameStats, error)

	// RequestPick schedules an object pick at pixel (x, y). The result is delivered
	// to the pick callback at a later frame boundary.
	RequestPick(x, y int)

	// RequestReload re-reads the shaders and rebuilds the pipelines at the next frame boundary.
	RequestReload()

	// Resize schedules a swap chain resize for the next frame boundary.
	Resize(width, height int)

	// Size returns the current back buffer size.
	Size() (width, height uint32)

	SetVSync(on bool)
	SetEarlyZ(on bool)

	// SetPaused freezes dynamic object animation; frames keep rendering.
	SetPaused(on bool)
	Paused() bool

	Camera() camera.Camera
	Scene() scene.Scene

	// Close drains the GPU and releases every resource.
	Close() error
}

type engine struct {
	settings settings.Settings
	dev      gpu.Device
	loader   scene.Loader
	window   window.Window
	onPick   func(PickResult)

	heapSize       int
	startupWorkers int

	heap      *gpu.DescriptorHeap
	layouts   pipeline.Layouts
	shaders   *shader.Library
	lib       *pipeline.Library
	presenter *presenter.Presenter
	composer  *composer.Composer
	pick      *picking.Pass
	scene     scene.Scene
	camera    camera.Camera
	watcher   *shader.Watcher
	profiler  *profiler.Profiler

	// mu guards the requests below, which input callbacks may post from any goroutine.
	mu         sync.Mutex
	pickReq    *[2]int
	resizeReq  *[2]int
	reloadReq  bool
	vsync      bool
	earlyZ     bool
	paused     bool
	pickAt     [2]int
	pickResult picking.Result

	closeOnce sync.Once
}

var _ Engine = &engine{}

// New creates the engine on dev. The scene load and the pipeline compile run in
// parallel on a worker pool and are joined before New returns.
//
// Parameters:
//   - ctx: cancels the scene load
//   - dev: the device to render with
//   - loader: produces the scene
//   - options: functional options
//
// Returns:
//   - Engine: the engine, ready for its first frame
//   - error: invalid settings, a load or compile failure, or a device failure
func New(ctx context.Context, dev gpu.Device, loader scene.Loader, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		settings:       settings.Default(),
		dev:            dev,
		loader:         loader,
		heapSize:       1024,
		startupWorkers: 2,
	}
	for _, opt := range options {
		opt(e)
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}
	e.vsync = e.settings.VSync
	e.earlyZ = e.settings.EarlyZ

	if err := e.init(ctx); err != nil {
		e.release()
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

func (e *engine) init(ctx context.Context) error {
	s := e.settings
	width, height := uint32(s.Width), uint32(s.Height)
	if e.window != nil {
		if w, h := e.window.Size(); w > 0 && h > 0 {
			width, height = uint32(w), uint32(h)
		}
	}

	var err error
	if e.layouts, err = pipeline.NewLayouts(e.dev, MaxShadows); err != nil {
		return err
	}
	e.heap = gpu.NewDescriptorHeap("engine", e.heapSize)

	e.presenter, err = presenter.New(e.dev,
		presenter.WithSize(width, height),
		presenter.WithBufferCount(s.BufferCount),
		presenter.WithFrameWaitTimeout(s.FrameWaitTimeout.Std()),
	)
	if err != nil {
		return err
	}

	if e.shaders, err = shader.NewLibrary(shader.WithDir(s.ShaderDir), shader.WithMaxShadows(MaxShadows)); err != nil {
		return err
	}
	e.lib = pipeline.NewLibrary(e.dev, e.layouts, pipeline.KeySet(s.BackfaceCulling).Keys(),
		pipeline.WithColorFormat(e.presenter.Format()))

	desc, err := e.startup(ctx)
	if err != nil {
		return err
	}
	if desc.Ambient == ([3]float32{}) {
		desc.Ambient = s.AmbientColor
	}
	e.scene, err = scene.NewScene(e.dev, e.heap, desc,
		scene.WithSlots(e.presenter.BufferCount()),
		scene.WithShadowMapping(s.ShadowMapping, uint32(s.ShadowMapSize)),
		scene.WithMaxShadows(MaxShadows),
	)
	if err != nil {
		return err
	}

	e.composer = composer.New(e.lib, e.heap,
		composer.WithBackfaceCulling(s.BackfaceCulling),
		composer.WithEarlyZ(s.EarlyZ),
		composer.WithShadowMapping(s.ShadowMapping),
		composer.WithClearColor(s.ClearColor),
	)
	e.pick, err = picking.New(e.dev, e.lib, e.heap, width, height,
		picking.WithTimeout(s.PickTimeout.Std()),
		picking.WithBackfaceCulling(s.BackfaceCulling),
	)
	if err != nil {
		return err
	}

	bounds := e.scene.Bounds()
	e.camera = camera.NewCamera(
		camera.WithSize(width, height),
		camera.WithClipPlanes(0.1, max(bounds.Radius*6, 100)),
		camera.WithController(camera.NewOrbitController(
			camera.WithOrbit(max(bounds.Radius*1.5, 5), 0.6, 0.45),
			camera.WithTarget(bounds.Center[0], bounds.Center[1], bounds.Center[2]),
		)),
	)

	if s.WatchShaders {
		if e.watcher, err = shader.NewWatcher(s.ShaderDir, 0); err != nil {
			return fmt.Errorf("watch %s: %w", s.ShaderDir, err)
		}
	}
	if s.Profiling {
		e.profiler = profiler.NewProfiler(profiler.WithCategoryNames(scene.CategoryNames()...))
	}
	if e.window != nil {
		e.bindWindow()
	}
	return nil
}

// startup loads the scene description and compiles every pipeline concurrently.
func (e *engine) startup(ctx context.Context) (*scene.Description, error) {
	pool := worker.NewDynamicWorkerPool(e.startupWorkers, 16, 1*time.Second)
	defer pool.Stop()

	var (
		wg       sync.WaitGroup
		desc     *scene.Description
		loadErr  error
		buildErr error
	)
	wg.Add(2)
	pool.SubmitTask(worker.Task{
		ID: 0,
		Do: func() (any, error) {
			defer wg.Done()
			desc, loadErr = e.loader.Load(ctx)
			return desc, loadErr
		},
	})
	pool.SubmitTask(worker.Task{
		ID: 1,
		Do: func() (any, error) {
			defer wg.Done()
			buildErr = e.lib.Build(e.shaders)
			return nil, buildErr
		},
	})
	wg.Wait()

	if loadErr != nil {
		loadErr = fmt.Errorf("load scene: %w", loadErr)
	}
	if err := errors.Join(loadErr, buildErr); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("load scene: loader returned no description")
	}
	return desc, nil
}

func (e *engine) bindWindow() {
	e.window.SetResizeCallback(e.Resize)
	e.window.SetClickCallback(e.RequestPick)
	e.window.SetDragCallback(func(dx, dy float32) {
		if c := e.camera.Controller(); c != nil {
			c.Drag(dx, dy)
		}
	})
	e.window.SetScrollCallback(func(delta float32) {
		if c := e.camera.Controller(); c != nil {
			c.Zoom(delta)
		}
	})
	e.window.SetKeyCallback(func(key rune) {
		switch key {
		case common.KeyV:
			e.mu.Lock()
			e.vsync = !e.vsync
			e.mu.Unlock()
		case common.KeyZ:
			e.mu.Lock()
			e.earlyZ = !e.earlyZ
			e.mu.Unlock()
		case common.KeySpace:
			e.SetPaused(!e.Paused())
		case common.KeyR:
			e.RequestReload()
		}
	})
}

func (e *engine) Run(ctx context.Context) error {
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if e.window != nil && !e.window.Poll() {
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if _, err := e.Frame(dt); err != nil {
			logger.Logger().Error("frame failed", "err", err)
			return err
		}
	}
}

func (e *engine) Frame(dt float32) (profiler.FrameStats, error) {
	if err := e.boundary(); err != nil {
		return profiler.FrameStats{}, err
	}

	e.mu.Lock()
	vsync, earlyZ, paused := e.vsync, e.earlyZ, e.paused
	e.mu.Unlock()
	e.composer.SetEarlyZ(earlyZ)

	e.camera.Update()
	if paused {
		dt = 0
	}
	e.scene.Update(dt)

	cl, err := e.presenter.BeginFrame()
	if err != nil {
		return profiler.FrameStats{}, fmt.Errorf("engine: begin frame: %w", err)
	}
	slot := e.presenter.Current()
	stats, err := e.composer.Compose(cl, composer.Frame{
		Slot:  slot.Index,
		Color: slot.BackBuffer,
		Depth: slot.Depth,
		View:  e.camera,
	})
	if err != nil {
		e.presenter.Abandon()
		return stats, fmt.Errorf("engine: compose: %w", err)
	}
	if err := e.presenter.Execute(); err != nil {
		e.presenter.Abandon()
		return stats, fmt.Errorf("engine: %w", err)
	}
	if err := e.recordPick(slot); err != nil {
		return stats, fmt.Errorf("engine: %w", err)
	}
	if err := e.presenter.Present(vsync); err != nil {
		return stats, fmt.Errorf("engine: %w", err)
	}

	if e.profiler != nil {
		e.profiler.Tick(stats)
	}
	return stats, nil
}

// boundary applies the work that must happen between frames: collecting a
// finished pick, resizing and rebuilding pipelines.
func (e *engine) boundary() error {
	e.collectPick()
	if err := e.applyResize(); err != nil {
		return err
	}
	return e.applyReload()
}

// recordPick submits a requested pick after the frame that produced its depth buffer.
func (e *engine) recordPick(slot *presenter.Slot) error {
	e.mu.Lock()
	req := e.pickReq
	if req == nil || e.pick.Armed() {
		e.mu.Unlock()
		return nil
	}
	e.pickReq = nil
	e.mu.Unlock()

	if err := e.pick.Record(e.camera, slot.Depth, e.scene, slot.Index); err != nil {
		return err
	}
	if err := e.pick.Execute(e.presenter.Queue()); err != nil {
		return err
	}
	if err := e.pick.SignalDone(e.presenter.Queue()); err != nil {
		return err
	}
	e.pickAt = *req
	return nil
}

// collectPick reads an armed pick. A timeout leaves it armed for the next boundary.
func (e *engine) collectPick() {
	if !e.pick.Armed() {
		return
	}
	err := e.pick.Read(&e.pickResult)
	switch {
	case errors.Is(err, gpu.ErrTimeout):
		logger.Logger().Debug("pick not ready", "x", e.pickAt[0], "y", e.pickAt[1])
		return
	case err != nil:
		logger.Logger().Warn("pick readback failed", "err", err)
		return
	}

	x, y := uint32(max(e.pickAt[0], 0)), uint32(max(e.pickAt[1], 0))
	res := PickResult{
		X:     e.pickAt[0],
		Y:     e.pickAt[1],
		ID:    e.pickResult.At(x, y),
		Depth: e.pickResult.DepthAt(x, y),
	}
	if res.ID != picking.NoObject {
		res.Object = e.scene.Object(int(res.ID))
	}
	name := "none"
	if res.Object != nil {
		name = res.Object.Name
	}
	logger.Logger().Debug("picked", "x", res.X, "y", res.Y, "id", res.ID, "object", name)
	if e.onPick != nil {
		e.onPick(res)
	}
}

func (e *engine) applyResize() error {
	e.mu.Lock()
	req := e.resizeReq
	if req == nil || e.pick.Armed() {
		e.mu.Unlock()
		return nil
	}
	e.resizeReq = nil
	e.mu.Unlock()

	w, h := uint32(req[0]), uint32(req[1])
	if cw, ch := e.presenter.Size(); cw == w && ch == h {
		return nil
	}
	if err := e.presenter.Resize(w, h, e.drainTimeout()); err != nil {
		return fmt.Errorf("engine: resize: %w", err)
	}
	if err := e.pick.Resize(w, h); err != nil {
		return fmt.Errorf("engine: resize: %w", err)
	}
	e.camera.SetSize(w, h)
	return nil
}

// applyReload rebuilds the pipelines after a watched edit or an explicit request.
// Rejected shaders keep the last good pipelines.
func (e *engine) applyReload() error {
	e.mu.Lock()
	reload := e.reloadReq
	e.reloadReq = false
	e.mu.Unlock()

	if e.watcher != nil {
		select {
		case names := <-e.watcher.Changes():
			logger.Logger().Info("shaders changed", "names", names)
			reload = true
		default:
		}
	}
	if !reload {
		return nil
	}

	if err := e.shaders.Load(); err != nil {
		logger.Logger().Warn("shader reload rejected, keeping previous pipelines", "err", err)
		return nil
	}
	// Build releases the pipelines retired by the previous build, which frames
	// still in flight may reference.
	if err := e.presenter.WaitForIdle(e.drainTimeout()); err != nil {
		return fmt.Errorf("engine: reload: %w", err)
	}
	if err := e.lib.Reload(e.shaders); err != nil && !errors.Is(err, pipeline.ErrCompile) {
		return fmt.Errorf("engine: reload: %w", err)
	}
	return nil
}

func (e *engine) drainTimeout() time.Duration {
	if d := e.settings.ShutdownTimeout.Std(); d > 0 {
		return d
	}
	return gpu.Infinite
}

func (e *engine) RequestPick(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pickReq = &[2]int{x, y}
}

func (e *engine) RequestReload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloadReq = true
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizeReq = &[2]int{width, height}
}

func (e *engine) Size() (uint32, uint32) {
	return e.presenter.Size()
}

func (e *engine) SetVSync(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vsync = on
}

func (e *engine) SetEarlyZ(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.earlyZ = on
}

func (e *engine) SetPaused(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = on
}

func (e *engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.presenter != nil {
			err = e.presenter.WaitForIdle(e.drainTimeout())
		}
		if e.pick != nil && e.pick.Armed() {
			_ = e.pick.Read(&e.pickResult)
		}
		e.release()
	})
	return err
}

// release frees whatever init created, in reverse order.
func (e *engine) release() {
	if e.watcher != nil {
		e.watcher.Close()
	}
	if e.pick != nil {
		e.pick.Release()
	}
	if e.scene != nil {
		e.scene.Release()
	}
	if e.lib != nil {
		e.lib.Release()
	}
	if e.presenter != nil {
		e.presenter.Release()
	}
	e.layouts.Release()
}
