// Command oxyframe opens a window and renders the demo scene, or a glTF scene
// given with -scene. Left click picks an object, middle drag orbits, the wheel
// zooms, V toggles vsync, Z toggles the depth pre-pass and R reloads shaders.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/webgpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/loader"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/settings"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

func main() {
	var (
		config    = flag.String("config", "", "settings file (.yaml, .yml or .toml)")
		scenePath = flag.String("scene", "", "glTF or GLB scene; the procedural demo when empty")
		cubes     = flag.Int("cubes", 16, "dynamic cubes in the demo scene")
		spin      = flag.String("spin", "", "comma-separated glTF node names to animate")
		fallback  = flag.Bool("fallback-adapter", false, "force the software adapter")
	)
	flag.Parse()

	if err := run(*config, *scenePath, *cubes, *spin, *fallback); err != nil {
		fmt.Fprintln(os.Stderr, "oxyframe:", err)
		os.Exit(1)
	}
}

func run(configPath, scenePath string, cubes int, spin string, fallback bool) error {
	cfg := settings.Default()
	if configPath != "" {
		var err error
		if cfg, err = settings.Load(configPath); err != nil {
			return err
		}
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	engine.SetLogger(log)

	w, err := window.NewWindow(
		window.WithTitle("oxyframe"),
		window.WithSize(cfg.Width, cfg.Height),
		window.WithMinSize(64, 64),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	dev, err := webgpu.NewDevice(w.SurfaceDescriptor(), webgpu.WithFallbackAdapter(fallback))
	if err != nil {
		return err
	}
	defer dev.Release()

	var src scene.Loader = scene.DemoLoader{Cubes: cubes}
	if scenePath != "" {
		var opts []loader.LoaderBuilderOption
		for _, name := range strings.Split(spin, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts = append(opts, loader.WithSpin(name, [3]float32{0, 0.8, 0}))
			}
		}
		opts = append(opts, loader.WithAmbient(cfg.AmbientColor[0], cfg.AmbientColor[1], cfg.AmbientColor[2]))
		src = loader.NewGLTFLoader(scenePath, opts...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := engine.New(ctx, dev, src,
		engine.WithSettings(cfg),
		engine.WithWindow(w),
		engine.WithPickCallback(func(r engine.PickResult) {
			if r.Object == nil {
				log.Info("pick", "x", r.X, "y", r.Y, "object", "none")
				return
			}
			log.Info("pick", "x", r.X, "y", r.Y, "id", r.ID, "object", r.Object.Name,
				"category", r.Object.Category, "depth", r.Depth)
		}),
	)
	if err != nil {
		return err
	}

	runErr := eng.Run(ctx)
	if err := eng.Close(); err != nil {
		log.Warn("shutdown", "err", err)
	}
	return runErr
}
