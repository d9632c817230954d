package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu/sim"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsLoad(t *testing.T) {
	l, err := NewLibrary(WithMaxShadows(2))
	require.NoError(t, err)

	for _, name := range []string{"depth", "depth_alpha", "color", "color_alpha", "object_id"} {
		vs, err := l.Vertex(name)
		require.NoError(t, err, name)
		assert.Equal(t, "vs_main", vs.Entry)
		assert.NotContains(t, vs.Code, annotationPrefix, name)
	}

	_, ok, err := l.Pixel("depth")
	require.NoError(t, err)
	assert.False(t, ok, "depth-only program has no fragment stage")

	ps, ok, err := l.Pixel("color")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fs_main", ps.Entry)
	assert.Equal(t, "color.fragment", ps.Name)
}

func TestIncludesAreInjectedOnce(t *testing.T) {
	l, err := NewLibrary()
	require.NoError(t, err)
	vs, err := l.Vertex("color_alpha")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(vs.Code, "struct FrameConstants"))
	assert.Equal(t, 1, strings.Count(vs.Code, "struct Light {"))
	assert.Equal(t, 1, strings.Count(vs.Code, "fn shade("))
}

func TestShadowMapsGenerateOneBindingPerSlot(t *testing.T) {
	l, err := NewLibrary(WithMaxShadows(3))
	require.NoError(t, err)
	vs, err := l.Vertex("color")
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(vs.Code, "texture_depth_2d"))
	assert.Contains(t, vs.Code, "@group(4) @binding(3) var shadow_sampler: sampler_comparison;")
	assert.Contains(t, vs.Code, "case 2u:")
	assert.NotContains(t, vs.Code, "case 3u:")
}

func TestDirectoryOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	src := "//@oxy:include frame\n@vertex fn custom_vs() -> @builtin(position) vec4<f32> { return vec4<f32>(); }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "depth.wgsl"), []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	l, err := NewLibrary(WithDir(dir))
	require.NoError(t, err)
	vs, err := l.Vertex("depth")
	require.NoError(t, err)
	assert.Equal(t, "custom_vs", vs.Entry)
	assert.Contains(t, vs.Code, "struct FrameConstants")
	assert.Equal(t, dir, l.Dir())
}

func TestMissingDirectoryUsesBuiltins(t *testing.T) {
	l, err := NewLibrary(WithDir(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Contains(t, l.Names(), "object_id")
}

func TestBadDirectiveKeepsPreviousSet(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLibrary(WithDir(dir))
	require.NoError(t, err)
	before, err := l.Vertex("color")
	require.NoError(t, err)

	cases := map[string]string{
		"unknown include":   "//@oxy:include nowhere\n",
		"unknown directive": "//@oxy:frobnicate 1\n",
		"missing argument":  "//@oxy:include\n",
		"bad group":         "//@oxy:shadow_maps x\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "color.wgsl"), []byte(src+before.Code), 0o644))
			err := l.Load()
			assert.ErrorIs(t, err, gpu.ErrShaderCompile)
			assert.Contains(t, err.Error(), "color:1")

			after, err := l.Vertex("color")
			require.NoError(t, err)
			assert.Equal(t, before.Code, after.Code)
		})
	}
}

func TestIncludeCycleFails(t *testing.T) {
	pp := newPreProcessor(map[string]string{
		"a": "//@oxy:include b\n",
		"b": "//@oxy:include c\n",
		"c": "//@oxy:include a\n",
	}, 1)
	// "a" is marked seen up front, so the cycle closes without error.
	_, err := pp.Process("a", "//@oxy:include b\n")
	require.NoError(t, err)

	deep := map[string]string{}
	for i := range maxIncludeDepth + 2 {
		deep[string(rune('a'+i))] = "//@oxy:include " + string(rune('a'+i+1)) + "\n"
	}
	_, err = newPreProcessor(deep, 1).Process("root", "//@oxy:include a\n")
	assert.ErrorContains(t, err, "nested deeper")
}

func TestUnknownProgram(t *testing.T) {
	l, err := NewLibrary()
	require.NoError(t, err)
	_, err = l.Vertex("missing")
	assert.ErrorIs(t, err, gpu.ErrShaderCompile)
}

func TestParseEntryPointIgnoresComments(t *testing.T) {
	src := "// @vertex fn fake()\n/* @fragment fn also_fake() /* nested */ */\n@vertex\nfn real() {}\n"
	assert.Equal(t, "real", parseEntryPoint(src, StageVertex))
	assert.Empty(t, parseEntryPoint(src, StagePixel))
}

func TestLibraryBuildsEveryPipeline(t *testing.T) {
	dev := sim.NewDevice()
	defer dev.Release()
	layouts, err := pipeline.NewLayouts(dev, 2)
	require.NoError(t, err)
	defer layouts.Release()

	l, err := NewLibrary(WithMaxShadows(2))
	require.NoError(t, err)
	set := pipeline.KeySet(true)
	lib := pipeline.NewLibrary(dev, layouts, set.Keys())
	defer lib.Release()
	require.NoError(t, lib.Build(l))

	for _, k := range set.Keys() {
		_, err := lib.Get(k)
		assert.NoError(t, err, k.String())
	}
}

func TestWatcherReportsEdits(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "color.wgsl"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))

	select {
	case names := <-w.Changes():
		assert.Equal(t, []string{"color"}, names)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}
