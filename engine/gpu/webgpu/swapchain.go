package webgpu

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// swapChain presents through the device surface. WebGPU hands out one surface
// texture per frame, so the back buffers are stable proxies that resolve to the
// acquired texture when a list that renders into them is submitted.
type swapChain struct {
	dev     *Device
	width   uint32
	height  uint32
	format  gpu.Format
	native  wgpu.TextureFormat
	alpha   wgpu.CompositeAlphaMode
	modes   []wgpu.PresentMode
	mode    wgpu.PresentMode
	buffers []*backBuffer
	current int

	frame *wgpu.Texture
	view  *wgpu.TextureView
}

var _ gpu.SwapChain = &swapChain{}

// pick chooses the surface format, preferring want when the surface offers it.
func (s *swapChain) pick(want gpu.Format) {
	caps := s.dev.surface.GetCapabilities(s.dev.adapter)
	s.native = caps.Formats[0]
	for _, f := range []gpu.Format{want, gpu.FormatBGRA8Unorm, gpu.FormatRGBA8Unorm} {
		if slices.Contains(caps.Formats, textureFormat(f)) {
			s.native = textureFormat(f)
			break
		}
	}
	s.format = fromTextureFormat(s.native)
	s.alpha = caps.AlphaModes[0]
	s.modes = caps.PresentModes
}

func (s *swapChain) configure() {
	s.dev.surface.Configure(s.dev.adapter, s.dev.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.native,
		Width:       s.width,
		Height:      s.height,
		PresentMode: s.mode,
		AlphaMode:   s.alpha,
	})
}

func (s *swapChain) acquire() (*wgpu.TextureView, error) {
	if s.view != nil {
		return s.view, nil
	}
	tex, err := s.dev.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("surface view: %w", err)
	}
	s.frame, s.view = tex, view
	return view, nil
}

func (s *swapChain) releaseFrame() {
	if s.view != nil {
		s.view.Release()
		s.view = nil
	}
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

func (s *swapChain) BufferCount() int { return len(s.buffers) }
func (s *swapChain) CurrentBackBufferIndex() int { return s.current }
func (s *swapChain) BackBuffer(i int) gpu.Texture { return s.buffers[i] }
func (s *swapChain) Format() gpu.Format { return s.format }

func (s *swapChain) SupportsTearing() bool {
	return slices.Contains(s.modes, wgpu.PresentModeImmediate)
}

// Present shows the acquired surface texture. The present mode follows the sync
// interval and takes effect from the next frame.
func (s *swapChain) Present(syncInterval int, flags gpu.PresentFlags) error {
	tearing := flags&gpu.PresentAllowTearing != 0
	if tearing && (syncInterval != 0 || !s.SupportsTearing()) {
		return fmt.Errorf("webgpu: tearing requested with sync interval %d (supported=%t): %w", syncInterval, s.SupportsTearing(), gpu.ErrInvalidState)
	}
	if s.frame != nil {
		s.dev.surface.Present()
		s.releaseFrame()
	}
	s.current = (s.current + 1) % len(s.buffers)

	mode := wgpu.PresentModeFifo
	switch {
	case syncInterval > 0:
	case tearing:
		mode = wgpu.PresentModeImmediate
	case slices.Contains(s.modes, wgpu.PresentModeMailbox):
		mode = wgpu.PresentModeMailbox
	}
	if mode != s.mode {
		s.mode = mode
		s.configure()
	}
	return nil
}

func (s *swapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("webgpu: swap chain resize to %dx%d", width, height)
	}
	s.releaseFrame()
	s.width, s.height = width, height
	s.configure()
	s.current = 0
	return nil
}

func (s *swapChain) Release() {
	s.releaseFrame()
}

// backBuffer stands in for the surface texture of one swap chain slot.
type backBuffer struct {
	sc    *swapChain
	label string
}

var _ gpu.Texture = &backBuffer{}

func (b *backBuffer) Label() string { return b.label }
func (b *backBuffer) Width() uint32 { return b.sc.width }
func (b *backBuffer) Height() uint32 { return b.sc.height }
func (b *backBuffer) Format() gpu.Format { return b.sc.format }
func (b *backBuffer) Release() {}

func (b *backBuffer) acquire() (*wgpu.TextureView, error) {
	return b.sc.acquire()
}
