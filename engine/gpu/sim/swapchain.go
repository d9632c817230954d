package sim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

type swapChain struct {
	dev     *Device
	format  gpu.Format
	tearing bool
	buffers []*Texture
	current int
}

var _ gpu.SwapChain = &swapChain{}

func (s *swapChain) create(count int, width, height uint32) error {
	if count < 2 {
		return fmt.Errorf("sim: swap chain needs at least 2 buffers, got %d", count)
	}
	s.buffers = make([]*Texture, count)
	for i := range s.buffers {
		t, err := s.dev.CreateTexture(gpu.TextureDesc{
			Label:        fmt.Sprintf("back buffer %d", i),
			Width:        width,
			Height:       height,
			Format:       s.format,
			Usage:        gpu.TextureUsageRenderTarget,
			InitialState: gpu.StatePresent,
		})
		if err != nil {
			return err
		}
		s.buffers[i] = t.(*Texture)
	}
	s.current = 0
	return nil
}

func (s *swapChain) BufferCount() int { return len(s.buffers) }
func (s *swapChain) CurrentBackBufferIndex() int { return s.current }
func (s *swapChain) BackBuffer(i int) gpu.Texture { return s.buffers[i] }
func (s *swapChain) Format() gpu.Format { return s.format }
func (s *swapChain) SupportsTearing() bool { return s.tearing }
func (s *swapChain) Release() {}

func (s *swapChain) Present(syncInterval int, flags gpu.PresentFlags) error {
	if flags&gpu.PresentAllowTearing != 0 && (syncInterval != 0 || !s.tearing) {
		return fmt.Errorf("sim: tearing requested with sync interval %d (supported=%t): %w", syncInterval, s.tearing, gpu.ErrInvalidState)
	}
	bb := s.buffers[s.current]
	s.dev.enqueue(func() {
		s.dev.mu.Lock()
		defer s.dev.mu.Unlock()
		s.dev.stats.Presents++
		s.dev.stats.LastPresentInterval = syncInterval
		s.dev.stats.LastPresentFlags = flags
		s.dev.expect(bb, gpu.StatePresent, "presented back buffer")
	})
	s.current = (s.current + 1) % len(s.buffers)
	return nil
}

func (s *swapChain) Resize(width, height uint32) error {
	s.dev.Idle()
	s.dev.mu.Lock()
	for _, b := range s.buffers {
		delete(s.dev.states, b)
	}
	s.dev.mu.Unlock()
	return s.create(len(s.buffers), width, height)
}
