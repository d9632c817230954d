package sim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
)

// executor carries binding state while a list runs on the timeline.
type executor struct {
	dev       *Device
	pass      *gpu.PassDesc
	pipeline  *pipelineState
	root      *rootSignature
	heap      *gpu.DescriptorHeap
	tables    map[int]gpu.DescriptorRange
	constants map[int][]byte
}

type command func(ex *executor)

type commandList struct {
	dev   *Device
	label string
	alloc *allocator
	open  bool
	cmds  []command
	// inPass is tracked at record time to catch unbalanced passes.
	inPass bool
}

var _ gpu.CommandList = &commandList{}

func (c *commandList) Reset(alloc gpu.CommandAllocator) error {
	if c.open {
		return fmt.Errorf("sim: reset of open list %q: %w", c.label, gpu.ErrInvalidState)
	}
	a, ok := alloc.(*allocator)
	if !ok {
		return fmt.Errorf("sim: foreign allocator %T", alloc)
	}
	c.alloc = a
	c.open = true
	c.inPass = false
	c.cmds = nil
	return nil
}

func (c *commandList) Close() error {
	if !c.open {
		return fmt.Errorf("sim: close of closed list %q: %w", c.label, gpu.ErrInvalidState)
	}
	if c.inPass {
		return fmt.Errorf("sim: list %q closed inside a pass: %w", c.label, gpu.ErrInvalidState)
	}
	c.open = false
	return nil
}

func (c *commandList) Discard() {
	c.open = false
	c.inPass = false
	c.cmds = nil
}

func (c *commandList) record(cmd command) {
	if !c.open {
		c.dev.mu.Lock()
		c.dev.violation("recording into closed list %q", c.label)
		c.dev.mu.Unlock()
		return
	}
	c.cmds = append(c.cmds, cmd)
}

func (c *commandList) ResourceBarrier(barriers ...gpu.Barrier) {
	bs := make([]gpu.Barrier, len(barriers))
	copy(bs, barriers)
	c.record(func(ex *executor) {
		d := ex.dev
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, b := range bs {
			d.stats.Barriers++
			if b.Before == b.After {
				d.violation("redundant barrier on %q (%s)", b.Resource.Label(), b.Before)
			}
			d.expect(b.Resource, b.Before, "barrier before-state of")
			d.states[b.Resource] = b.After
		}
	})
}

func (c *commandList) BeginPass(desc gpu.PassDesc) {
	c.inPass = true
	pd := desc
	pd.Color = append([]gpu.ColorAttachment(nil), desc.Color...)
	c.record(func(ex *executor) {
		d := ex.dev
		d.mu.Lock()
		d.stats.Passes++
		for _, a := range pd.Color {
			d.expect(a.Target, gpu.StateRenderTarget, "color attachment")
			if a.Clear {
				d.stats.Clears++
			}
		}
		if pd.Depth != nil {
			want := gpu.StateDepthWrite
			if pd.Depth.ReadOnly {
				want = gpu.StateDepthRead
			}
			d.expect(pd.Depth.Target, want, "depth attachment")
			if pd.Depth.Clear {
				d.stats.Clears++
			}
		}
		d.mu.Unlock()

		for _, a := range pd.Color {
			if t, ok := a.Target.(*Texture); ok && a.Clear {
				t.clearColor(a)
			}
		}
		if pd.Depth != nil && pd.Depth.Clear {
			if t, ok := pd.Depth.Target.(*Texture); ok {
				t.clearDepth(pd.Depth.ClearDepth)
			}
		}
		ex.pass = &pd
	})
}

func (c *commandList) EndPass() {
	if !c.inPass {
		c.dev.mu.Lock()
		c.dev.violation("EndPass without BeginPass in %q", c.label)
		c.dev.mu.Unlock()
	}
	c.inPass = false
	c.record(func(ex *executor) {
		ex.pass = nil
	})
}

func (c *commandList) SetRootSignature(rs gpu.RootSignature) {
	r, _ := rs.(*rootSignature)
	c.record(func(ex *executor) {
		ex.root = r
		ex.tables = make(map[int]gpu.DescriptorRange)
		ex.constants = make(map[int][]byte)
	})
}

func (c *commandList) SetDescriptorHeap(heap *gpu.DescriptorHeap) {
	c.record(func(ex *executor) {
		ex.heap = heap
	})
}

func (c *commandList) SetPipelineState(ps gpu.PipelineState) {
	p, _ := ps.(*pipelineState)
	c.record(func(ex *executor) {
		ex.pipeline = p
	})
}

func (c *commandList) SetRootConstants(param int, data []byte) {
	staged := make([]byte, len(data))
	copy(staged, data)
	c.record(func(ex *executor) {
		if ex.root == nil || param >= len(ex.root.params) || ex.root.params[param].Kind != gpu.RootParamConstants {
			ex.dev.mu.Lock()
			ex.dev.violation("root constants at invalid parameter %d", param)
			ex.dev.mu.Unlock()
			return
		}
		ex.constants[param] = staged
	})
}

func (c *commandList) SetDescriptorTable(param int, r gpu.DescriptorRange) {
	c.record(func(ex *executor) {
		if ex.root == nil || param >= len(ex.root.params) || ex.root.params[param].Kind != gpu.RootParamTable {
			ex.dev.mu.Lock()
			ex.dev.violation("descriptor table at invalid parameter %d", param)
			ex.dev.mu.Unlock()
			return
		}
		if ex.tables == nil {
			ex.tables = make(map[int]gpu.DescriptorRange)
		}
		ex.tables[param] = r
	})
}

func (c *commandList) SetViewport(gpu.Viewport) {}

func (c *commandList) SetScissor(gpu.Rect) {}

func (c *commandList) SetVertexBuffer(gpu.Buffer, uint32) {}

func (c *commandList) SetIndexBuffer(gpu.Buffer) {}

func (c *commandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	c.record(func(ex *executor) {
		d := ex.dev
		d.mu.Lock()
		d.stats.Draws++
		d.stats.Instances += int(instanceCount)
		if ex.pass == nil {
			d.violation("draw outside a pass")
		}
		if ex.pipeline == nil {
			d.violation("draw without a pipeline")
		}
		if ex.heap != nil && ex.root != nil {
			for param, r := range ex.tables {
				want := gpu.StateShaderResource
				for _, res := range ex.heap.Range(r) {
					if _, ok := res.(*Texture); ok {
						d.expect(res, want, fmt.Sprintf("table %d texture", param))
					}
				}
			}
		}
		hook := d.drawHook
		d.mu.Unlock()

		if hook == nil || ex.pass == nil || ex.pipeline == nil {
			return
		}
		consts := make(map[int][]byte, len(ex.constants))
		for k, v := range ex.constants {
			consts[k] = v
		}
		hook(Draw{
			Pipeline:      ex.pipeline.desc.Label,
			Pass:          *ex.pass,
			IndexCount:    indexCount,
			InstanceCount: instanceCount,
			StartInstance: startInstance,
			Constants:     consts,
		})
	})
}

func (c *commandList) CopyTextureToBuffer(src gpu.Texture, dst gpu.Buffer, fp gpu.Footprint) {
	st, sok := src.(*Texture)
	db, dok := dst.(*Buffer)
	c.record(func(ex *executor) {
		d := ex.dev
		d.mu.Lock()
		d.stats.Copies++
		if ex.pass != nil {
			d.violation("copy inside a pass")
		}
		d.expect(src, gpu.StateCopySource, "copy source")
		d.mu.Unlock()
		if !sok || !dok {
			return
		}
		if err := st.copyTo(db, fp); err != nil {
			d.mu.Lock()
			d.violation("copy: %v", err)
			d.mu.Unlock()
		}
	})
}

func (c *commandList) Release() {}
