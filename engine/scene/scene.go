// Package scene owns the drawable world: an arena of objects with stable indices
// into the transform and material tables, the meshes and materials they reference,
// the lights and their shadow maps, and the per-slot GPU buffers that carry instance
// and light data to the passes.
package scene

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
)

// Surface is the command recording surface the passes draw through.
type Surface interface {
	// DrawCategory records instanced draws for every visible object of category c.
	// Consecutive arena indices sharing a mesh (and a material when mode is
	// TextureBind) are merged into one draw. An empty category records nothing.
	//
	// Parameters:
	//   - cl: the command list, inside a pass with a pipeline set
	//   - c: the category to draw
	//   - mode: whether to bind each batch's material
	//   - layout: the bound pass layout, used for material bindings
	//   - stats: per-frame counters to update
	//
	// Returns:
	//   - int: the number of draws recorded
	DrawCategory(cl gpu.CommandList, c Category, mode TextureMode, layout pipeline.PassLayout, stats *profiler.FrameStats) int

	// UploadInstanceData writes every object's transform and every enabled light
	// into the buffers of frame slot slot.
	UploadInstanceData(slot int) error

	// SetShaderConstants pushes the per-frame constants for view and binds slot's
	// instance, light and shadow ranges on the bound layout.
	SetShaderConstants(cl gpu.CommandList, layout pipeline.PassLayout, view camera.View, slot int)
}

// Scene is a loaded, GPU-resident scene.
type Scene interface {
	Surface

	// Update advances dynamic objects by dt seconds and refreshes every shadow view.
	Update(dt float32)

	// SortTransparent reorders the transparent objects back to front for view.
	// Returns the number of transparent objects.
	SortTransparent(view camera.View) int

	// Object returns the object at arena index i, or nil if out of range.
	Object(i int) *Object

	// Count returns the number of objects in category c.
	Count(c Category) int

	// Len returns the number of objects in the arena.
	Len() int

	// TransparentOrder returns the current draw order of the transparent objects.
	TransparentOrder() []int

	// Lights returns the lights, shadow casters first.
	Lights() []light.Light

	// Shadows returns the shadow maps indexed by ShadowIndex. Empty when shadow mapping is off.
	Shadows() []*light.ShadowMap

	// SlotRanges returns the heap ranges of frame slot slot. The shadow range holds one
	// descriptor per shadow map.
	SlotRanges(slot int) (instances, lights, shadows gpu.DescriptorRange)

	// Bounds returns the bounding sphere of every object.
	Bounds() light.Bounds

	// Ambient returns the ambient light color.
	Ambient() [3]float32

	// Release frees every GPU resource. No slot may have pending work.
	Release()
}

// slotData is what each frame slot owns so uploads never touch in-flight buffers.
type slotData struct {
	instances     gpu.Buffer
	lights        gpu.Buffer
	instanceRange gpu.DescriptorRange
	lightRange    gpu.DescriptorRange
	shadowRange   gpu.DescriptorRange
	lightCount    uint32
}

type scene struct {
	mu sync.RWMutex

	dev     gpu.Device
	queue   gpu.Queue
	heap    *gpu.DescriptorHeap
	ambient [3]float32

	meshes     []*Mesh
	materials  []*Material
	objects    []Object
	transforms [][16]float32
	categories [numCategories][]int
	dynamic    []int

	lights  []light.Light
	shadows []*light.ShadowMap
	bounds  light.Bounds

	frames        []slotData
	instanceBytes []byte
	lightBytes    []byte
	slotCount     int
	shadowMapping bool
	shadowMapSize uint32
	maxShadows    int
	updateWorkers int
	updateChunk   int
	updatePool    worker.DynamicWorkerPool
}

var _ Scene = &scene{}

// NewScene creates every GPU resource desc needs: meshes, materials, per-slot
// instance and light buffers, and one shadow map per shadow-casting light when
// shadow mapping is on. Lights are reordered shadow casters first.
//
// Parameters:
//   - dev: the device to allocate on
//   - heap: the shared descriptor heap ranges are allocated from
//   - desc: the scene to create
//   - options: functional options
//
// Returns:
//   - Scene: the created scene
//   - error: an unknown mesh or material name, too many shadow casters, or a GPU failure
func NewScene(dev gpu.Device, heap *gpu.DescriptorHeap, desc *Description, options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		dev:           dev,
		queue:         dev.Queue(),
		heap:          heap,
		ambient:       desc.Ambient,
		lights:        slices.Clone(desc.Lights),
		slotCount:     2,
		shadowMapSize: light.DefaultShadowMapSize,
		maxShadows:    4,
		updateWorkers: max(runtime.NumCPU()-1, 1),
		updateChunk:   256,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.load(desc); err != nil {
		s.Release()
		return nil, err
	}
	s.updatePool = worker.NewDynamicWorkerPool(s.updateWorkers, 256, 1*time.Second)

	logger.Logger().Info("scene loaded",
		"objects", len(s.objects), "meshes", len(s.meshes), "materials", len(s.materials),
		"lights", len(s.lights), "shadow_maps", len(s.shadows))
	return s, nil
}

func (s *scene) load(desc *Description) error {
	meshIndex := make(map[string]int, len(desc.Meshes))
	for _, md := range desc.Meshes {
		m, err := newMesh(s.dev, s.queue, md)
		if err != nil {
			return err
		}
		meshIndex[md.Name] = len(s.meshes)
		s.meshes = append(s.meshes, m)
	}
	materialIndex := make(map[string]int, len(desc.Materials))
	for _, md := range desc.Materials {
		m, err := newMaterial(s.dev, s.queue, s.heap, md)
		if err != nil {
			return err
		}
		materialIndex[md.Name] = len(s.materials)
		s.materials = append(s.materials, m)
	}

	s.objects = make([]Object, 0, len(desc.Objects))
	for i, od := range desc.Objects {
		mi, ok := meshIndex[od.Mesh]
		if !ok {
			return fmt.Errorf("scene: object %q: unknown mesh %q", od.Name, od.Mesh)
		}
		ti, ok := materialIndex[od.Material]
		if !ok {
			return fmt.Errorf("scene: object %q: unknown material %q", od.Name, od.Material)
		}
		if od.Category < 0 || od.Category >= numCategories {
			return fmt.Errorf("scene: object %q: %s", od.Name, od.Category)
		}
		scale := od.Scale
		if scale == ([3]float32{}) {
			scale = [3]float32{1, 1, 1}
		}
		s.objects = append(s.objects, Object{
			Name:     od.Name,
			Category: od.Category,
			Position: od.Position,
			Rotation: od.Rotation,
			Scale:    scale,
			Spin:     od.Spin,
			Visible:  true,
			index:    i,
			mesh:     mi,
			material: ti,
		})
		s.categories[od.Category] = append(s.categories[od.Category], i)
		if od.Category == CategoryDynamic {
			s.dynamic = append(s.dynamic, i)
		}
	}
	s.transforms = make([][16]float32, len(s.objects))
	for i := range s.objects {
		s.objects[i].modelMatrix(s.transforms[i][:])
	}
	s.bounds = s.computeBounds()

	casters := light.SortShadowCastersFirst(s.lights)
	if s.shadowMapping {
		if casters > s.maxShadows {
			return fmt.Errorf("scene: %d shadow casters exceed the shadow table size %d", casters, s.maxShadows)
		}
		for _, l := range s.lights[:casters] {
			sm, err := light.NewShadowMap(s.dev, l, s.slotCount, s.shadowMapSize, s.bounds)
			if err != nil {
				return err
			}
			s.shadows = append(s.shadows, sm)
		}
	}

	return s.createSlots()
}

// createSlots allocates the per-slot buffers and heap ranges. The shadow range of
// each slot is exactly as long as the number of shadow maps.
func (s *scene) createSlots() error {
	instSize := uint64(max(len(s.objects), 1)) * pipeline.InstanceDataSize
	lightSize := uint64(min(max(len(s.lights), 1), light.MaxGPULights)) * light.GPULightSize
	s.instanceBytes = make([]byte, instSize)
	s.lightBytes = make([]byte, lightSize)

	for i := range s.slotCount {
		var f slotData
		var err error
		if f.instances, err = s.dev.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("instances slot %d", i),
			Size:  instSize,
			Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDest,
		}); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
		s.frames = append(s.frames, f)
		if s.frames[i].lights, err = s.dev.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("lights slot %d", i),
			Size:  lightSize,
			Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDest,
		}); err != nil {
			return fmt.Errorf("scene: %w", err)
		}

		fr := &s.frames[i]
		if fr.instanceRange, err = s.heap.Allocate(1); err != nil {
			return err
		}
		s.heap.Set(fr.instanceRange.Start, fr.instances)
		if fr.lightRange, err = s.heap.Allocate(1); err != nil {
			return err
		}
		s.heap.Set(fr.lightRange.Start, fr.lights)
		if fr.shadowRange, err = s.heap.Allocate(len(s.shadows)); err != nil {
			return err
		}
		for j, sm := range s.shadows {
			s.heap.Set(fr.shadowRange.Start+j, sm.Depth(i).Resource())
		}
	}
	return nil
}

func (s *scene) computeBounds() light.Bounds {
	if len(s.objects) == 0 {
		return light.Bounds{Radius: 1}
	}
	lo := s.objects[0].Position
	hi := lo
	for _, o := range s.objects {
		r := s.meshes[o.mesh].Radius() * max(o.Scale[0], o.Scale[1], o.Scale[2])
		for k := range 3 {
			lo[k] = min(lo[k], o.Position[k]-r)
			hi[k] = max(hi[k], o.Position[k]+r)
		}
	}
	var b light.Bounds
	var d [3]float32
	for k := range 3 {
		b.Center[k] = (lo[k] + hi[k]) / 2
		d[k] = hi[k] - lo[k]
	}
	b.Radius = max(vecLen(d)/2, 1)
	return b
}

func (s *scene) Update(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Dynamic objects are advanced in chunks on the update pool; each task owns a
	// disjoint range of transform rows.
	var wg sync.WaitGroup
	for id, start := 0, 0; start < len(s.dynamic); id, start = id+1, start+s.updateChunk {
		chunk := s.dynamic[start:min(start+s.updateChunk, len(s.dynamic))]
		wg.Add(1)
		s.updatePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for _, i := range chunk {
					o := &s.objects[i]
					for k := range 3 {
						o.Rotation[k] += o.Spin[k] * dt
					}
					o.modelMatrix(s.transforms[i][:])
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, sm := range s.shadows {
		sm.Update(s.bounds)
	}
}

func (s *scene) UploadInstanceData(slot int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot < 0 || slot >= len(s.frames) {
		return fmt.Errorf("scene: slot %d of %d", slot, len(s.frames))
	}
	f := &s.frames[slot]

	for i := range s.objects {
		d := pipeline.InstanceData{Model: s.transforms[i], ObjectID: s.objects[i].ID()}
		d.Marshal(s.instanceBytes[i*pipeline.InstanceDataSize:])
	}
	if len(s.objects) > 0 {
		if err := s.queue.WriteBuffer(f.instances, 0, s.instanceBytes[:len(s.objects)*pipeline.InstanceDataSize]); err != nil {
			return fmt.Errorf("scene: instances: %w", err)
		}
	}

	n := light.MarshalLights(s.lightBytes, s.lights, s.shadows)
	f.lightCount = uint32(n)
	if n > 0 {
		if err := s.queue.WriteBuffer(f.lights, 0, s.lightBytes[:n*light.GPULightSize]); err != nil {
			return fmt.Errorf("scene: lights: %w", err)
		}
	}
	return nil
}

func (s *scene) SetShaderConstants(cl gpu.CommandList, layout pipeline.PassLayout, view camera.View, slot int) {
	f := &s.frames[slot]
	layout.SetConstants(cl, pipeline.FrameConstants{
		ViewProj:    view.ViewProjection(),
		Eye:         view.Eye(),
		LightCount:  f.lightCount,
		Ambient:     s.ambient,
		ShadowCount: uint32(len(s.shadows)),
	})
	layout.SetInstances(cl, f.instanceRange)
	layout.SetLights(cl, f.lightRange, f.shadowRange)
	cl.SetViewport(view.Viewport())
	cl.SetScissor(view.Scissor())
}

func (s *scene) DrawCategory(cl gpu.CommandList, c Category, mode TextureMode, layout pipeline.PassLayout, stats *profiler.FrameStats) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c < 0 || c >= numCategories {
		return 0
	}

	order := s.categories[c]
	draws := 0
	lastMesh, lastMaterial := -1, -1
	for i := 0; i < len(order); {
		first := &s.objects[order[i]]
		if !first.Visible {
			i++
			continue
		}
		j := i + 1
		for ; j < len(order); j++ {
			prev, next := &s.objects[order[j-1]], &s.objects[order[j]]
			if !next.Visible || next.index != prev.index+1 || next.mesh != first.mesh {
				break
			}
			if mode == TextureBind && next.material != first.material {
				break
			}
		}

		if mode == TextureBind && first.material != lastMaterial {
			layout.SetMaterial(cl, s.materials[first.material].Range())
			lastMaterial = first.material
		}
		mesh := s.meshes[first.mesh]
		if first.mesh != lastMesh {
			mesh.bind(cl)
			lastMesh = first.mesh
		}
		count := j - i
		cl.DrawIndexedInstanced(mesh.IndexCount(), uint32(count), 0, 0, uint32(first.index))
		if stats != nil {
			stats.AddDraw(int(c), count)
		}
		draws++
		i = j
	}
	return draws
}

func (s *scene) SortTransparent(view camera.View) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.categories[CategoryTransparent]
	if len(order) < 2 {
		return len(order)
	}
	vm := view.ViewMatrix()
	SortBackToFront(order, func(i int) float32 {
		return viewDistance(vm, s.objects[i].Position)
	})
	return len(order)
}

// SortBackToFront stably reorders order so the entry with the greatest distance
// comes first. Entries at equal distance keep their relative order, so sorting
// an already sorted order changes nothing.
//
// Parameters:
//   - order: arena indices, reordered in place
//   - distance: view-space distance of an arena index
func SortBackToFront(order []int, distance func(i int) float32) {
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(distance(b), distance(a))
	})
}

// viewDistance returns the distance in front of the camera of world point p,
// which is minus the view-space z for a right-handed view looking down -Z.
func viewDistance(view [16]float32, p [3]float32) float32 {
	return -(view[2]*p[0] + view[6]*p[1] + view[10]*p[2] + view[14])
}

func (s *scene) Object(i int) *Object {
	if i < 0 || i >= len(s.objects) {
		return nil
	}
	return &s.objects[i]
}

func (s *scene) Count(c Category) int {
	if c < 0 || c >= numCategories {
		return 0
	}
	return len(s.categories[c])
}

func (s *scene) Len() int {
	return len(s.objects)
}

func (s *scene) TransparentOrder() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories[CategoryTransparent])
}

func (s *scene) Lights() []light.Light {
	return s.lights
}

func (s *scene) Shadows() []*light.ShadowMap {
	return s.shadows
}

func (s *scene) SlotRanges(slot int) (instances, lights, shadows gpu.DescriptorRange) {
	f := &s.frames[slot]
	return f.instanceRange, f.lightRange, f.shadowRange
}

func (s *scene) Bounds() light.Bounds {
	return s.bounds
}

func (s *scene) Ambient() [3]float32 {
	return s.ambient
}

func (s *scene) Release() {
	if s.updatePool != nil {
		s.updatePool.Stop()
	}
	for _, f := range s.frames {
		if f.instances != nil {
			f.instances.Release()
		}
		if f.lights != nil {
			f.lights.Release()
		}
	}
	s.frames = nil
	for _, sm := range s.shadows {
		sm.Release()
	}
	s.shadows = nil
	for _, m := range s.materials {
		m.release()
	}
	s.materials = nil
	for _, m := range s.meshes {
		m.release()
	}
	s.meshes = nil
}
