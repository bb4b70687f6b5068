package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/thmasq/anibuddy/bc7"
)

var (
	// ErrInvalidDimensions is returned when a task's width or height is not
	// a positive multiple of 4.
	ErrInvalidDimensions = errors.New("gpu: dimensions must be positive multiples of 4")

	// ErrUnalignedOffset is returned when a task's row offset or blocks
	// offset is negative or not a multiple of 4.
	ErrUnalignedOffset = errors.New("gpu: offset must be a non-negative multiple of 4")

	// ErrMissingStorageUsage is returned when the destination buffer was
	// not created with storage usage.
	ErrMissingStorageUsage = errors.New("gpu: destination buffer lacks storage usage")

	// ErrBufferTooSmall is returned when a source or destination region
	// cannot hold the data implied by the task's dimensions.
	ErrBufferTooSmall = errors.New("gpu: buffer too small")

	// ErrNilResource is returned when a task references a nil buffer or
	// nil settings.
	ErrNilResource = errors.New("gpu: nil resource")
)

// Variant selects the block codec a task is compressed with.
type Variant int

const (
	// VariantBC7 compresses 4x4 RGBA8 tiles into 16-byte BC7 blocks.
	VariantBC7 Variant = iota

	variantCount
)

func (v Variant) String() string {
	switch v {
	case VariantBC7:
		return "bc7"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

func (v Variant) entryPoint() string {
	return "compress_" + v.String()
}

// BufferRegion describes a caller-owned device buffer together with the
// size and usage it was created with. hal buffers do not expose their
// descriptors, so tasks restate them for precondition checks.
type BufferRegion struct {
	Buffer hal.Buffer
	Size   uint64
	Usage  gputypes.BufferUsage
}

type task struct {
	variant      Variant
	settings     bc7.Settings
	source       BufferRegion
	dest         BufferRegion
	width        int
	height       int
	rowOffset    int
	blocksOffset int
}

const (
	// uniformsSize is the packed size of a per-task uniform block.
	uniformsSize = 16

	// packedSettingsSize is the packed size of a per-task settings slot.
	packedSettingsSize = 92

	// slotAlignment covers the minimum uniform and storage buffer offset
	// alignments required by every backend we run on.
	slotAlignment = 256

	// initialSlots is the per-task slot count allocated up front.
	initialSlots = 16
)

// BlockCompressor batches texture compression work and records it into a
// caller-provided command encoder, one compute dispatch per task.
//
// Accumulate tasks with AddTask, then call Compress once per frame with the
// encoder the caller is about to submit. Accumulation is single threaded
// and nothing here waits on the GPU; submission stays with the caller.
type BlockCompressor struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  [variantCount]hal.ComputePipeline

	// Per-task slot buffers, grown to fit the largest batch seen so far.
	uniformBuf     hal.Buffer
	settingsBuf    hal.Buffer
	slotCap        int
	uniformStride  int
	settingsStride int

	scratch []byte
	tasks   []task

	// Bind groups recorded into the previous batch's encoder. They stay
	// alive until the next Compress or Close, by which point the caller
	// must have submitted that encoder.
	retired []hal.BindGroup
}

// NewBlockCompressor compiles the compression kernels and allocates the
// shared per-task slot buffers on device.
func NewBlockCompressor(device hal.Device, queue hal.Queue) (*BlockCompressor, error) {
	c := &BlockCompressor{
		device:         device,
		queue:          queue,
		uniformStride:  alignUp(uniformsSize, slotAlignment),
		settingsStride: alignUp(packedSettingsSize, slotAlignment),
	}

	spirv, err := compileShader("bc7.wgsl", bc7ShaderWGSL)
	if err != nil {
		return nil, err
	}
	c.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "block_compressor",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module: %w", err)
	}

	c.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "block_compressor_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	c.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "block_compressor_pl",
		BindGroupLayouts: []hal.BindGroupLayout{c.bindLayout},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	for v := Variant(0); v < variantCount; v++ {
		c.pipelines[v], err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  v.entryPoint(),
			Layout: c.pipeLayout,
			Compute: hal.ComputeState{
				Module:     c.shader,
				EntryPoint: v.entryPoint(),
			},
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("gpu: create %s pipeline: %w", v, err)
		}
	}

	if err := c.createSlotBuffers(initialSlots); err != nil {
		c.Close()
		return nil, err
	}

	slogger().Debug("gpu: block compressor ready",
		"variants", int(variantCount),
		"slots", initialSlots)
	return c, nil
}

// AddTask queues one image for compression in the next batch. The source
// region holds packed RGBA8 pixels, one u32 per texel with rows of width
// texels; rowOffset selects the first row to read. Compressed blocks are
// written to dest starting blocksOffset bytes in. Settings are copied at
// call time, so the caller may reuse them.
//
// Malformed tasks are rejected here rather than at dispatch.
func (c *BlockCompressor) AddTask(settings *bc7.Settings, source BufferRegion, width, height int, dest BufferRegion, rowOffset, blocksOffset int) error {
	if settings == nil {
		return fmt.Errorf("%w: settings", ErrNilResource)
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	t := task{
		variant:      VariantBC7,
		settings:     *settings,
		source:       source,
		dest:         dest,
		width:        width,
		height:       height,
		rowOffset:    rowOffset,
		blocksOffset: blocksOffset,
	}
	if err := validateTask(&t); err != nil {
		return err
	}
	c.tasks = append(c.tasks, t)
	return nil
}

// TaskCount returns the number of tasks queued for the next batch.
func (c *BlockCompressor) TaskCount() int { return len(c.tasks) }

func validateTask(t *task) error {
	if t.width <= 0 || t.height <= 0 || t.width%4 != 0 || t.height%4 != 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, t.width, t.height)
	}
	if t.rowOffset < 0 || t.rowOffset%4 != 0 {
		return fmt.Errorf("%w: row offset %d", ErrUnalignedOffset, t.rowOffset)
	}
	if t.blocksOffset < 0 || t.blocksOffset%4 != 0 {
		return fmt.Errorf("%w: blocks offset %d", ErrUnalignedOffset, t.blocksOffset)
	}
	if t.source.Buffer == nil {
		return fmt.Errorf("%w: source buffer", ErrNilResource)
	}
	if t.dest.Buffer == nil {
		return fmt.Errorf("%w: destination buffer", ErrNilResource)
	}
	if t.dest.Usage&gputypes.BufferUsageStorage == 0 {
		return ErrMissingStorageUsage
	}
	srcNeed := uint64(t.rowOffset+t.height) * uint64(t.width) * 4
	if t.source.Size < srcNeed {
		return fmt.Errorf("%w: source holds %d bytes, task reads %d", ErrBufferTooSmall, t.source.Size, srcNeed)
	}
	dstNeed := uint64(t.blocksOffset) + uint64(bc7.BlocksByteSize(t.width, t.height))
	if t.dest.Size < dstNeed {
		return fmt.Errorf("%w: destination holds %d bytes, task writes through %d", ErrBufferTooSmall, t.dest.Size, dstNeed)
	}
	return nil
}

// Compress records one compute pass per queued task into encoder and clears
// the task list, even on error. The caller submits the encoder; bind groups
// recorded here are released on the next Compress or Close, by which time
// the previous batch must have been submitted.
func (c *BlockCompressor) Compress(encoder hal.CommandEncoder) error {
	c.releaseRetired()
	if len(c.tasks) == 0 {
		return nil
	}
	defer func() { c.tasks = c.tasks[:0] }()

	if err := c.ensureSlotCapacity(len(c.tasks)); err != nil {
		return err
	}
	c.uploadSlots()

	for i := range c.tasks {
		t := &c.tasks[i]
		bindGroup, err := c.createTaskBindGroup(t, i)
		if err != nil {
			return fmt.Errorf("gpu: bind group for task %d: %w", i, err)
		}
		c.retired = append(c.retired, bindGroup)

		blocksX := uint32((t.width + 3) / 4)
		blocksY := uint32((t.height + 3) / 4)
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
			Label: t.variant.entryPoint(),
		})
		pass.SetPipeline(c.pipelines[t.variant])
		pass.SetBindGroup(0, bindGroup, nil)
		pass.Dispatch((blocksX+7)/8, (blocksY+7)/8, 1)
		pass.End()
	}

	slogger().Debug("gpu: batch recorded", "tasks", len(c.tasks))
	return nil
}

// Close releases every GPU resource the compressor owns, including bind
// groups still retired from the last batch, so that batch must have been
// submitted and completed first.
func (c *BlockCompressor) Close() {
	if c.device == nil {
		return
	}
	c.releaseRetired()
	for v, p := range c.pipelines {
		if p != nil {
			c.device.DestroyComputePipeline(p)
			c.pipelines[v] = nil
		}
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
	if c.uniformBuf != nil {
		c.device.DestroyBuffer(c.uniformBuf)
		c.uniformBuf = nil
	}
	if c.settingsBuf != nil {
		c.device.DestroyBuffer(c.settingsBuf)
		c.settingsBuf = nil
	}
	c.slotCap = 0
	c.tasks = nil
	c.device = nil
	c.queue = nil
}

func (c *BlockCompressor) createSlotBuffers(slots int) error {
	var err error
	c.uniformBuf, err = c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "block_compressor_uniforms",
		Size:  uint64(slots * c.uniformStride),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create uniform slots: %w", err)
	}
	c.settingsBuf, err = c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "block_compressor_settings",
		Size:  uint64(slots * c.settingsStride),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create settings slots: %w", err)
	}
	c.slotCap = slots
	return nil
}

// ensureSlotCapacity grows the slot buffers to exactly n tasks. Grow only;
// contents are rewritten in full before every batch, so nothing is copied.
func (c *BlockCompressor) ensureSlotCapacity(n int) error {
	if n <= c.slotCap {
		return nil
	}
	if c.uniformBuf != nil {
		c.device.DestroyBuffer(c.uniformBuf)
		c.uniformBuf = nil
	}
	if c.settingsBuf != nil {
		c.device.DestroyBuffer(c.settingsBuf)
		c.settingsBuf = nil
	}
	c.slotCap = 0
	slogger().Debug("gpu: growing task slots", "tasks", n)
	return c.createSlotBuffers(n)
}

// uploadSlots writes every task's uniform block and settings into their
// aligned slots, one WriteBuffer per shared buffer.
func (c *BlockCompressor) uploadSlots() {
	n := len(c.tasks)

	c.scratch = growZeroed(c.scratch, n*c.uniformStride)
	for i := range c.tasks {
		t := &c.tasks[i]
		packUniforms(c.scratch[i*c.uniformStride:], t.width, t.height, t.rowOffset, t.blocksOffset)
	}
	c.queue.WriteBuffer(c.uniformBuf, 0, c.scratch)

	c.scratch = growZeroed(c.scratch, n*c.settingsStride)
	for i := range c.tasks {
		packSettings(c.scratch[i*c.settingsStride:], &c.tasks[i].settings)
	}
	c.queue.WriteBuffer(c.settingsBuf, 0, c.scratch)
}

func (c *BlockCompressor) createTaskBindGroup(t *task, slot int) (hal.BindGroup, error) {
	return c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("%s_task_%d", t.variant, slot),
		Layout: c.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: t.source.Buffer.NativeHandle(), Offset: 0, Size: t.source.Size}},
			{Binding: 1, Resource: gputypes.BufferBinding{
				Buffer: t.dest.Buffer.NativeHandle(), Offset: 0, Size: t.dest.Size}},
			{Binding: 2, Resource: gputypes.BufferBinding{
				Buffer: c.uniformBuf.NativeHandle(), Offset: uint64(slot * c.uniformStride), Size: uniformsSize}},
			{Binding: 3, Resource: gputypes.BufferBinding{
				Buffer: c.settingsBuf.NativeHandle(), Offset: uint64(slot * c.settingsStride), Size: packedSettingsSize}},
		},
	})
}

func (c *BlockCompressor) releaseRetired() {
	for _, g := range c.retired {
		c.device.DestroyBindGroup(g)
	}
	c.retired = c.retired[:0]
}

// packUniforms lays out a task's uniform block: width and height in texels,
// the first source row, and the destination offset in u32 elements.
func packUniforms(dst []byte, width, height, rowOffset, blocksOffset int) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(width))
	binary.LittleEndian.PutUint32(dst[4:], uint32(height))
	binary.LittleEndian.PutUint32(dst[8:], uint32(rowOffset))
	binary.LittleEndian.PutUint32(dst[12:], uint32(blocksOffset/4))
}

// packSettings lays out a settings slot in the field order the kernel's
// Settings struct declares.
func packSettings(dst []byte, s *bc7.Settings) {
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], boolWord(s.EnabledModes[i]))
	}
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint32(dst[32+i*4:], uint32(s.RefineIterations[i]))
	}
	binary.LittleEndian.PutUint32(dst[64:], uint32(s.FastSkipThresholdMode1))
	binary.LittleEndian.PutUint32(dst[68:], uint32(s.FastSkipThresholdMode3))
	binary.LittleEndian.PutUint32(dst[72:], uint32(s.FastSkipThresholdMode7))
	binary.LittleEndian.PutUint32(dst[76:], uint32(s.Mode45Channel0))
	binary.LittleEndian.PutUint32(dst[80:], uint32(s.RefineIterationsChannel))
	binary.LittleEndian.PutUint32(dst[84:], boolWord(s.SkipMode2))
	binary.LittleEndian.PutUint32(dst[88:], uint32(s.Channels))
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func growZeroed(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}
