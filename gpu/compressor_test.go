package gpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/thmasq/anibuddy/bc7"
)

// stubBuffer satisfies hal.Buffer without a device. Task validation only
// inspects the BufferRegion fields, never the handle, so the embedded
// interface stays nil.
type stubBuffer struct{ hal.Buffer }

type addArgs struct {
	settings     *bc7.Settings
	source       BufferRegion
	width        int
	height       int
	dest         BufferRegion
	rowOffset    int
	blocksOffset int
}

func validAddArgs() addArgs {
	s := bc7.SettingsOpaqueBasic()
	return addArgs{
		settings: &s,
		source: BufferRegion{
			Buffer: stubBuffer{},
			Size:   64 * 64 * 4,
			Usage:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		},
		width:  64,
		height: 64,
		dest: BufferRegion{
			Buffer: stubBuffer{},
			Size:   uint64(bc7.BlocksByteSize(64, 64)),
			Usage:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
		},
	}
}

func TestAddTaskPreconditions(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*addArgs)
		wantErr error
	}{
		{"nil settings", func(a *addArgs) { a.settings = nil }, ErrNilResource},
		{"zero width", func(a *addArgs) { a.width = 0 }, ErrInvalidDimensions},
		{"width not multiple of 4", func(a *addArgs) { a.width = 62 }, ErrInvalidDimensions},
		{"negative height", func(a *addArgs) { a.height = -4 }, ErrInvalidDimensions},
		{"height not multiple of 4", func(a *addArgs) { a.height = 30 }, ErrInvalidDimensions},
		{"row offset not multiple of 4", func(a *addArgs) { a.rowOffset = 3 }, ErrUnalignedOffset},
		{"negative row offset", func(a *addArgs) { a.rowOffset = -4 }, ErrUnalignedOffset},
		{"blocks offset not multiple of 4", func(a *addArgs) { a.blocksOffset = 6 }, ErrUnalignedOffset},
		{"negative blocks offset", func(a *addArgs) { a.blocksOffset = -16 }, ErrUnalignedOffset},
		{"nil source buffer", func(a *addArgs) { a.source.Buffer = nil }, ErrNilResource},
		{"nil destination buffer", func(a *addArgs) { a.dest.Buffer = nil }, ErrNilResource},
		{"destination without storage usage", func(a *addArgs) {
			a.dest.Usage = gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
		}, ErrMissingStorageUsage},
		{"source too small", func(a *addArgs) { a.source.Size = 64*64*4 - 1 }, ErrBufferTooSmall},
		{"row offset pushes read past source", func(a *addArgs) { a.rowOffset = 4 }, ErrBufferTooSmall},
		{"destination too small", func(a *addArgs) { a.dest.Size-- }, ErrBufferTooSmall},
		{"blocks offset pushes write past destination", func(a *addArgs) { a.blocksOffset = 16 }, ErrBufferTooSmall},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &BlockCompressor{}
			a := validAddArgs()
			tc.mutate(&a)
			err := c.AddTask(a.settings, a.source, a.width, a.height, a.dest, a.rowOffset, a.blocksOffset)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("AddTask: got %v, want %v", err, tc.wantErr)
			}
			if got := c.TaskCount(); got != 0 {
				t.Fatalf("rejected task was queued: TaskCount = %d", got)
			}
		})
	}
}

func TestAddTaskRejectsBadSettings(t *testing.T) {
	c := &BlockCompressor{}
	a := validAddArgs()
	bad := *a.settings
	bad.Channels = 5
	err := c.AddTask(&bad, a.source, a.width, a.height, a.dest, 0, 0)
	if bc7.ErrorCodeOf(err) != bc7.ErrBadSettings {
		t.Fatalf("AddTask with channels=5: got %v, want bad settings", err)
	}
}

func TestAddTaskQueuesValidTasks(t *testing.T) {
	c := &BlockCompressor{}
	a := validAddArgs()

	if err := c.AddTask(a.settings, a.source, a.width, a.height, a.dest, 0, 0); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	// A second image packed below the first in the same pair of buffers.
	a.source.Size = 2 * 64 * 64 * 4
	a.dest.Size = uint64(2 * bc7.BlocksByteSize(64, 64))
	if err := c.AddTask(a.settings, a.source, a.width, a.height, a.dest, 64, bc7.BlocksByteSize(64, 64)); err != nil {
		t.Fatalf("AddTask with offsets: %v", err)
	}

	if got := c.TaskCount(); got != 2 {
		t.Fatalf("TaskCount = %d, want 2", got)
	}

	// Settings are copied at add time; later edits must not reach the queue.
	a.settings.Channels = 5
	if c.tasks[0].settings.Channels != 3 {
		t.Fatal("queued task aliases caller settings")
	}
}

func TestCompressEmptyBatchIsNoOp(t *testing.T) {
	c := &BlockCompressor{}
	if err := c.Compress(nil); err != nil {
		t.Fatalf("Compress with no tasks: %v", err)
	}
}

func TestPackUniforms(t *testing.T) {
	buf := make([]byte, uniformsSize)
	packUniforms(buf, 128, 64, 8, 4096)

	want := []uint32{128, 64, 8, 1024}
	for i, w := range want {
		if got := binary.LittleEndian.Uint32(buf[i*4:]); got != w {
			t.Errorf("uniform word %d: got %d, want %d", i, got, w)
		}
	}
}

func TestPackSettingsLayout(t *testing.T) {
	s := bc7.Settings{
		Channels:                4,
		EnabledModes:            [8]bool{true, false, true, false, false, true, true, false},
		RefineIterations:        [8]int{1, 2, 3, 4, 5, 6, 7, 8},
		RefineIterationsChannel: 9,
		FastSkipThresholdMode1:  12,
		FastSkipThresholdMode3:  8,
		FastSkipThresholdMode7:  4,
		Mode45Channel0:          3,
		SkipMode2:               true,
	}
	buf := make([]byte, packedSettingsSize)
	packSettings(buf, &s)

	word := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }

	wantModes := []uint32{1, 0, 1, 0, 0, 1, 1, 0}
	for i, w := range wantModes {
		if got := word(i * 4); got != w {
			t.Errorf("enabled_modes[%d]: got %d, want %d", i, got, w)
		}
	}
	for i := 0; i < 8; i++ {
		if got := word(32 + i*4); got != uint32(i+1) {
			t.Errorf("refine_iterations[%d]: got %d, want %d", i, got, i+1)
		}
	}
	scalars := []struct {
		name string
		off  int
		want uint32
	}{
		{"fast_skip_threshold_mode1", 64, 12},
		{"fast_skip_threshold_mode3", 68, 8},
		{"fast_skip_threshold_mode7", 72, 4},
		{"mode45_channel0", 76, 3},
		{"refine_iterations_channel", 80, 9},
		{"skip_mode2", 84, 1},
		{"channels", 88, 4},
	}
	for _, sc := range scalars {
		if got := word(sc.off); got != sc.want {
			t.Errorf("%s at offset %d: got %d, want %d", sc.name, sc.off, got, sc.want)
		}
	}
}

func TestSlotStrides(t *testing.T) {
	if got := alignUp(uniformsSize, slotAlignment); got != 256 {
		t.Errorf("uniform stride: got %d, want 256", got)
	}
	if got := alignUp(packedSettingsSize, slotAlignment); got != 256 {
		t.Errorf("settings stride: got %d, want 256", got)
	}
	if got := alignUp(256, slotAlignment); got != 256 {
		t.Errorf("alignUp(256): got %d", got)
	}
	if got := alignUp(257, slotAlignment); got != 512 {
		t.Errorf("alignUp(257): got %d", got)
	}
}

func TestGrowZeroed(t *testing.T) {
	buf := growZeroed(nil, 64)
	if len(buf) != 64 {
		t.Fatalf("len = %d, want 64", len(buf))
	}
	for i := range buf {
		buf[i] = 0xAA
	}

	// Shrinking within capacity must reuse the backing array and clear it.
	small := growZeroed(buf, 16)
	if &small[0] != &buf[0] {
		t.Error("reallocated despite sufficient capacity")
	}
	for i, b := range small {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %#x", i, b)
		}
	}
}

func TestVariantNames(t *testing.T) {
	if got := VariantBC7.String(); got != "bc7" {
		t.Errorf("VariantBC7.String() = %q", got)
	}
	if got := VariantBC7.entryPoint(); got != "compress_bc7" {
		t.Errorf("VariantBC7.entryPoint() = %q", got)
	}
	if got := Variant(9).String(); got != "variant(9)" {
		t.Errorf("Variant(9).String() = %q", got)
	}
}
