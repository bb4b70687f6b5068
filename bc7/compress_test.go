package bc7_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/thmasq/anibuddy/bc7"
)

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// makeTestImage builds smooth gradients with mild noise, the content block
// compression is designed for.
func makeTestImage(width, height int, opaque bool, seed int64) []byte {
	rnd := rand.New(rand.NewSource(seed))
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * 4
			noise := rnd.Intn(33) - 16
			pix[off+0] = clampByte(x*255/width + noise)
			pix[off+1] = clampByte(y*255/height + noise)
			pix[off+2] = clampByte((x+y)*128/(width+height) + 64 + noise)
			if opaque {
				pix[off+3] = 255
			} else {
				pix[off+3] = clampByte(y*255/height + noise)
			}
		}
	}
	return pix
}

func channelError(t *testing.T, a, b []byte, channels int) (maxErr int, sse int64) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("buffer length mismatch: %d vs %d", len(a), len(b))
	}
	for k := 0; k < len(a)/4; k++ {
		for p := 0; p < channels; p++ {
			d := int(a[k*4+p]) - int(b[k*4+p])
			if d < 0 {
				d = -d
			}
			if d > maxErr {
				maxErr = d
			}
			sse += int64(d) * int64(d)
		}
	}
	return maxErr, sse
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	const width, height = 32, 16

	cases := []struct {
		name     string
		settings bc7.Settings
		opaque   bool
	}{
		{"opaque-ultrafast", bc7.SettingsOpaqueUltraFast(), true},
		{"opaque-fast", bc7.SettingsOpaqueFast(), true},
		{"opaque-basic", bc7.SettingsOpaqueBasic(), true},
		{"alpha-fast", bc7.SettingsAlphaFast(), false},
		{"alpha-basic", bc7.SettingsAlphaBasic(), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pix := makeTestImage(width, height, tc.opaque, 21)

			blocks := make([]byte, bc7.BlocksByteSize(width, height))
			if err := bc7.CompressRGBA8(&tc.settings, pix, blocks, width, height, width*4); err != nil {
				t.Fatalf("CompressRGBA8: %v", err)
			}

			decoded := make([]byte, width*height*4)
			if err := bc7.DecompressRGBA8(blocks, decoded, width, height); err != nil {
				t.Fatalf("DecompressRGBA8: %v", err)
			}

			maxErr, sse := channelError(t, pix, decoded, tc.settings.Channels)
			if maxErr > 48 {
				t.Fatalf("max channel error %d exceeds bound", maxErr)
			}
			avg := float64(sse) / float64(width*height*tc.settings.Channels)
			if avg > 64 {
				t.Fatalf("mean squared error %.1f exceeds bound", avg)
			}
		})
	}
}

// Compressing an image in independent horizontal strips must produce the
// same blocks as one call over the whole image: blocks share no state, and
// the worker pool must not change results.
func TestCompressTilingIndependence(t *testing.T) {
	const width, height = 64, 16

	settings := bc7.SettingsAlphaFast()
	pix := makeTestImage(width, height, false, 22)

	whole := make([]byte, bc7.BlocksByteSize(width, height))
	if err := bc7.CompressRGBA8(&settings, pix, whole, width, height, width*4); err != nil {
		t.Fatalf("CompressRGBA8: %v", err)
	}

	striped := make([]byte, 0, len(whole))
	for y := 0; y < height; y += 4 {
		strip := make([]byte, bc7.BlocksByteSize(width, 4))
		start := y * width * 4
		if err := bc7.CompressRGBA8(&settings, pix[start:start+width*4*4], strip, width, 4, width*4); err != nil {
			t.Fatalf("CompressRGBA8 strip at row %d: %v", y, err)
		}
		striped = append(striped, strip...)
	}

	if !bytes.Equal(whole, striped) {
		t.Fatalf("strip-wise compression differs from whole-image compression")
	}
}

// More refinement iterations over the same candidate scan can only keep or
// improve each block's best error.
func TestRefinementIsMonotone(t *testing.T) {
	const width, height = 32, 32

	base := bc7.Settings{
		Channels:               3,
		EnabledModes:           [8]bool{false, true, false, true, false, false, false, false},
		FastSkipThresholdMode1: 8,
		FastSkipThresholdMode3: 8,
	}
	fast := base
	slow := base
	slow.RefineIterations = [8]int{0, 4, 0, 4, 0, 0, 0, 0}

	pix := makeTestImage(width, height, true, 23)

	sseFor := func(s *bc7.Settings) int64 {
		blocks := make([]byte, bc7.BlocksByteSize(width, height))
		if err := bc7.CompressRGBA8(s, pix, blocks, width, height, width*4); err != nil {
			t.Fatalf("CompressRGBA8: %v", err)
		}
		decoded := make([]byte, width*height*4)
		if err := bc7.DecompressRGBA8(blocks, decoded, width, height); err != nil {
			t.Fatalf("DecompressRGBA8: %v", err)
		}
		_, sse := channelError(t, pix, decoded, 3)
		return sse
	}

	if fastSSE, slowSSE := sseFor(&fast), sseFor(&slow); slowSSE > fastSSE {
		t.Fatalf("refined error %d exceeds unrefined error %d", slowSSE, fastSSE)
	}
}

func TestCompressPreconditions(t *testing.T) {
	settings := bc7.SettingsOpaqueFast()
	pix := make([]byte, 8*8*4)
	blocks := make([]byte, bc7.BlocksByteSize(8, 8))

	check := func(name string, want bc7.ErrorCode, err error) {
		t.Helper()
		if err == nil {
			t.Fatalf("%s: got nil error, want %v", name, want)
		}
		if got := bc7.ErrorCodeOf(err); got != want {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}

	check("nil settings", bc7.ErrBadParam,
		bc7.CompressRGBA8(nil, pix, blocks, 8, 8, 32))
	check("width not multiple of 4", bc7.ErrBadDimensions,
		bc7.CompressRGBA8(&settings, pix, blocks, 6, 8, 32))
	check("height not multiple of 4", bc7.ErrBadDimensions,
		bc7.CompressRGBA8(&settings, pix, blocks, 8, 9, 32))
	check("zero width", bc7.ErrBadDimensions,
		bc7.CompressRGBA8(&settings, pix, blocks, 0, 8, 32))
	check("short stride", bc7.ErrBadParam,
		bc7.CompressRGBA8(&settings, pix, blocks, 8, 8, 16))
	check("short source", bc7.ErrBadBufferSize,
		bc7.CompressRGBA8(&settings, pix[:len(pix)-4], blocks, 8, 8, 32))
	check("short destination", bc7.ErrBadBufferSize,
		bc7.CompressRGBA8(&settings, pix, blocks[:len(blocks)-1], 8, 8, 32))

	bad := settings
	bad.Channels = 2
	check("bad channel count", bc7.ErrBadSettings,
		bc7.CompressRGBA8(&bad, pix, blocks, 8, 8, 32))

	bad = settings
	bad.FastSkipThresholdMode1 = 65
	check("threshold out of range", bc7.ErrBadSettings,
		bc7.CompressRGBA8(&bad, pix, blocks, 8, 8, 32))

	bad = settings
	bad.Mode45Channel0 = 4
	check("rotation start channel past channel count", bc7.ErrBadSettings,
		bc7.CompressRGBA8(&bad, pix, blocks, 8, 8, 32))

	// The happy path right next to all the failures.
	if err := bc7.CompressRGBA8(&settings, pix, blocks, 8, 8, 32); err != nil {
		t.Fatalf("valid compress failed: %v", err)
	}
}

func TestDecompressPreconditions(t *testing.T) {
	blocks := make([]byte, bc7.BlocksByteSize(8, 8))
	pix := make([]byte, 8*8*4)

	check := func(name string, want bc7.ErrorCode, err error) {
		t.Helper()
		if err == nil {
			t.Fatalf("%s: got nil error, want %v", name, want)
		}
		if got := bc7.ErrorCodeOf(err); got != want {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}

	check("width not multiple of 4", bc7.ErrBadDimensions,
		bc7.DecompressRGBA8(blocks, pix, 6, 8))
	check("negative height", bc7.ErrBadDimensions,
		bc7.DecompressRGBA8(blocks, pix, 8, -4))
	check("source too small", bc7.ErrBadBufferSize,
		bc7.DecompressRGBA8(blocks[:len(blocks)-16], pix, 8, 8))
	check("source too large", bc7.ErrBadBufferSize,
		bc7.DecompressRGBA8(append(blocks, 0), pix, 8, 8))
	check("destination too small", bc7.ErrBadBufferSize,
		bc7.DecompressRGBA8(blocks, pix[:len(pix)-4], 8, 8))
	check("destination too large", bc7.ErrBadBufferSize,
		bc7.DecompressRGBA8(blocks, append(pix, 0), 8, 8))

	if err := bc7.DecompressRGBA8(blocks, pix, 8, 8); err != nil {
		t.Fatalf("valid decompress failed: %v", err)
	}
}

func TestAllPresetsCompress(t *testing.T) {
	presets := []struct {
		name     string
		settings bc7.Settings
	}{
		{"opaque-ultrafast", bc7.SettingsOpaqueUltraFast()},
		{"opaque-veryfast", bc7.SettingsOpaqueVeryFast()},
		{"opaque-fast", bc7.SettingsOpaqueFast()},
		{"opaque-basic", bc7.SettingsOpaqueBasic()},
		{"opaque-slow", bc7.SettingsOpaqueSlow()},
		{"alpha-ultrafast", bc7.SettingsAlphaUltraFast()},
		{"alpha-veryfast", bc7.SettingsAlphaVeryFast()},
		{"alpha-fast", bc7.SettingsAlphaFast()},
		{"alpha-basic", bc7.SettingsAlphaBasic()},
		{"alpha-slow", bc7.SettingsAlphaSlow()},
	}

	pix := makeTestImage(8, 8, false, 24)
	for _, tc := range presets {
		t.Run(tc.name, func(t *testing.T) {
			blocks := make([]byte, bc7.BlocksByteSize(8, 8))
			if err := bc7.CompressRGBA8(&tc.settings, pix, blocks, 8, 8, 32); err != nil {
				t.Fatalf("CompressRGBA8: %v", err)
			}
		})
	}
}

func TestBlockSizeHelpers(t *testing.T) {
	if got := bc7.BytesPerRow(16); got != 64 {
		t.Fatalf("BytesPerRow(16): got %d, want 64", got)
	}
	if got := bc7.BytesPerRow(17); got != 80 {
		t.Fatalf("BytesPerRow(17): got %d, want 80 after rounding up", got)
	}
	if got := bc7.BlocksByteSize(16, 8); got != 128 {
		t.Fatalf("BlocksByteSize(16, 8): got %d, want 128", got)
	}
	if got := bc7.BlocksByteSize(18, 10); got != 240 {
		t.Fatalf("BlocksByteSize(18, 10): got %d, want 240 after rounding up", got)
	}
}
