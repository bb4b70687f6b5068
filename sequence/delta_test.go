package sequence_test

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/thmasq/anibuddy/sequence"
)

func makeFrame(width, height int, shade byte, seed int64) []byte {
	rnd := rand.New(rand.NewSource(seed))
	f := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			f[i+0] = byte(x*255/width) + shade
			f[i+1] = byte(y * 255 / height)
			f[i+2] = byte(rnd.Intn(256))
			f[i+3] = 255
		}
	}
	return f
}

func TestCompressValidation(t *testing.T) {
	if _, err := sequence.Compress(nil, 4, 4); !errors.Is(err, sequence.ErrNoFrames) {
		t.Errorf("no frames: got %v", err)
	}
	f := make([]byte, 4*4*4)
	if _, err := sequence.Compress([][]byte{f}, 0, 4); !errors.Is(err, sequence.ErrBadDimensions) {
		t.Errorf("zero width: got %v", err)
	}
	if _, err := sequence.Compress([][]byte{f, f[:10]}, 4, 4); !errors.Is(err, sequence.ErrFrameSize) {
		t.Errorf("short frame: got %v", err)
	}
}

func TestStaticSequenceReconstructsExactly(t *testing.T) {
	const w, h = 16, 12
	base := makeFrame(w, h, 0, 7)
	frames := [][]byte{base, append([]byte(nil), base...), append([]byte(nil), base...)}

	s, err := sequence.Compress(frames, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if s.FrameCount != 3 || len(s.Deltas) != 2 {
		t.Fatalf("FrameCount=%d len(Deltas)=%d", s.FrameCount, len(s.Deltas))
	}
	for _, d := range s.Deltas {
		for i, v := range d.Data {
			if v != 0 {
				t.Fatalf("identical frames produced delta %d at %d", v, i)
			}
		}
	}

	dst := make([]byte, w*h*4)
	for i := 0; i < 3; i++ {
		if err := s.Frame(i, dst); err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
		if !bytes.Equal(dst, base) {
			t.Fatalf("frame %d drifted from base", i)
		}
	}
}

// TestSingleStepErrorBound covers every (previous, current) byte pair. A
// delta unit spans 255/127 of a level and truncation loses under one unit,
// so one step may miss by up to two levels but never more.
func TestSingleStepErrorBound(t *testing.T) {
	const w, h = 128, 128 // width*height*4 = 65536, one texel channel per pair
	prev := make([]byte, w*h*4)
	cur := make([]byte, w*h*4)
	for k := 0; k < 65536; k++ {
		prev[k] = byte(k >> 8)
		cur[k] = byte(k & 0xFF)
	}

	s, err := sequence.Compress([][]byte{prev, cur}, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, w*h*4)
	if err := s.Frame(1, dst); err != nil {
		t.Fatalf("Frame(1): %v", err)
	}

	maxErr := 0
	for k := range dst {
		e := int(dst[k]) - int(cur[k])
		if e < 0 {
			e = -e
		}
		if e > maxErr {
			maxErr = e
		}
	}
	if maxErr > 2 {
		t.Errorf("single-step reconstruction error %d, want <= 2", maxErr)
	}
}

func TestStepMatchesFrame(t *testing.T) {
	const w, h = 8, 8
	frames := [][]byte{
		makeFrame(w, h, 0, 1),
		makeFrame(w, h, 3, 2),
		makeFrame(w, h, 6, 3),
		makeFrame(w, h, 9, 4),
	}
	s, err := sequence.Compress(frames, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	// Sequential playback with Step must land on the same pixels as the
	// random-access Frame replay.
	cur := make([]byte, w*h*4)
	copy(cur, s.Base)
	dst := make([]byte, w*h*4)
	for i := 1; i < s.FrameCount; i++ {
		if err := s.Step(cur, i); err != nil {
			t.Fatalf("Step(%d): %v", i, err)
		}
		if err := s.Frame(i, dst); err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
		if !bytes.Equal(cur, dst) {
			t.Fatalf("Step and Frame disagree at frame %d", i)
		}
	}
}

func TestFrameAndStepValidation(t *testing.T) {
	const w, h = 4, 4
	f := makeFrame(w, h, 0, 9)
	s, err := sequence.Compress([][]byte{f, f}, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dst := make([]byte, w*h*4)

	if err := s.Frame(-1, dst); !errors.Is(err, sequence.ErrFrameRange) {
		t.Errorf("Frame(-1): got %v", err)
	}
	if err := s.Frame(2, dst); !errors.Is(err, sequence.ErrFrameRange) {
		t.Errorf("Frame(2): got %v", err)
	}
	if err := s.Frame(0, dst[:10]); !errors.Is(err, sequence.ErrShortBuffer) {
		t.Errorf("short dst: got %v", err)
	}
	if err := s.Step(dst, 0); !errors.Is(err, sequence.ErrFrameRange) {
		t.Errorf("Step(0): got %v", err)
	}
	if err := s.Step(dst, 2); !errors.Is(err, sequence.ErrFrameRange) {
		t.Errorf("Step(2): got %v", err)
	}
}

func TestMemoryUsageAndRatio(t *testing.T) {
	const w, h = 4, 4
	f := makeFrame(w, h, 0, 3)
	s, err := sequence.Compress([][]byte{f, f, f}, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	want := 3 * w * h * 4
	if got := s.MemoryUsage(); got != want {
		t.Errorf("MemoryUsage = %d, want %d", got, want)
	}
	if got := s.CompressionRatio(2 * want); got != 2.0 {
		t.Errorf("CompressionRatio = %v, want 2", got)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	const w, h = 8, 12
	frames := [][]byte{
		makeFrame(w, h, 0, 11),
		makeFrame(w, h, 40, 12),
		makeFrame(w, h, 80, 13),
	}
	s, err := sequence.Compress(frames, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	packed, err := sequence.Pack(s)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	restored, err := sequence.Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if !reflect.DeepEqual(s, restored) {
		t.Fatal("round trip changed the sequence")
	}
}

func TestPackShrinksStaticSequences(t *testing.T) {
	const w, h = 32, 32
	base := makeFrame(w, h, 0, 21)
	frames := make([][]byte, 6)
	for i := range frames {
		frames[i] = append([]byte(nil), base...)
	}
	s, err := sequence.Compress(frames, w, h)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	packed, err := sequence.Pack(s)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(packed) >= s.MemoryUsage()/2 {
		t.Errorf("packed %d bytes, resident %d; zero deltas should compress well below half",
			len(packed), s.MemoryUsage())
	}
}

func TestUnpackRejects(t *testing.T) {
	if _, err := sequence.Unpack([]byte("definitely not zstd")); !errors.Is(err, sequence.ErrCorrupt) {
		t.Errorf("garbage input: got %v", err)
	}

	// A valid zstd stream whose payload is not a sequence.
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	bogus := enc.EncodeAll([]byte("short and wrong"), nil)
	enc.Close()
	if _, err := sequence.Unpack(bogus); !errors.Is(err, sequence.ErrCorrupt) {
		t.Errorf("bogus payload: got %v", err)
	}

	// Flipping a byte breaks the frame checksum.
	f := makeFrame(4, 4, 0, 5)
	s, err := sequence.Compress([][]byte{f, f}, 4, 4)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	packed, err := sequence.Pack(s)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	packed[len(packed)-1] ^= 0xFF
	if _, err := sequence.Unpack(packed); !errors.Is(err, sequence.ErrCorrupt) {
		t.Errorf("tampered archive: got %v", err)
	}
}

func TestPackValidation(t *testing.T) {
	if _, err := sequence.Pack(&sequence.CompressedSequence{}); !errors.Is(err, sequence.ErrNoFrames) {
		t.Errorf("empty sequence: got %v", err)
	}
	bad := &sequence.CompressedSequence{
		Base:       make([]byte, 10),
		Width:      4,
		Height:     4,
		FrameCount: 1,
	}
	if _, err := sequence.Pack(bad); !errors.Is(err, sequence.ErrFrameSize) {
		t.Errorf("short base: got %v", err)
	}
}
