package sequence

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrames is returned when a sequence is built from zero frames.
	ErrNoFrames = errors.New("sequence: no frames")

	// ErrBadDimensions is returned for non-positive frame dimensions.
	ErrBadDimensions = errors.New("sequence: dimensions must be positive")

	// ErrFrameSize is returned when a frame's byte length does not match
	// its dimensions.
	ErrFrameSize = errors.New("sequence: frame size mismatch")

	// ErrFrameRange is returned for a frame index outside the sequence.
	ErrFrameRange = errors.New("sequence: frame index out of range")

	// ErrShortBuffer is returned when a destination cannot hold a frame.
	ErrShortBuffer = errors.New("sequence: destination too small")
)

// DeltaFrame holds per-channel signed differences between two consecutive
// RGBA8 frames, scaled so that ±127 spans the full 8-bit range.
type DeltaFrame struct {
	Data   []int8
	Width  int
	Height int
}

// CompressedSequence stores an animation as its first frame verbatim plus
// one DeltaFrame per later frame. Frames that share most content shrink to
// near-zero entropy deltas, which is what the at-rest packing in this
// package exploits.
type CompressedSequence struct {
	Base       []byte
	Deltas     []DeltaFrame
	Width      int
	Height     int
	FrameCount int
}

// Compress builds a delta sequence from RGBA8 frames of width by height
// pixels. Each delta is taken against the previous source frame, not the
// previous reconstruction, so decode drift is possible but bounded by the
// per-step quantization.
func Compress(frames [][]byte, width, height int) (*CompressedSequence, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, width, height)
	}
	size := width * height * 4
	for i, f := range frames {
		if len(f) != size {
			return nil, fmt.Errorf("%w: frame %d has %d bytes, want %d", ErrFrameSize, i, len(f), size)
		}
	}

	s := &CompressedSequence{
		Base:       append([]byte(nil), frames[0]...),
		Width:      width,
		Height:     height,
		FrameCount: len(frames),
	}
	if len(frames) > 1 {
		s.Deltas = make([]DeltaFrame, 0, len(frames)-1)
	}
	for i := 1; i < len(frames); i++ {
		d := DeltaFrame{
			Data:   make([]int8, size),
			Width:  width,
			Height: height,
		}
		cur, prev := frames[i], frames[i-1]
		for p := 0; p < size; p++ {
			d.Data[p] = deltaByte(cur[p], prev[p])
		}
		s.Deltas = append(s.Deltas, d)
	}
	return s, nil
}

// Frame reconstructs frame index into dst by replaying deltas onto the
// base, quantizing after every step the way an rgba8 render target would.
// Cost grows with index; use Step for sequential playback.
func (s *CompressedSequence) Frame(index int, dst []byte) error {
	if index < 0 || index >= s.FrameCount {
		return fmt.Errorf("%w: %d of %d", ErrFrameRange, index, s.FrameCount)
	}
	size := s.Width * s.Height * 4
	if len(dst) < size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, size, len(dst))
	}
	cur := dst[:size]
	copy(cur, s.Base)
	for f := 1; f <= index; f++ {
		if err := s.Step(cur, f); err != nil {
			return err
		}
	}
	return nil
}

// Step advances pixels from frame index-1 to frame index in place.
func (s *CompressedSequence) Step(pixels []byte, index int) error {
	if index < 1 || index >= s.FrameCount {
		return fmt.Errorf("%w: step to %d of %d", ErrFrameRange, index, s.FrameCount)
	}
	size := s.Width * s.Height * 4
	if len(pixels) < size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, size, len(pixels))
	}
	d := s.Deltas[index-1].Data
	for p := 0; p < size; p++ {
		pixels[p] = applyDelta(pixels[p], d[p])
	}
	return nil
}

// MemoryUsage is the in-memory footprint of the pixel payload: base bytes
// plus every delta byte.
func (s *CompressedSequence) MemoryUsage() int {
	n := len(s.Base)
	for _, d := range s.Deltas {
		n += len(d.Data)
	}
	return n
}

// CompressionRatio compares an original encoded size, typically the media
// file the frames were decoded from, against MemoryUsage. The resident
// delta form trades no space against raw frames; the savings come from
// Pack and from uploading one delta at a time.
func (s *CompressedSequence) CompressionRatio(originalSize int) float64 {
	used := s.MemoryUsage()
	if used == 0 {
		return 0
	}
	return float64(originalSize) / float64(used)
}

// deltaByte maps the step between two bytes onto int8, truncating toward
// zero like a GPU float-to-int cast.
func deltaByte(cur, prev uint8) int8 {
	d := (float32(cur) - float32(prev)) / 255 * 127
	if d > 127 {
		d = 127
	} else if d < -127 {
		d = -127
	}
	return int8(d)
}

// applyDelta adds a scaled delta to one channel and re-quantizes with
// round-to-nearest, matching a write to an rgba8 target.
func applyDelta(prev uint8, d int8) uint8 {
	v := float32(prev)/255 + float32(d)/127
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}
