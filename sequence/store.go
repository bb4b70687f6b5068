package sequence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrCorrupt is returned when packed data fails to parse.
var ErrCorrupt = errors.New("sequence: corrupt archive")

const (
	storeMagic      = 0x31515344 // "DSQ1" little-endian
	storeHeaderSize = 16
)

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

var zstdEncPool = sync.Pool{
	New: func() any {
		return mustNewZstdEncoder()
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		return mustNewZstdDecoder()
	},
}

// Pack serializes the sequence and compresses it with zstd. Delta planes
// of animations with limited motion are mostly zero and compress far below
// their resident size.
func Pack(s *CompressedSequence) ([]byte, error) {
	if err := validateForPack(s); err != nil {
		return nil, err
	}
	size := s.Width * s.Height * 4
	raw := make([]byte, storeHeaderSize+size*s.FrameCount)
	binary.LittleEndian.PutUint32(raw[0:], storeMagic)
	binary.LittleEndian.PutUint32(raw[4:], uint32(s.Width))
	binary.LittleEndian.PutUint32(raw[8:], uint32(s.Height))
	binary.LittleEndian.PutUint32(raw[12:], uint32(s.FrameCount))
	copy(raw[storeHeaderSize:], s.Base)
	off := storeHeaderSize + size
	for _, d := range s.Deltas {
		for i, v := range d.Data {
			raw[off+i] = byte(v)
		}
		off += size
	}

	enc := zstdEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(raw, nil)
	zstdEncPool.Put(enc)
	return out, nil
}

func validateForPack(s *CompressedSequence) error {
	if s == nil || s.FrameCount == 0 {
		return ErrNoFrames
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadDimensions, s.Width, s.Height)
	}
	size := s.Width * s.Height * 4
	if len(s.Base) != size {
		return fmt.Errorf("%w: base has %d bytes, want %d", ErrFrameSize, len(s.Base), size)
	}
	if len(s.Deltas) != s.FrameCount-1 {
		return fmt.Errorf("%w: %d deltas for %d frames", ErrFrameSize, len(s.Deltas), s.FrameCount)
	}
	for i, d := range s.Deltas {
		if len(d.Data) != size {
			return fmt.Errorf("%w: delta %d has %d bytes, want %d", ErrFrameSize, i, len(d.Data), size)
		}
	}
	return nil
}

// Unpack restores a sequence packed by Pack. The round trip is bit exact.
func Unpack(data []byte) (*CompressedSequence, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	raw, err := dec.DecodeAll(data, nil)
	zstdDecPool.Put(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if len(raw) < storeHeaderSize {
		return nil, fmt.Errorf("%w: %d byte payload", ErrCorrupt, len(raw))
	}
	if binary.LittleEndian.Uint32(raw[0:]) != storeMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	width := int(binary.LittleEndian.Uint32(raw[4:]))
	height := int(binary.LittleEndian.Uint32(raw[8:]))
	frames := int(binary.LittleEndian.Uint32(raw[12:]))
	if width <= 0 || height <= 0 || frames <= 0 {
		return nil, fmt.Errorf("%w: %dx%d, %d frames", ErrCorrupt, width, height, frames)
	}
	size := width * height * 4
	if need := storeHeaderSize + size*frames; len(raw) != need {
		return nil, fmt.Errorf("%w: %d byte payload, want %d", ErrCorrupt, len(raw), need)
	}

	s := &CompressedSequence{
		Base:       append([]byte(nil), raw[storeHeaderSize:storeHeaderSize+size]...),
		Width:      width,
		Height:     height,
		FrameCount: frames,
	}
	if frames > 1 {
		s.Deltas = make([]DeltaFrame, 0, frames-1)
	}
	off := storeHeaderSize + size
	for f := 1; f < frames; f++ {
		d := DeltaFrame{Data: make([]int8, size), Width: width, Height: height}
		for i := range d.Data {
			d.Data[i] = int8(raw[off+i])
		}
		s.Deltas = append(s.Deltas, d)
		off += size
	}
	return s, nil
}
