package bc7

import "encoding/binary"

// blockReader consumes a packed 16-byte block as a little-endian bit stream.
//
// The 128 bits are held as two 64-bit halves; each read shifts bits out of the
// low half and carries the same number of bits across from the high half.
type blockReader struct {
	low  uint64
	high uint64
}

func newBlockReader(block []byte) blockReader {
	return blockReader{
		low:  binary.LittleEndian.Uint64(block[0:8]),
		high: binary.LittleEndian.Uint64(block[8:16]),
	}
}

// readBits removes and returns the lowest n bits, 1 <= n <= 32.
func (r *blockReader) readBits(n uint32) uint32 {
	mask := uint64(1)<<n - 1
	bits := uint32(r.low & mask)
	r.low >>= n
	r.low |= (r.high & mask) << (64 - n)
	r.high >>= n
	return bits
}

func (r *blockReader) readBit() uint32 {
	return r.readBits(1)
}

// blockWriter packs bits into a block, least significant bit first. Five
// words give 160 bits of scratch: index packing runs one bit past the 128-bit
// block boundary per subset until the implicit fixup index bits are deleted.
// Only the first four words are stored.
type blockWriter struct {
	data [5]uint32
	pos  uint32
}

// putBits ORs the low n bits of v at the current position and advances it,
// 1 <= n <= 32. Bits of v at or above n must be zero.
func (w *blockWriter) putBits(n, v uint32) {
	w.data[w.pos/32] |= v << (w.pos % 32)
	if w.pos%32+n > 32 {
		w.data[w.pos/32+1] |= v >> (32 - w.pos%32)
	}
	w.pos += n
}

// deleteBitAt removes one bit just below offset fromBits, shifting all bits
// from there on down by one. Offsets below 64 never occur: only index bits
// are deleted, and index data always starts in the upper half of the block.
func (w *blockWriter) deleteBitAt(fromBits uint32) {
	if fromBits < 96 {
		shifted := (w.data[2] >> 1) | (w.data[3] << 31)
		mask := (uint32(1)<<(fromBits-64) - 1) >> 1
		w.data[2] = (mask & w.data[2]) | (^mask & shifted)
		w.data[3] = (w.data[3] >> 1) | (w.data[4] << 31)
		w.data[4] >>= 1
	} else if fromBits < 128 {
		shifted := (w.data[3] >> 1) | (w.data[4] << 31)
		mask := (uint32(1)<<(fromBits-96) - 1) >> 1
		w.data[3] = (mask & w.data[3]) | (^mask & shifted)
		w.data[4] >>= 1
	}
}

// store writes the final 128 bits little-endian into dst.
func (w *blockWriter) store(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], w.data[0])
	binary.LittleEndian.PutUint32(dst[4:8], w.data[1])
	binary.LittleEndian.PutUint32(dst[8:12], w.data[2])
	binary.LittleEndian.PutUint32(dst[12:16], w.data[3])
}
