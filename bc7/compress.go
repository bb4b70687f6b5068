package bc7

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// BlockBytes is the compressed size of one 4x4 block.
const BlockBytes = 16

// BytesPerRow returns the compressed size of one block row. The width is
// rounded up to the nearest multiple of 4.
func BytesPerRow(width int) int {
	return (width + 3) / 4 * BlockBytes
}

// BlocksByteSize returns the buffer size required to hold the compressed
// blocks of an image. Both dimensions are rounded up to the nearest multiple
// of 4.
func BlocksByteSize(width, height int) int {
	return (width + 3) / 4 * ((height + 3) / 4) * BlockBytes
}

// CompressRGBA8 compresses an interleaved RGBA8 image into a row-major
// sequence of 16-byte blocks. stride is the source row pitch in bytes and
// may exceed width*4 when compressing a sub-rectangle of a wider image.
// Blocks are independent, so large images are spread across all CPUs.
func CompressRGBA8(settings *Settings, src, dst []byte, width, height, stride int) error {
	if settings == nil {
		return newError(ErrBadParam, "bc7: nil settings")
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 || width%4 != 0 || height%4 != 0 {
		return newError(ErrBadDimensions, "bc7: width and height must be positive multiples of 4")
	}
	if stride < width*4 {
		return newError(ErrBadParam, "bc7: stride shorter than one pixel row")
	}
	if len(src) < (height-1)*stride+width*4 {
		return newError(ErrBadBufferSize, "bc7: source pixel buffer too small")
	}
	if len(dst) < BlocksByteSize(width, height) {
		return newError(ErrBadBufferSize, "bc7: destination block buffer too small")
	}

	blocksX := width / 4
	blocksY := height / 4
	totalBlocks := blocksX * blocksY

	procs := runtime.GOMAXPROCS(0)
	if procs < 1 {
		procs = 1
	}
	if procs > totalBlocks {
		procs = totalBlocks
	}

	// Small images are faster to encode sequentially.
	if procs == 1 || totalBlocks < 32 {
		var e blockEncoder
		for by := 0; by < blocksY; by++ {
			for bx := 0; bx < blocksX; bx++ {
				compressBlock(&e, settings, src, dst, blocksX, bx, by, stride)
			}
		}
		return nil
	}

	var next uint32
	var wg sync.WaitGroup
	wg.Add(procs)
	for w := 0; w < procs; w++ {
		go func() {
			defer wg.Done()
			var e blockEncoder
			for {
				idx := int(atomic.AddUint32(&next, 1) - 1)
				if idx >= totalBlocks {
					return
				}
				bx := idx % blocksX
				by := idx / blocksX
				compressBlock(&e, settings, src, dst, blocksX, bx, by, stride)
			}
		}()
	}
	wg.Wait()

	return nil
}

func compressBlock(e *blockEncoder, settings *Settings, src, dst []byte, blocksX, bx, by, stride int) {
	e.init(settings)
	e.loadBlockRGBA(src, bx, by, stride)
	e.computeOpaqueErr()
	e.compressCore()
	e.storeData(dst, blocksX, bx, by)
}

// DecompressRGBA8 decodes a row-major sequence of 16-byte blocks back into
// an interleaved RGBA8 image. Both buffer sizes must match the dimensions
// exactly.
func DecompressRGBA8(src, dst []byte, width, height int) error {
	if width <= 0 || height <= 0 || width%4 != 0 || height%4 != 0 {
		return newError(ErrBadDimensions, "bc7: width and height must be positive multiples of 4")
	}
	if len(src) != BlocksByteSize(width, height) {
		return newError(ErrBadBufferSize, "bc7: source buffer must hold exactly the compressed image")
	}
	if len(dst) != width*height*4 {
		return newError(ErrBadBufferSize, "bc7: destination buffer must hold exactly width*height RGBA texels")
	}

	blocksX := width / 4
	blocksY := height / 4
	pitch := width * 4

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			offset := (by*blocksX + bx) * BlockBytes
			DecodeBlock(src[offset:offset+BlockBytes], dst[by*4*pitch+bx*16:], pitch)
		}
	}

	return nil
}
