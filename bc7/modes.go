package bc7

// pBitKind says how a mode extends endpoint precision with p-bits.
type pBitKind uint8

const (
	pBitsNone   pBitKind = iota
	pBitsShared          // one p-bit per subset, shared by both endpoints (mode 1)
	pBitsUnique          // one p-bit per endpoint (modes 0, 3, 6, 7)
)

// modeInfo is the fixed bit layout of one of the eight block modes. The mode
// id itself is stored in unary: mode m is m zero bits followed by a one.
type modeInfo struct {
	numSubsets    int    // endpoint pairs per block, 1..3
	partitionBits uint32 // partition id width, 0 when numSubsets == 1
	rotationBits  uint32 // channel rotation field width (modes 4 and 5)
	hasIndexSwap  bool   // 1-bit flag swapping the two index streams (mode 4)
	colorBits     uint32 // per-component endpoint width, excluding p-bit
	alphaBits     uint32 // alpha endpoint width, 0 when alpha is implicit 255
	pBits         pBitKind
	indexBits     uint32 // primary index width
	indexBits2    uint32 // secondary index width, 0 outside modes 4 and 5
}

var modeTable = [8]modeInfo{
	{numSubsets: 3, partitionBits: 4, colorBits: 4, pBits: pBitsUnique, indexBits: 3},
	{numSubsets: 2, partitionBits: 6, colorBits: 6, pBits: pBitsShared, indexBits: 3},
	{numSubsets: 3, partitionBits: 6, colorBits: 5, pBits: pBitsNone, indexBits: 2},
	{numSubsets: 2, partitionBits: 6, colorBits: 7, pBits: pBitsUnique, indexBits: 2},
	{numSubsets: 1, rotationBits: 2, hasIndexSwap: true, colorBits: 5, alphaBits: 6, pBits: pBitsNone, indexBits: 2, indexBits2: 3},
	{numSubsets: 1, rotationBits: 2, colorBits: 7, alphaBits: 8, pBits: pBitsNone, indexBits: 2, indexBits2: 2},
	{numSubsets: 1, colorBits: 7, alphaBits: 7, pBits: pBitsUnique, indexBits: 4},
	{numSubsets: 2, partitionBits: 6, colorBits: 5, alphaBits: 5, pBits: pBitsUnique, indexBits: 2},
}
