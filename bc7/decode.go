package bc7

// DecodeBlock decodes one 16-byte block into 4x4 RGBA8 texels, writing each
// row of 16 bytes at the given byte pitch. dst must hold at least
// 3*pitch+16 bytes.
//
// DecodeBlock is a pure function of the block bytes. A block whose low byte
// has no mode bit set among its first 8 bits decodes to transparent black for
// all 16 texels; this is defined behavior, not an error.
func DecodeBlock(block []byte, dst []byte, pitch int) {
	r := newBlockReader(block)

	mode := 0
	for mode < 8 && r.readBit() == 0 {
		mode++
	}

	if mode >= 8 {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				offset := i*pitch + j*4
				dst[offset] = 0
				dst[offset+1] = 0
				dst[offset+2] = 0
				dst[offset+3] = 0
			}
		}
		return
	}

	mi := &modeTable[mode]
	numEndpoints := mi.numSubsets * 2

	partition := int32(0)
	if mi.partitionBits > 0 {
		partition = int32(r.readBits(mi.partitionBits))
	}

	rotation := uint32(0)
	indexSwap := uint32(0)
	if mi.rotationBits > 0 {
		rotation = r.readBits(mi.rotationBits)
		if mi.hasIndexSwap {
			indexSwap = r.readBit()
		}
	}

	var endpoints [6][4]int32

	for p := 0; p < 3; p++ {
		for j := 0; j < numEndpoints; j++ {
			endpoints[j][p] = int32(r.readBits(mi.colorBits))
		}
	}
	if mi.alphaBits > 0 {
		for j := 0; j < numEndpoints; j++ {
			endpoints[j][3] = int32(r.readBits(mi.alphaBits))
		}
	}

	// P-bits widen every component by one low-order bit.
	if mi.pBits != pBitsNone {
		for j := 0; j < numEndpoints; j++ {
			for p := 0; p < 4; p++ {
				endpoints[j][p] <<= 1
			}
		}

		if mi.pBits == pBitsShared {
			b0 := int32(r.readBit())
			b1 := int32(r.readBit())
			for p := 0; p < 3; p++ {
				endpoints[0][p] |= b0
				endpoints[1][p] |= b0
				endpoints[2][p] |= b1
				endpoints[3][p] |= b1
			}
		} else {
			for j := 0; j < numEndpoints; j++ {
				b := int32(r.readBit())
				for p := 0; p < 4; p++ {
					endpoints[j][p] |= b
				}
			}
		}
	}

	// Expand every component to 8 bits, replicating the MSB into the low
	// bits exposed by the shift.
	pb := uint32(0)
	if mi.pBits != pBitsNone {
		pb = 1
	}
	for j := 0; j < numEndpoints; j++ {
		cb := mi.colorBits + pb
		for p := 0; p < 3; p++ {
			endpoints[j][p] <<= 8 - cb
			endpoints[j][p] |= endpoints[j][p] >> cb
		}
		ab := mi.alphaBits + pb
		endpoints[j][3] <<= 8 - ab
		endpoints[j][3] |= endpoints[j][3] >> ab
	}

	if mi.alphaBits == 0 {
		for j := 0; j < numEndpoints; j++ {
			endpoints[j][3] = 0xFF
		}
	}

	var weights *[16]int32
	switch mi.indexBits {
	case 2:
		weights = &weightTable2
	case 3:
		weights = &weightTable3
	default:
		weights = &weightTable4
	}
	weights2 := &weightTable3
	if mi.indexBits2 == 2 {
		weights2 = &weightTable2
	}

	partID := partition
	if mi.numSubsets == 3 {
		partID += 64
	}
	var pattern uint32
	var skips [3]uint32
	if mi.numSubsets > 1 {
		pattern = getPattern(partID)
		skips = getSkips(partID)
	}

	// Pass 1: primary indices, one fewer bit at each subset's fixup texel.
	var indices [16]int32
	for k := 0; k < 16; k++ {
		fixup := k == 0
		if mi.numSubsets > 1 {
			for j := 1; j < mi.numSubsets; j++ {
				if uint32(k) == skips[j] {
					fixup = true
				}
			}
		}

		bits := mi.indexBits
		if fixup {
			bits--
		}
		indices[k] = int32(r.readBits(bits))
	}

	// Pass 2: secondary indices (dual-index modes), interpolation, rotation.
	for k := 0; k < 16; k++ {
		subset := 0
		if mi.numSubsets > 1 {
			subset = int(pattern >> (2 * uint(k)) & 3)
		}
		epA := &endpoints[subset*2]
		epB := &endpoints[subset*2+1]

		index := indices[k]
		var cr, cg, cb, ca int32
		if mi.indexBits2 == 0 {
			cr = interpolate(epA[0], epB[0], weights, index)
			cg = interpolate(epA[1], epB[1], weights, index)
			cb = interpolate(epA[2], epB[2], weights, index)
			ca = interpolate(epA[3], epB[3], weights, index)
		} else {
			bits2 := mi.indexBits2
			if k == 0 {
				bits2--
			}
			index2 := int32(r.readBits(bits2))

			if indexSwap == 0 {
				cr = interpolate(epA[0], epB[0], weights, index)
				cg = interpolate(epA[1], epB[1], weights, index)
				cb = interpolate(epA[2], epB[2], weights, index)
				ca = interpolate(epA[3], epB[3], weights2, index2)
			} else {
				cr = interpolate(epA[0], epB[0], weights2, index2)
				cg = interpolate(epA[1], epB[1], weights2, index2)
				cb = interpolate(epA[2], epB[2], weights2, index2)
				ca = interpolate(epA[3], epB[3], weights, index)
			}
		}

		switch rotation {
		case 1:
			ca, cr = cr, ca
		case 2:
			ca, cg = cg, ca
		case 3:
			ca, cb = cb, ca
		}

		offset := (k/4)*pitch + (k%4)*4
		dst[offset] = byte(cr)
		dst[offset+1] = byte(cg)
		dst[offset+2] = byte(cb)
		dst[offset+3] = byte(ca)
	}
}

func interpolate(a, b int32, weights *[16]int32, index int32) int32 {
	return (a*(64-weights[index]) + b*weights[index] + 32) >> 6
}
