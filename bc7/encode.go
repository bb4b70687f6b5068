package bc7

import "math"

// Endpoint pairs per mode.
var pairsTable = [8]int{3, 2, 3, 2, 1, 1, 1, 2}

// mode45Params carries the best dual-index candidate between the search and
// the packer.
type mode45Params struct {
	qep      [8]int32
	qblock   [2]uint32
	aqep     [2]int32
	aqblock  [2]uint32
	rotation uint32
	swap     uint32
}

// blockEncoder compresses a single 4x4 tile, keeping the lowest-error code
// seen across all enabled mode searches.
type blockEncoder struct {
	block     pixelBlock
	w         blockWriter
	bestErr   float32
	opaqueErr float32
	settings  *Settings
}

func (e *blockEncoder) init(settings *Settings) {
	*e = blockEncoder{
		bestErr:  float32(math.Inf(1)),
		settings: settings,
	}
}

// loadBlockRGBA converts tile (xx,yy) of an interleaved RGBA8 image into
// planar float channels.
func (e *blockEncoder) loadBlockRGBA(rgba []byte, xx, yy, stride int) {
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			pixelX := xx*4 + x
			pixelY := yy*4 + y

			offset := pixelY*stride + pixelX*4

			e.block[y*4+x] = float32(rgba[offset])
			e.block[16+y*4+x] = float32(rgba[offset+1])
			e.block[32+y*4+x] = float32(rgba[offset+2])
			e.block[48+y*4+x] = float32(rgba[offset+3])
		}
	}
}

// storeData writes the packed block at tile (xx,yy) of the output buffer.
func (e *blockEncoder) storeData(blocks []byte, blockWidth, xx, yy int) {
	offset := (yy*blockWidth + xx) * BlockBytes
	e.w.store(blocks[offset : offset+BlockBytes])
}

// computeOpaqueErr precomputes the cost of forcing alpha to 255, charged to
// modes without an alpha channel.
func (e *blockEncoder) computeOpaqueErr() {
	if e.settings.Channels == 3 {
		e.opaqueErr = 0
		return
	}
	err := float32(0)
	for k := 0; k < 16; k++ {
		err += sq(e.block[48+k] - 255)
	}
	e.opaqueErr = err
}

func (e *blockEncoder) compressCore() {
	if e.settings.EnabledModes[0] || e.settings.EnabledModes[2] {
		e.encodeMode02()
	}
	if e.settings.EnabledModes[1] || e.settings.EnabledModes[3] {
		e.encodeMode13()
	}
	if e.settings.EnabledModes[7] {
		e.encodeMode7()
	}
	if e.settings.EnabledModes[4] || e.settings.EnabledModes[5] {
		e.encodeMode45()
	}
	if e.settings.EnabledModes[6] {
		e.encodeMode6()
	}
}

// unpackToByte expands a quantized value to 8 bits by MSB replication,
// matching the decoder's dequantization exactly.
func unpackToByte(v int32, bits uint32) int32 {
	vv := v << (8 - bits)
	return vv + vv>>bits
}

// epQuant0367 quantizes one subset's endpoint pair for the modes whose
// stored low bit is a p-bit. Both parities are tried per endpoint and the
// one with the lower squared error wins.
func epQuant0367(qep *[8]int32, ep *[8]float32, mode, channels int) {
	bits := uint32(7)
	if mode == 0 {
		bits = 4
	} else if mode == 7 {
		bits = 5
	}
	levels := int32(1) << bits
	levels2 := levels*2 - 1

	for i := 0; i < 2; i++ {
		var qepB [8]int32

		for b := 0; b < 2; b++ {
			for p := 0; p < 4; p++ {
				v := int32((ep[i*4+p]/255*float32(levels2)-float32(b))/2+0.5)*2 + int32(b)
				qepB[b*4+p] = clampI32(v, int32(b), levels2-1+int32(b))
			}
		}

		var epB [8]float32
		for j := 0; j < 8; j++ {
			epB[j] = float32(qepB[j])
		}

		if mode == 0 {
			for j := 0; j < 8; j++ {
				epB[j] = float32(unpackToByte(qepB[j], 5))
			}
		}

		err0 := float32(0)
		err1 := float32(0)
		for p := 0; p < channels; p++ {
			err0 += sq(ep[i*4+p] - epB[p])
			err1 += sq(ep[i*4+p] - epB[4+p])
		}

		for p := 0; p < 4; p++ {
			if err0 < err1 {
				qep[i*4+p] = qepB[p]
			} else {
				qep[i*4+p] = qepB[4+p]
			}
		}
	}
}

// epQuant1 quantizes one subset's endpoint pair for mode 1, whose p-bit is
// shared by both endpoints; the parity choice covers all 8 components.
func epQuant1(qep *[8]int32, ep *[8]float32) {
	var qepB [16]int32

	for b := 0; b < 2; b++ {
		for i := 0; i < 8; i++ {
			v := int32((ep[i]/255*127-float32(b))/2+0.5)*2 + int32(b)
			qepB[b*8+i] = clampI32(v, int32(b), 126+int32(b))
		}
	}

	var epB [16]float32
	for k := 0; k < 16; k++ {
		epB[k] = float32(unpackToByte(qepB[k], 7))
	}

	err0 := float32(0)
	err1 := float32(0)
	for j := 0; j < 2; j++ {
		for p := 0; p < 3; p++ {
			err0 += sq(ep[j*4+p] - epB[j*4+p])
			err1 += sq(ep[j*4+p] - epB[8+j*4+p])
		}
	}

	for i := 0; i < 8; i++ {
		if err0 < err1 {
			qep[i] = qepB[i]
		} else {
			qep[i] = qepB[8+i]
		}
	}
}

// epQuant245 quantizes endpoints for the p-bit-less modes by simple
// rounding.
func epQuant245(qep *[8]int32, ep *[8]float32, mode int) {
	bits := uint32(5)
	if mode == 5 {
		bits = 7
	}
	levels := int32(1) << bits

	for i := 0; i < 8; i++ {
		v := int32(ep[i]/255*float32(levels-1) + 0.5)
		qep[i] = clampI32(v, 0, levels-1)
	}
}

func epQuant(qep *[3][8]int32, ep *[3][8]float32, mode, channels int) {
	pairs := pairsTable[mode]

	switch mode {
	case 0, 3, 6, 7:
		for i := 0; i < pairs; i++ {
			epQuant0367(&qep[i], &ep[i], mode, channels)
		}
	case 1:
		for i := 0; i < pairs; i++ {
			epQuant1(&qep[i], &ep[i])
		}
	case 2, 4, 5:
		for i := 0; i < pairs; i++ {
			epQuant245(&qep[i], &ep[i], mode)
		}
	}
}

func epDequant(ep *[3][8]float32, qep *[3][8]int32, mode int) {
	pairs := pairsTable[mode]

	for i := 0; i < pairs; i++ {
		for j := 0; j < 8; j++ {
			switch mode {
			case 3, 6: // stored at full 8 bits including the p-bit
				ep[i][j] = float32(qep[i][j])
			case 1, 5:
				ep[i][j] = float32(unpackToByte(qep[i][j], 7))
			case 0, 2, 4:
				ep[i][j] = float32(unpackToByte(qep[i][j], 5))
			case 7:
				ep[i][j] = float32(unpackToByte(qep[i][j], 6))
			}
		}
	}
}

func epQuantDequant(qep *[3][8]int32, ep *[3][8]float32, mode, channels int) {
	epQuant(qep, ep, mode, channels)
	epDequant(ep, qep, mode)
}

// optChannel quantizes the independently-indexed scalar channel of the
// dual-index modes, refining the endpoint pair the configured number of
// times.
func (e *blockEncoder) optChannel(qblock *[2]uint32, qep *[2]int32, channelBlock *[16]float32, bits, epbits uint32) float32 {
	ep := [2]float32{255, 0}

	for k := 0; k < 16; k++ {
		if channelBlock[k] < ep[0] {
			ep[0] = channelBlock[k]
		}
		if channelBlock[k] > ep[1] {
			ep[1] = channelBlock[k]
		}
	}

	channelQuantDequant(qep, &ep, epbits)
	err := channelOptQuant(qblock, channelBlock, bits, &ep)

	for i := 0; i < e.settings.RefineIterationsChannel; i++ {
		channelOptEndpoints(&ep, channelBlock, bits, *qblock)
		channelQuantDequant(qep, &ep, epbits)
		err = channelOptQuant(qblock, channelBlock, bits, &ep)
	}

	return err
}

func channelQuantDequant(qep *[2]int32, ep *[2]float32, epbits uint32) {
	elevels := int32(1) << epbits

	for i := 0; i < 2; i++ {
		v := int32(ep[i]/255*float32(elevels-1) + 0.5)
		qep[i] = clampI32(v, 0, elevels-1)
		ep[i] = float32(unpackToByte(qep[i], epbits))
	}
}

func channelOptQuant(qblock *[2]uint32, channelBlock *[16]float32, bits uint32, ep *[2]float32) float32 {
	levels := int32(1) << bits

	qblock[0] = 0
	qblock[1] = 0

	totalErr := float32(0)

	for k := 0; k < 16; k++ {
		proj := (channelBlock[k] - ep[0]) / (ep[1] - ep[0] + 0.001)

		q1 := int32(proj*float32(levels) + 0.5)
		q1Clamped := clampI32(q1, 1, levels-1)

		w0 := getUnquantValue(bits, q1Clamped-1)
		w1 := getUnquantValue(bits, q1Clamped)

		decV0 := float32(((64-w0)*int32(ep[0]) + w0*int32(ep[1]) + 32) / 64)
		decV1 := float32(((64-w1)*int32(ep[0]) + w1*int32(ep[1]) + 32) / 64)
		err0 := sq(decV0 - channelBlock[k])
		err1 := sq(decV1 - channelBlock[k])

		bestErr := err1
		bestQ := q1Clamped
		if err0 < err1 {
			bestErr = err0
			bestQ = q1Clamped - 1
		}

		qblock[k/8] |= uint32(bestQ) << (4 * (k % 8))
		totalErr += bestErr
	}

	return totalErr
}

func channelOptEndpoints(ep *[2]float32, channelBlock *[16]float32, bits uint32, qblock [2]uint32) {
	levels := int32(1) << bits

	atb1 := float32(0)
	sumQ := float32(0)
	sumQQ := float32(0)
	sum := float32(0)

	for k1 := 0; k1 < 2; k1++ {
		qbitsShifted := qblock[k1]
		for k2 := 0; k2 < 8; k2++ {
			k := k1*8 + k2
			q := float32(qbitsShifted & 15)
			qbitsShifted >>= 4

			x := float32(levels-1) - q

			sumQ += q
			sumQQ += q * q

			sum += channelBlock[k]
			atb1 += x * channelBlock[k]
		}
	}

	atb2 := float32(levels-1)*sum - atb1

	cxx := 16*sq(float32(levels-1)) - 2*float32(levels-1)*sumQ + sumQQ
	cyy := sumQQ
	cxy := float32(levels-1)*sumQ - sumQQ
	scale := float32(levels-1) / (cxx*cyy - cxy*cxy)

	ep[0] = (atb1*cyy - atb2*cxy) * scale
	ep[1] = (atb2*cxx - atb1*cxy) * scale

	ep[0] = clamp32(ep[0], 0, 255)
	ep[1] = clamp32(ep[1], 0, 255)

	if abs32(cxx*cyy-cxy*cxy) < 0.001 {
		ep[0] = sum / 16
		ep[1] = ep[0]
	}
}

func (e *blockEncoder) encodeMode01237PartFast(qep *[3][8]int32, qblock *[2]uint32, partID int32, mode int) float32 {
	pattern := getPattern(partID)
	bits := uint32(2)
	if mode == 0 || mode == 1 {
		bits = 3
	}
	pairs := 2
	if mode == 0 || mode == 2 {
		pairs = 3
	}
	channels := 3
	if mode == 7 {
		channels = 4
	}

	var ep [3][8]float32
	for j := 0; j < pairs; j++ {
		mask := getPatternMask(partID, uint32(j))
		blockSegment(&ep[j], &e.block, mask, channels)
	}

	epQuantDequant(qep, &ep, mode, channels)

	return blockQuant(qblock, &e.block, bits, &ep, pattern, channels)
}

func (e *blockEncoder) encodeMode01237(mode int, partList *[64]int32, partCount int) {
	if partCount == 0 {
		return
	}

	bits := uint32(2)
	if mode == 0 || mode == 1 {
		bits = 3
	}
	pairs := 2
	if mode == 0 || mode == 2 {
		pairs = 3
	}
	channels := 3
	if mode == 7 {
		channels = 4
	}

	var bestQep [3][8]int32
	var bestQblock [2]uint32
	bestPartID := int32(-1)
	bestErr := float32(math.Inf(1))

	for _, part := range partList[:partCount] {
		partID := part & 63
		if pairs == 3 {
			partID += 64
		}

		var qep [3][8]int32
		var qblock [2]uint32
		err := e.encodeMode01237PartFast(&qep, &qblock, partID, mode)

		if err < bestErr {
			bestQep = qep
			bestQblock = qblock
			bestPartID = partID
			bestErr = err
		}
	}

	for i := 0; i < e.settings.RefineIterations[mode]; i++ {
		var ep [3][8]float32
		for j := 0; j < pairs; j++ {
			mask := getPatternMask(bestPartID, uint32(j))
			optEndpoints(&ep[j], &e.block, bits, bestQblock, mask, channels)
		}

		var qep [3][8]int32
		var qblock [2]uint32
		epQuantDequant(&qep, &ep, mode, channels)

		pattern := getPattern(bestPartID)
		err := blockQuant(&qblock, &e.block, bits, &ep, pattern, channels)

		if err < bestErr {
			bestQep = qep
			bestQblock = qblock
			bestErr = err
		}
	}

	if mode != 7 {
		bestErr += e.opaqueErr
	}

	if bestErr < e.bestErr {
		e.bestErr = bestErr
		e.codeMode01237(&bestQep, bestQblock, bestPartID, mode)
	}
}

func (e *blockEncoder) encodeMode02() {
	var partList [64]int32
	for i := range partList {
		partList[i] = int32(i)
	}

	if e.settings.EnabledModes[0] {
		e.encodeMode01237(0, &partList, 16)
	}
	if e.settings.EnabledModes[2] && !e.settings.SkipMode2 {
		e.encodeMode01237(2, &partList, 64)
	}
}

func (e *blockEncoder) encodeMode13() {
	t1, t3 := 0, 0
	if e.settings.EnabledModes[1] {
		t1 = e.settings.FastSkipThresholdMode1
	}
	if e.settings.EnabledModes[3] {
		t3 = e.settings.FastSkipThresholdMode3
	}
	if t1 == 0 && t3 == 0 {
		return
	}

	var fullStats [15]float32
	computeStatsMasked(&fullStats, &e.block, 0xFFFFFFFF, 3)

	var partList [64]int32
	for part := int32(0); part < 64; part++ {
		mask := getPatternMask(part, 0)
		bound := int32(blockPCABoundSplit(&e.block, mask, &fullStats, 3))
		partList[part] = part + bound*64
	}

	partialCount := t1
	if t3 > partialCount {
		partialCount = t3
	}
	partialSortList(partList[:], 64, partialCount)

	e.encodeMode01237(1, &partList, t1)
	e.encodeMode01237(3, &partList, t3)
}

func (e *blockEncoder) encodeMode45Candidate(bestCandidate *mode45Params, bestErr *float32, mode int, rotation, swap uint32) {
	bits := uint32(2)
	abits := uint32(2)
	aepbits := uint32(8)

	if mode == 4 {
		abits = 3
		aepbits = 6
	}

	// Swapped index streams trade the 2- and 3-bit widths (mode 4).
	if swap == 1 {
		bits = 3
		abits = 2
	}

	var candidateBlock pixelBlock

	for k := 0; k < 16; k++ {
		for p := 0; p < 3; p++ {
			candidateBlock[k+p*16] = e.block[k+p*16]
		}

		if rotation < 3 {
			if e.settings.Channels == 4 {
				candidateBlock[k+int(rotation)*16] = e.block[k+3*16]
			}
			if e.settings.Channels == 3 {
				candidateBlock[k+int(rotation)*16] = 255
			}
		}
	}

	var ep [3][8]float32
	blockSegment(&ep[0], &candidateBlock, 0xFFFFFFFF, 3)

	var qep [3][8]int32
	epQuantDequant(&qep, &ep, mode, 3)

	var qblock [2]uint32
	err := blockQuant(&qblock, &candidateBlock, bits, &ep, 0, 3)

	for i := 0; i < e.settings.RefineIterations[mode]; i++ {
		optEndpoints(&ep[0], &candidateBlock, bits, qblock, 0xFFFFFFFF, 3)
		epQuantDequant(&qep, &ep, mode, 3)
		err = blockQuant(&qblock, &candidateBlock, bits, &ep, 0, 3)
	}

	var channelData [16]float32
	for k := 0; k < 16; k++ {
		channelData[k] = e.block[k+int(rotation)*16]
	}

	var aqep [2]int32
	var aqblock [2]uint32
	err += e.optChannel(&aqblock, &aqep, &channelData, abits, aepbits)

	if err < *bestErr {
		bestCandidate.qep = qep[0]
		bestCandidate.qblock = qblock
		bestCandidate.aqblock = aqblock
		bestCandidate.aqep = aqep
		bestCandidate.rotation = rotation
		bestCandidate.swap = swap
		*bestErr = err
	}
}

func (e *blockEncoder) encodeMode45() {
	var bestCandidate mode45Params
	bestErr := e.bestErr

	channel0 := e.settings.Mode45Channel0

	if e.settings.EnabledModes[4] {
		for p := channel0; p < e.settings.Channels; p++ {
			e.encodeMode45Candidate(&bestCandidate, &bestErr, 4, uint32(p), 0)
			e.encodeMode45Candidate(&bestCandidate, &bestErr, 4, uint32(p), 1)
		}

		if bestErr < e.bestErr {
			e.bestErr = bestErr
			e.codeMode45(&bestCandidate, 4)
		}
	}

	if e.settings.EnabledModes[5] {
		for p := channel0; p < e.settings.Channels; p++ {
			e.encodeMode45Candidate(&bestCandidate, &bestErr, 5, uint32(p), 0)
		}

		if bestErr < e.bestErr {
			e.bestErr = bestErr
			e.codeMode45(&bestCandidate, 5)
		}
	}
}

func (e *blockEncoder) encodeMode6() {
	const mode = 6
	const bits = 4

	channels := e.settings.Channels

	var ep [3][8]float32
	blockSegment(&ep[0], &e.block, 0xFFFFFFFF, channels)

	if channels == 3 {
		ep[0][3] = 255
		ep[0][7] = 255
	}

	var qep [3][8]int32
	epQuantDequant(&qep, &ep, mode, channels)

	var qblock [2]uint32
	err := blockQuant(&qblock, &e.block, bits, &ep, 0, channels)

	for i := 0; i < e.settings.RefineIterations[mode]; i++ {
		optEndpoints(&ep[0], &e.block, bits, qblock, 0xFFFFFFFF, channels)
		epQuantDequant(&qep, &ep, mode, channels)
		err = blockQuant(&qblock, &e.block, bits, &ep, 0, channels)
	}

	if err < e.bestErr {
		e.bestErr = err
		e.codeMode6(&qep[0], &qblock)
	}
}

func (e *blockEncoder) encodeMode7() {
	t7 := e.settings.FastSkipThresholdMode7
	if t7 == 0 {
		return
	}

	channels := e.settings.Channels

	var fullStats [15]float32
	computeStatsMasked(&fullStats, &e.block, 0xFFFFFFFF, channels)

	var partList [64]int32
	for part := int32(0); part < 64; part++ {
		mask := getPatternMask(part, 0)
		bound := int32(blockPCABoundSplit(&e.block, mask, &fullStats, channels))
		partList[part] = part + bound*64
	}

	partialSortList(partList[:], 64, t7)
	e.encodeMode01237(7, &partList, t7)
}

func (e *blockEncoder) codeMode01237(qep *[3][8]int32, qblock [2]uint32, partID int32, mode int) {
	bits := uint32(2)
	if mode == 0 || mode == 1 {
		bits = 3
	}
	pairs := 2
	if mode == 0 || mode == 2 {
		pairs = 3
	}
	channels := 3
	if mode == 7 {
		channels = 4
	}

	flips := applySwapMode01237(qep, qblock, mode, partID)

	e.w = blockWriter{}

	// Mode id in unary.
	e.w.putBits(uint32(mode)+1, 1<<uint(mode))

	if mode == 0 {
		e.w.putBits(4, uint32(partID&15))
	} else {
		e.w.putBits(6, uint32(partID&63))
	}

	// Endpoints, component-major.
	for p := 0; p < channels; p++ {
		for j := 0; j < pairs*2; j++ {
			v := uint32(qep[j/2][(j%2)*4+p])
			switch mode {
			case 0:
				e.w.putBits(4, v>>1)
			case 1:
				e.w.putBits(6, v>>1)
			case 2:
				e.w.putBits(5, v)
			case 3:
				e.w.putBits(7, v>>1)
			case 7:
				e.w.putBits(5, v>>1)
			}
		}
	}

	// P-bits.
	if mode == 1 {
		for j := 0; j < 2; j++ {
			e.w.putBits(1, uint32(qep[j][0])&1)
		}
	}
	if mode == 0 || mode == 3 || mode == 7 {
		for j := 0; j < pairs*2; j++ {
			e.w.putBits(1, uint32(qep[j/2][(j%2)*4])&1)
		}
	}

	codeQblock(&e.w, qblock, bits, flips)
	codeAdjustSkip(&e.w, mode, partID)
}

func (e *blockEncoder) codeMode45(params *mode45Params, mode int) {
	qep := params.qep
	qblock := params.qblock
	aqep := params.aqep
	aqblock := params.aqblock

	bits := uint32(2)
	abits := uint32(2)
	epbits := uint32(7)
	aepbits := uint32(8)
	if mode == 4 {
		abits = 3
		epbits = 5
		aepbits = 6
	}

	if params.swap == 0 {
		applySwapMode456(qep[:], 4, &qblock, bits)
		applySwapMode456(aqep[:], 1, &aqblock, abits)
	} else {
		qblock, aqblock = aqblock, qblock

		applySwapMode456(aqep[:], 1, &qblock, bits)
		applySwapMode456(qep[:], 4, &aqblock, abits)
	}

	e.w = blockWriter{}

	// Mode id in unary.
	e.w.putBits(uint32(mode)+1, 1<<uint(mode))

	e.w.putBits(2, (params.rotation+1)&3)

	if mode == 4 {
		e.w.putBits(1, params.swap)
	}

	// Endpoints.
	for p := 0; p < 3; p++ {
		e.w.putBits(epbits, uint32(qep[p]))
		e.w.putBits(epbits, uint32(qep[4+p]))
	}

	// Alpha endpoints.
	e.w.putBits(aepbits, uint32(aqep[0]))
	e.w.putBits(aepbits, uint32(aqep[1]))

	codeQblock(&e.w, qblock, bits, 0)
	codeQblock(&e.w, aqblock, abits, 0)
}

func (e *blockEncoder) codeMode6(qep *[8]int32, qblock *[2]uint32) {
	applySwapMode456(qep[:], 4, qblock, 4)

	e.w = blockWriter{}

	// Mode id in unary.
	e.w.putBits(7, 64)

	// Endpoints.
	for p := 0; p < 4; p++ {
		e.w.putBits(7, uint32(qep[p])>>1)
		e.w.putBits(7, uint32(qep[4+p])>>1)
	}

	// P-bits.
	e.w.putBits(1, uint32(qep[0])&1)
	e.w.putBits(1, uint32(qep[4])&1)

	codeQblock(&e.w, *qblock, 4, 0)
}

// codeQblock packs 16 texel indices, the first with one bit fewer since its
// top bit is canonically zero. Subsets flagged in flips store inverted
// indices.
func codeQblock(w *blockWriter, qblock [2]uint32, bits uint32, flips uint32) {
	levels := uint32(1) << bits
	flipsShifted := flips

	for k1 := 0; k1 < 2; k1++ {
		qbitsShifted := qblock[k1]
		for k2 := 0; k2 < 8; k2++ {
			q := qbitsShifted & 15
			if flipsShifted&1 > 0 {
				q = (levels - 1) - q
			}

			if k1 == 0 && k2 == 0 {
				w.putBits(bits-1, q)
			} else {
				w.putBits(bits, q)
			}
			qbitsShifted >>= 4
			flipsShifted >>= 1
		}
	}
}

// codeAdjustSkip deletes the implicit top index bit at the fixup texel of
// each subset after the first, realigning everything packed above it.
func codeAdjustSkip(w *blockWriter, mode int, partID int32) {
	pairs := 2
	if mode == 0 || mode == 2 {
		pairs = 3
	}
	bits := uint32(2)
	if mode == 0 || mode == 1 {
		bits = 3
	}

	skips := getSkips(partID)

	if pairs > 2 && skips[1] < skips[2] {
		skips[1], skips[2] = skips[2], skips[1]
	}

	for _, k := range skips[1:pairs] {
		w.deleteBitAt(128 + uint32(pairs) - 1 - (15-k)*bits)
	}
}

// applySwapMode456 canonicalizes a single-subset index stream: if the first
// texel's index has its top bit set, endpoints are swapped and all indices
// inverted.
func applySwapMode456(qep []int32, channels int, qblock *[2]uint32, bits uint32) {
	levels := uint32(1) << bits

	if qblock[0]&15 >= levels/2 {
		for p := 0; p < channels; p++ {
			qep[p], qep[channels+p] = qep[channels+p], qep[p]
		}

		for i := range qblock {
			qblock[i] = 0x11111111*(levels-1) - qblock[i]
		}
	}
}

// applySwapMode01237 canonicalizes each subset against its fixup texel and
// returns the texel mask of the subsets whose indices must be written
// inverted.
func applySwapMode01237(qep *[3][8]int32, qblock [2]uint32, mode int, partID int32) uint32 {
	bits := uint32(2)
	if mode == 0 || mode == 1 {
		bits = 3
	}
	pairs := 2
	if mode == 0 || mode == 2 {
		pairs = 3
	}

	flips := uint32(0)
	levels := uint32(1) << bits

	skips := getSkips(partID)

	for j := 0; j < pairs; j++ {
		k0 := skips[j]
		q := (qblock[k0>>3] << (28 - (k0&7)*4)) >> 28

		if q >= levels/2 {
			for p := 0; p < 4; p++ {
				qep[j][p], qep[j][4+p] = qep[j][4+p], qep[j][p]
			}

			flips |= getPatternMask(partID, uint32(j))
		}
	}

	return flips
}
