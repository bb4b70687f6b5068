package bc7

import "math"

// pixelBlock holds one 4x4 tile as planar float channels: R in 0..15,
// G in 16..31, B in 32..47, A in 48..63.
type pixelBlock [64]float32

func sq(x float32) float32 {
	return x * x
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// computeStatsMasked accumulates channel sums, squares and cross products
// over the texels selected by mask. stats[0..9] are the upper-triangle
// products in the order RR RG RB RA GG GB GA BB BA AA, stats[10..13] the
// channel sums, stats[14] the texel count.
func computeStatsMasked(stats *[15]float32, block *pixelBlock, mask uint32, channels int) {
	maskShifted := mask << 1
	for k := 0; k < 16; k++ {
		maskShifted >>= 1
		flag := float32(maskShifted & 1)

		var rgba [4]float32
		for p := 0; p < channels; p++ {
			rgba[p] = block[k+p*16] * flag
		}
		stats[14] += flag

		stats[10] += rgba[0]
		stats[11] += rgba[1]
		stats[12] += rgba[2]

		stats[0] += rgba[0] * rgba[0]
		stats[1] += rgba[0] * rgba[1]
		stats[2] += rgba[0] * rgba[2]

		stats[4] += rgba[1] * rgba[1]
		stats[5] += rgba[1] * rgba[2]

		stats[7] += rgba[2] * rgba[2]

		if channels == 4 {
			stats[13] += rgba[3]
			stats[3] += rgba[0] * rgba[3]
			stats[6] += rgba[1] * rgba[3]
			stats[8] += rgba[2] * rgba[3]
			stats[9] += rgba[3] * rgba[3]
		}
	}
}

// covarFromStats converts accumulated stats into a symmetric covariance
// matrix stored as its upper triangle, row-major.
func covarFromStats(covar *[10]float32, stats *[15]float32, channels int) {
	covar[0] = stats[0] - stats[10]*stats[10]/stats[14]
	covar[1] = stats[1] - stats[10]*stats[11]/stats[14]
	covar[2] = stats[2] - stats[10]*stats[12]/stats[14]

	covar[4] = stats[4] - stats[11]*stats[11]/stats[14]
	covar[5] = stats[5] - stats[11]*stats[12]/stats[14]

	covar[7] = stats[7] - stats[12]*stats[12]/stats[14]

	if channels == 4 {
		covar[3] = stats[3] - stats[10]*stats[13]/stats[14]
		covar[6] = stats[6] - stats[11]*stats[13]/stats[14]
		covar[8] = stats[8] - stats[12]*stats[13]/stats[14]
		covar[9] = stats[9] - stats[13]*stats[13]/stats[14]
	}
}

func computeCovarDCMasked(covar *[10]float32, dc *[4]float32, block *pixelBlock, mask uint32, channels int) {
	var stats [15]float32
	computeStatsMasked(&stats, block, mask, channels)

	for p := 0; p < channels; p++ {
		dc[p] = stats[10+p] / stats[14]
	}

	covarFromStats(covar, &stats, channels)
}

func ssymv3(a *[4]float32, covar *[10]float32, b *[4]float32) {
	a[0] = covar[0]*b[0] + covar[1]*b[1] + covar[2]*b[2]
	a[1] = covar[1]*b[0] + covar[4]*b[1] + covar[5]*b[2]
	a[2] = covar[2]*b[0] + covar[5]*b[1] + covar[7]*b[2]
}

func ssymv4(a *[4]float32, covar *[10]float32, b *[4]float32) {
	a[0] = covar[0]*b[0] + covar[1]*b[1] + covar[2]*b[2] + covar[3]*b[3]
	a[1] = covar[1]*b[0] + covar[4]*b[1] + covar[5]*b[2] + covar[6]*b[3]
	a[2] = covar[2]*b[0] + covar[5]*b[1] + covar[7]*b[2] + covar[8]*b[3]
	a[3] = covar[3]*b[0] + covar[6]*b[1] + covar[8]*b[2] + covar[9]*b[3]
}

// computeAxis estimates the dominant eigenvector of covar by power
// iteration, renormalizing every other round.
func computeAxis(axis *[4]float32, covar *[10]float32, powerIterations, channels int) {
	aVec := [4]float32{1, 1, 1, 1}

	for i := 0; i < powerIterations; i++ {
		if channels == 3 {
			ssymv3(axis, covar, &aVec)
		} else if channels == 4 {
			ssymv4(axis, covar, &aVec)
		}

		copy(aVec[:channels], axis[:channels])

		if i%2 == 1 {
			normSq := float32(0)
			for p := 0; p < channels; p++ {
				normSq += sq(axis[p])
			}

			rnorm := 1 / sqrt32(normSq)
			for p := 0; p < channels; p++ {
				aVec[p] *= rnorm
			}
		}
	}

	copy(axis[:channels], aVec[:channels])
}

// getPCABound estimates the variance left after removing the principal
// component: trace minus the dominant eigenvalue. Quite approximate, but
// enough for ranking partition candidates.
func getPCABound(covar *[10]float32, channels int) float32 {
	const powerIterations = 4
	eps := sq(0.001)

	covarScaled := *covar
	invVar := float32(1) / (256 * 256)
	for i := range covarScaled {
		covarScaled[i] *= invVar
	}

	covarScaled[0] += eps
	covarScaled[4] += eps
	covarScaled[7] += eps

	var axis [4]float32
	computeAxis(&axis, &covarScaled, powerIterations, channels)

	var aVec [4]float32
	if channels == 3 {
		ssymv3(&aVec, &covarScaled, &axis)
	} else if channels == 4 {
		ssymv4(&aVec, &covarScaled, &axis)
	}

	sqSum := float32(0)
	for p := 0; p < channels; p++ {
		sqSum += sq(aVec[p])
	}
	lambda := sqrt32(sqSum)

	bound := covarScaled[0] + covarScaled[4] + covarScaled[7]
	if channels == 4 {
		bound += covarScaled[9]
	}
	bound -= lambda

	if bound < 0 {
		return 0
	}
	return bound
}

func blockPCAAxis(axis, dc *[4]float32, block *pixelBlock, mask uint32, channels int) {
	// 4 iterations are not enough for high quality segmentation.
	const powerIterations = 8
	eps := sq(0.001)

	var covar [10]float32
	computeCovarDCMasked(&covar, dc, block, mask, channels)

	const invVar = float32(1) / (256 * 256)
	for i := range covar {
		covar[i] *= invVar
	}

	covar[0] += eps
	covar[4] += eps
	covar[7] += eps
	covar[9] += eps

	computeAxis(axis, &covar, powerIterations, channels)
}

// blockPCABoundSplit ranks a two-way partition split: the residual variance
// of the masked subset plus that of its complement, scaled back to the 8-bit
// value range.
func blockPCABoundSplit(block *pixelBlock, mask uint32, fullStats *[15]float32, channels int) float32 {
	var stats [15]float32
	computeStatsMasked(&stats, block, mask, channels)

	var covar1 [10]float32
	covarFromStats(&covar1, &stats, channels)

	for i := 0; i < 15; i++ {
		stats[i] = fullStats[i] - stats[i]
	}

	var covar2 [10]float32
	covarFromStats(&covar2, &stats, channels)

	bound := getPCABound(&covar1, channels) + getPCABound(&covar2, channels)

	return sqrt32(bound) * 256
}

// blockSegmentCore derives an endpoint pair for each masked texel set by
// projecting onto the principal axis and taking the projection extremes.
// ep holds the low endpoint in components 0..3, the high in 4..7.
func blockSegmentCore(ep *[8]float32, block *pixelBlock, mask uint32, channels int) {
	var axis, dc [4]float32
	blockPCAAxis(&axis, &dc, block, mask, channels)

	ext := [2]float32{float32(math.Inf(1)), float32(math.Inf(-1))}

	maskShifted := mask << 1
	for k := 0; k < 16; k++ {
		maskShifted >>= 1
		if maskShifted&1 == 0 {
			continue
		}

		dot := float32(0)
		for p := 0; p < channels; p++ {
			dot += axis[p] * (block[16*p+k] - dc[p])
		}

		if dot < ext[0] {
			ext[0] = dot
		}
		if dot > ext[1] {
			ext[1] = dot
		}
	}

	// Create some distance if the endpoints collapse.
	if ext[1]-ext[0] < 1 {
		ext[0] -= 0.5
		ext[1] += 0.5
	}

	for i := 0; i < 2; i++ {
		for p := 0; p < channels; p++ {
			ep[4*i+p] = ext[i]*axis[p] + dc[p]
		}
	}
}

func blockSegment(ep *[8]float32, block *pixelBlock, mask uint32, channels int) {
	blockSegmentCore(ep, block, mask, channels)

	for i := 0; i < 2; i++ {
		for p := 0; p < channels; p++ {
			ep[4*i+p] = clamp32(ep[4*i+p], 0, 255)
		}
	}
}

// blockQuant assigns every texel the index minimizing its squared
// reconstruction error against the subset's dequantized endpoint pair,
// packing 4 bits per texel into qblock. Returns the summed error.
func blockQuant(qblock *[2]uint32, block *pixelBlock, bits uint32, ep *[3][8]float32, pattern uint32, channels int) float32 {
	totalErr := float32(0)
	levels := int32(1) << bits

	qblock[0] = 0
	qblock[1] = 0

	patternShifted := pattern
	for k := 0; k < 16; k++ {
		j := patternShifted & 3
		patternShifted >>= 2

		proj := float32(0)
		div := float32(0)
		for p := 0; p < channels; p++ {
			epA := ep[j][p]
			epB := ep[j][4+p]
			proj += (block[k+p*16] - epA) * (epB - epA)
			div += sq(epB - epA)
		}

		proj /= div

		q1 := int32(proj*float32(levels) + 0.5)
		q1Clamped := clampI32(q1, 1, levels-1)

		err0 := float32(0)
		err1 := float32(0)
		w0 := getUnquantValue(bits, q1Clamped-1)
		w1 := getUnquantValue(bits, q1Clamped)

		for p := 0; p < channels; p++ {
			epA := int32(ep[j][p])
			epB := int32(ep[j][4+p])
			decV0 := float32(((64-w0)*epA + w0*epB + 32) / 64)
			decV1 := float32(((64-w1)*epA + w1*epB + 32) / 64)
			err0 += sq(decV0 - block[k+p*16])
			err1 += sq(decV1 - block[k+p*16])
		}

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

// optEndpoints re-estimates a subset's endpoint pair from a fixed index
// assignment by solving the 2x2 least-squares system in closed form. A
// near-singular system flattens both endpoints to the subset mean. The
// result is not clamped.
func optEndpoints(ep *[8]float32, block *pixelBlock, bits uint32, qblock [2]uint32, mask uint32, channels int) {
	levels := int32(1) << bits

	var atb1 [4]float32
	var sum [5]float32
	sumQ := float32(0)
	sumQQ := float32(0)

	maskShifted := mask << 1
	for k1 := 0; k1 < 2; k1++ {
		qbitsShifted := qblock[k1]
		for k2 := 0; k2 < 8; k2++ {
			k := k1*8 + k2
			q := float32(qbitsShifted & 15)
			qbitsShifted >>= 4

			maskShifted >>= 1
			if maskShifted&1 == 0 {
				continue
			}

			x := float32(levels-1) - q

			sumQ += q
			sumQQ += q * q

			sum[4]++
			for p := 0; p < channels; p++ {
				sum[p] += block[k+p*16]
				atb1[p] += x * block[k+p*16]
			}
		}
	}

	var atb2 [4]float32
	for p := 0; p < channels; p++ {
		atb2[p] = float32(levels-1)*sum[p] - atb1[p]
	}

	cxx := sum[4]*sq(float32(levels-1)) - 2*float32(levels-1)*sumQ + sumQQ
	cyy := sumQQ
	cxy := float32(levels-1)*sumQ - sumQQ
	scale := float32(levels-1) / (cxx*cyy - cxy*cxy)

	for p := 0; p < channels; p++ {
		ep[p] = (atb1[p]*cyy - atb2[p]*cxy) * scale
		ep[4+p] = (atb2[p]*cxx - atb1[p]*cxy) * scale
	}

	if abs32(cxx*cyy-cxy*cxy) < 0.001 {
		for p := 0; p < channels; p++ {
			ep[p] = sum[p] / sum[4]
			ep[4+p] = ep[p]
		}
	}
}

// partialSortList selection-sorts the first partialCount entries of list
// into ascending order.
func partialSortList(list []int32, length int, partialCount int) {
	for k := 0; k < partialCount; k++ {
		bestIdx := k
		bestValue := list[k]

		for i := k + 1; i < length; i++ {
			if bestValue > list[i] {
				bestValue = list[i]
				bestIdx = i
			}
		}

		list[k], list[bestIdx] = list[bestIdx], list[k]
	}
}
