package bc7

import (
	"math"
	"math/rand"
	"testing"
)

// makeTestTile fills one 4x4 RGBA tile. Alternates between content classes
// so every mode family gets exercised: flat fills, smooth gradients, noise,
// and two-tone splits that favor multi-subset partitions.
func makeTestTile(rnd *rand.Rand, class int, dst []byte) {
	switch class % 4 {
	case 0:
		c := [4]byte{byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256))}
		for k := 0; k < 16; k++ {
			copy(dst[k*4:], c[:])
		}
	case 1:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				off := (y*4 + x) * 4
				dst[off+0] = byte(40 + x*37 + y*5)
				dst[off+1] = byte(200 - x*11 - y*23)
				dst[off+2] = byte(90 + x*3 + y*31)
				dst[off+3] = byte(255 - x*2 - y*9)
			}
		}
	case 2:
		_, _ = rnd.Read(dst)
	case 3:
		a := [4]byte{byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256)), 255}
		b := [4]byte{byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256)), byte(rnd.Intn(256))}
		for k := 0; k < 16; k++ {
			if k%4 < 2 {
				copy(dst[k*4:], a[:])
			} else {
				copy(dst[k*4:], b[:])
			}
		}
	}
}

// The encoder commits the candidate with the lowest accumulated squared
// error, and that accumulation uses the same integer interpolation as the
// decoder. Decoding a committed block therefore reproduces exactly the error
// the encoder reported: every term is an integer below 2^24, so the float32
// sums are exact and the comparison can demand equality.
func TestEncoderReportedErrorMatchesDecode(t *testing.T) {
	presets := []struct {
		name     string
		settings Settings
	}{
		{"opaque-ultrafast", SettingsOpaqueUltraFast()},
		{"opaque-veryfast", SettingsOpaqueVeryFast()},
		{"opaque-fast", SettingsOpaqueFast()},
		{"opaque-basic", SettingsOpaqueBasic()},
		{"alpha-ultrafast", SettingsAlphaUltraFast()},
		{"alpha-fast", SettingsAlphaFast()},
		{"alpha-basic", SettingsAlphaBasic()},
	}

	rnd := rand.New(rand.NewSource(11))

	for _, tc := range presets {
		t.Run(tc.name, func(t *testing.T) {
			for iter := 0; iter < 48; iter++ {
				src := make([]byte, 4*4*4)
				makeTestTile(rnd, iter, src)

				var e blockEncoder
				e.init(&tc.settings)
				e.loadBlockRGBA(src, 0, 0, 16)
				e.computeOpaqueErr()
				e.compressCore()

				if math.IsInf(float64(e.bestErr), 1) {
					t.Fatalf("iteration %d: no mode produced a candidate", iter)
				}

				var packed [16]byte
				e.w.store(packed[:])

				decoded := make([]byte, 64)
				DecodeBlock(packed[:], decoded, 16)

				sse := 0
				for k := 0; k < 16; k++ {
					for p := 0; p < tc.settings.Channels; p++ {
						d := int(src[k*4+p]) - int(decoded[k*4+p])
						sse += d * d
					}
				}

				if float32(sse) != e.bestErr {
					t.Fatalf("iteration %d: decoded squared error %d, encoder reported %v",
						iter, sse, e.bestErr)
				}
			}
		})
	}
}

// Opaque presets ignore the source alpha channel entirely. Decoded alpha is
// 255 except for mode 6 blocks whose p-bit parity, chosen on RGB error
// alone, lands the 255 endpoint on 254.
func TestOpaqueEncodingKeepsAlphaOpaque(t *testing.T) {
	rnd := rand.New(rand.NewSource(12))
	settings := SettingsOpaqueFast()

	for iter := 0; iter < 16; iter++ {
		src := make([]byte, 64)
		makeTestTile(rnd, iter, src)
		for k := 0; k < 16; k++ {
			src[k*4+3] = byte(rnd.Intn(256))
		}

		var e blockEncoder
		e.init(&settings)
		e.loadBlockRGBA(src, 0, 0, 16)
		e.computeOpaqueErr()
		e.compressCore()

		var packed [16]byte
		e.w.store(packed[:])

		decoded := make([]byte, 64)
		DecodeBlock(packed[:], decoded, 16)

		for k := 0; k < 16; k++ {
			if decoded[k*4+3] < 254 {
				t.Fatalf("iteration %d texel %d: alpha %d, want 254 or 255", iter, k, decoded[k*4+3])
			}
		}
	}
}
