package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	draw "golang.org/x/image/draw"

	"github.com/thmasq/anibuddy/bc7"

	_ "golang.org/x/image/bmp"
	_ "image/jpeg"
	_ "image/png"
)

func main() {
	var (
		inPath    string
		outPath   string
		preset    string
		alpha     bool
		srgb      bool
		mips      int
		encode    bool
		decode    bool
		dumpInfo  bool
		dumpBlock bool
	)
	flag.StringVar(&inPath, "in", "", "input file")
	flag.StringVar(&outPath, "out", "", "output file")
	flag.StringVar(&preset, "preset", "basic", "quality preset: ultrafast|veryfast|fast|basic|slow")
	flag.BoolVar(&alpha, "alpha", false, "preserve the alpha channel (opaque presets ignore it)")
	flag.BoolVar(&srgb, "srgb", false, "tag the output as sRGB")
	flag.IntVar(&mips, "mips", 1, "mipmap levels to write (0 = full chain)")
	flag.BoolVar(&encode, "encode", false, "encode input image -> .dds")
	flag.BoolVar(&decode, "decode", false, "decode input .dds -> .png")
	flag.BoolVar(&dumpInfo, "info", false, "print .dds header info and exit")
	flag.BoolVar(&dumpBlock, "dump-first-block", false, "dump the first block payload as hex and exit")
	flag.Parse()

	if inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bc7enc -in <input> [-out <output>] [-encode|-decode] [-preset basic] [-alpha] [-mips N]")
		os.Exit(2)
	}

	inData, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if dumpInfo || dumpBlock {
		info, blocks, err := bc7.ParseDDS(inData)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(info.String())
		if dumpBlock {
			if len(blocks) < bc7.BlockBytes {
				fmt.Fprintln(os.Stderr, "bc7: missing first block")
				os.Exit(1)
			}
			fmt.Println(hex.EncodeToString(blocks[:bc7.BlockBytes]))
		}
		return
	}

	if encode == decode {
		fmt.Fprintln(os.Stderr, "specify exactly one of -encode or -decode")
		os.Exit(2)
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}

	if encode {
		settings, err := parsePreset(preset, alpha)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		img, _, err := image.Decode(bytes.NewReader(inData))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		rgba := image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

		ddsData, err := encodeDDS(rgba, &settings, mips, srgb)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := os.WriteFile(outPath, ddsData, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// decode
	img, err := decodeDDS(inData)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// encodeDDS compresses the image and its mip chain into a complete DDS
// file. Mip level i is scaled from the base with Catmull-Rom so resampling
// error does not accumulate down the chain.
func encodeDDS(rgba *image.RGBA, settings *bc7.Settings, mips int, srgb bool) ([]byte, error) {
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("bc7enc: empty image")
	}
	if mips == 0 {
		mips = fullMipCount(w, h)
	}

	info := bc7.DDSInfo{Width: w, Height: h, MipCount: mips, SRGB: srgb}
	header, err := bc7.MarshalDDSHeader(info)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, bc7.DDSHeaderSize+info.BlocksSize())
	out = append(out, header[:]...)

	for level := 0; level < mips; level++ {
		mw := max(1, w>>level)
		mh := max(1, h>>level)

		pix, stride := rgba.Pix, rgba.Stride
		if level > 0 {
			scaled := image.NewRGBA(image.Rect(0, 0, mw, mh))
			draw.CatmullRom.Scale(scaled, scaled.Bounds(), rgba, rgba.Bounds(), draw.Src, nil)
			pix, stride = scaled.Pix, scaled.Stride
		}
		pix, pw, ph, stride := padToBlocks(pix, mw, mh, stride)

		blocks := make([]byte, bc7.BlocksByteSize(mw, mh))
		if err := bc7.CompressRGBA8(settings, pix, blocks, pw, ph, stride); err != nil {
			return nil, fmt.Errorf("bc7enc: level %d: %w", level, err)
		}
		out = append(out, blocks...)
	}
	return out, nil
}

// decodeDDS decompresses the top mip level back to RGBA.
func decodeDDS(data []byte) (*image.RGBA, error) {
	info, blocks, err := bc7.ParseDDS(data)
	if err != nil {
		return nil, err
	}
	w, h := info.Width, info.Height
	pw := (w + 3) &^ 3
	ph := (h + 3) &^ 3

	padded := make([]byte, pw*ph*4)
	top := blocks[:bc7.BlocksByteSize(w, h)]
	if err := bc7.DecompressRGBA8(top, padded, pw, ph); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], padded[y*pw*4:y*pw*4+w*4])
	}
	return img, nil
}

// padToBlocks grows an image to multiples of 4 in both directions by
// replicating the last row and column, so filler texels cost the encoder
// nothing.
func padToBlocks(pix []byte, w, h, stride int) ([]byte, int, int, int) {
	pw := (w + 3) &^ 3
	ph := (h + 3) &^ 3
	if pw == w && ph == h {
		return pix, w, h, stride
	}
	out := make([]byte, pw*ph*4)
	for y := 0; y < ph; y++ {
		sy := y
		if sy >= h {
			sy = h - 1
		}
		srcRow := pix[sy*stride : sy*stride+w*4]
		dstRow := out[y*pw*4 : (y+1)*pw*4]
		copy(dstRow, srcRow)
		for x := w; x < pw; x++ {
			copy(dstRow[x*4:x*4+4], srcRow[(w-1)*4:w*4])
		}
	}
	return out, pw, ph, pw * 4
}

func fullMipCount(w, h int) int {
	n := 1
	for d := max(w, h); d > 1; d >>= 1 {
		n++
	}
	return n
}

func parsePreset(s string, alpha bool) (bc7.Settings, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ultrafast", "ultra-fast":
		if alpha {
			return bc7.SettingsAlphaUltraFast(), nil
		}
		return bc7.SettingsOpaqueUltraFast(), nil
	case "veryfast", "very-fast":
		if alpha {
			return bc7.SettingsAlphaVeryFast(), nil
		}
		return bc7.SettingsOpaqueVeryFast(), nil
	case "fast":
		if alpha {
			return bc7.SettingsAlphaFast(), nil
		}
		return bc7.SettingsOpaqueFast(), nil
	case "basic":
		if alpha {
			return bc7.SettingsAlphaBasic(), nil
		}
		return bc7.SettingsOpaqueBasic(), nil
	case "slow":
		if alpha {
			return bc7.SettingsAlphaSlow(), nil
		}
		return bc7.SettingsOpaqueSlow(), nil
	default:
		return bc7.Settings{}, fmt.Errorf("invalid -preset %q (want ultrafast|veryfast|fast|basic|slow)", s)
	}
}
