package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/thmasq/anibuddy/bc7"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "decode":
		decodeCmd(os.Args[2:])
	case "encode":
		encodeCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  bc7bench decode -in <file.dds> [-iters N] [-checksum fnv|none]")
	fmt.Fprintln(os.Stderr, "  bc7bench encode -w W -h H [-preset ultrafast|veryfast|fast|basic|slow] [-alpha] [-iters N] [-out file.dds] [-checksum fnv|none]")
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	var (
		inPath      string
		iters       int
		checksumOpt string
		cpuprofile  string
		memprofile  string
		memprofRate int
	)
	fs.StringVar(&inPath, "in", "", "input .dds path")
	fs.IntVar(&iters, "iters", 200, "iterations")
	fs.StringVar(&checksumOpt, "checksum", "fnv", "checksum: fnv|none (for benchmarking)")
	fs.StringVar(&cpuprofile, "cpuprofile", "", "optional CPU profile output path")
	fs.StringVar(&memprofile, "memprofile", "", "optional memory profile output path")
	fs.IntVar(&memprofRate, "memprofilerate", 0, "optional runtime.MemProfileRate override (0 = default)")
	_ = fs.Parse(args)

	if inPath == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	if iters <= 0 {
		fmt.Fprintln(os.Stderr, "-iters must be positive")
		os.Exit(2)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	info, blocks, err := bc7.ParseDDS(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	w, h := info.Width, info.Height
	pw := (w + 3) &^ 3
	ph := (h + 3) &^ 3
	top := blocks[:bc7.BlocksByteSize(w, h)]
	dst := make([]byte, pw*ph*4)

	if memprofRate > 0 {
		runtime.MemProfileRate = memprofRate
	}

	var cpuFile *os.File
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cpuFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	start := time.Now()
	var checksum uint64
	doChecksum := strings.ToLower(strings.TrimSpace(checksumOpt)) != "none"

	for i := 0; i < iters; i++ {
		if err := bc7.DecompressRGBA8(top, dst, pw, ph); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if doChecksum {
			checksum = fnv1a64(checksum, dst)
		}
	}

	dur := time.Since(start)
	texels := float64(w*h) * float64(iters)
	mpixPerS := texels / dur.Seconds() / 1e6

	if memprofile != "" {
		f, err := os.Create(memprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	checksumStr := fmtChecksum(checksum)
	if !doChecksum {
		checksumStr = "none"
	}

	fmt.Printf("RESULT impl=go mode=decode size=%dx%d mips=%d iters=%d seconds=%.6f mpix/s=%.3f checksum=%s\n",
		w, h,
		info.MipCount,
		iters,
		dur.Seconds(),
		mpixPerS,
		checksumStr,
	)
}

func encodeCmd(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	var (
		width       int
		height      int
		preset      string
		alpha       bool
		iters       int
		outPath     string
		checksumOpt string
		cpuprofile  string
	)
	fs.IntVar(&width, "w", 256, "texture width")
	fs.IntVar(&height, "h", 256, "texture height")
	fs.StringVar(&preset, "preset", "basic", "quality preset: ultrafast|veryfast|fast|basic|slow")
	fs.BoolVar(&alpha, "alpha", false, "use the alpha presets and score all four channels")
	fs.IntVar(&iters, "iters", 20, "iterations")
	fs.StringVar(&outPath, "out", "", "optional output .dds path for the last iteration")
	fs.StringVar(&checksumOpt, "checksum", "fnv", "checksum: fnv|none (for benchmarking)")
	fs.StringVar(&cpuprofile, "cpuprofile", "", "optional CPU profile output path")
	_ = fs.Parse(args)

	if width <= 0 || height <= 0 || width%4 != 0 || height%4 != 0 {
		fmt.Fprintln(os.Stderr, "width and height must be positive multiples of 4")
		os.Exit(2)
	}
	if iters <= 0 {
		fmt.Fprintln(os.Stderr, "-iters must be positive")
		os.Exit(2)
	}
	settings, err := parsePreset(preset, alpha)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	pix := make([]byte, width*height*4)
	fillPatternRGBA8(pix, width, height)
	blocks := make([]byte, bc7.BlocksByteSize(width, height))

	var cpuFile *os.File
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cpuFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	start := time.Now()
	var checksum uint64
	doChecksum := strings.ToLower(strings.TrimSpace(checksumOpt)) != "none"

	for i := 0; i < iters; i++ {
		if err := bc7.CompressRGBA8(&settings, pix, blocks, width, height, width*4); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if doChecksum {
			checksum = fnv1a64(checksum, blocks)
		}
	}

	dur := time.Since(start)
	texels := float64(width*height) * float64(iters)
	mpixPerS := texels / dur.Seconds() / 1e6
	blocksPerS := float64(len(blocks)/bc7.BlockBytes) * float64(iters) / dur.Seconds()

	decoded := make([]byte, width*height*4)
	if err := bc7.DecompressRGBA8(blocks, decoded, width, height); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	channels := 3
	if alpha {
		channels = 4
	}
	quality := psnr(pix, decoded, channels)

	if outPath != "" {
		header, err := bc7.MarshalDDSHeader(bc7.DDSInfo{Width: width, Height: height, MipCount: 1})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := os.WriteFile(outPath, append(header[:], blocks...), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	checksumStr := fmtChecksum(checksum)
	if !doChecksum {
		checksumStr = "none"
	}

	fmt.Printf("RESULT impl=go mode=encode preset=%s alpha=%t size=%dx%d iters=%d seconds=%.6f mpix/s=%.3f blocks/s=%.0f psnr=%.2f checksum=%s\n",
		preset,
		alpha,
		width, height,
		iters,
		dur.Seconds(),
		mpixPerS,
		blocksPerS,
		quality,
		checksumStr,
	)
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

func fillPatternRGBA8(pix []byte, width, height int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * 4
			r := uint32(x*3 + y*5)
			g := uint32(x*11 + y*13)
			b := uint32(x ^ y)
			a := 255 - uint32((x*5+y*7)&0xFF)
			pix[off+0] = uint8(r)
			pix[off+1] = uint8(g)
			pix[off+2] = uint8(b)
			pix[off+3] = uint8(a)
		}
	}
}

// psnr scores decoded output against the source over the first n channels
// of each texel. Identical buffers report +Inf.
func psnr(src, dst []byte, channels int) float64 {
	var sse float64
	count := 0
	for i := 0; i+3 < len(src) && i+3 < len(dst); i += 4 {
		for c := 0; c < channels; c++ {
			d := float64(int(src[i+c]) - int(dst[i+c]))
			sse += d * d
			count++
		}
	}
	if count == 0 || sse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(255*255/(sse/float64(count)))
}

func fnv1a64(seed uint64, data []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := seed
	if h == 0 {
		h = offset64
	}
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

func fmtChecksum(v uint64) string {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> uint(i*8))
	}
	return hex.EncodeToString(b[:])
}
