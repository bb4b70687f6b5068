package bc7

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DDS container constants. Layout is magic + DDS_HEADER + DDS_HEADER_DXT10;
// BC7 always uses the DX10 extension header.
const (
	ddsMagic      = 0x20534444 // "DDS "
	ddsFourCCDX10 = 0x30315844 // "DX10"

	ddsHeaderFlagCaps        = 0x1
	ddsHeaderFlagHeight      = 0x2
	ddsHeaderFlagWidth       = 0x4
	ddsHeaderFlagPixelFormat = 0x1000
	ddsHeaderFlagMipMapCount = 0x20000
	ddsHeaderFlagLinearSize  = 0x80000

	ddsPixelFormatFourCC = 0x4

	ddsCapsComplex = 0x8
	ddsCapsTexture = 0x1000
	ddsCapsMipMap  = 0x400000

	ddsDimensionTexture2D = 3

	dxgiFormatBC7UNorm     = 98
	dxgiFormatBC7UNormSRGB = 99
)

// DDSHeaderSize is the size in bytes of the full DDS preamble: magic,
// legacy header, and DX10 extension.
const DDSHeaderSize = 4 + 124 + 20

// DDSInfo describes the BC7 payload of a DDS file.
type DDSInfo struct {
	Width    int
	Height   int
	MipCount int
	SRGB     bool
}

func (i DDSInfo) String() string {
	return fmt.Sprintf("BC7 DDS %dx%d texels, %d mip levels", i.Width, i.Height, i.MipCount)
}

func (i DDSInfo) validate() error {
	if i.Width <= 0 || i.Height <= 0 {
		return errors.New("bc7: invalid DDS info: non-positive image dimension")
	}
	if i.MipCount < 1 {
		return errors.New("bc7: invalid DDS info: mip count below 1")
	}
	maxDim := i.Width
	if i.Height > maxDim {
		maxDim = i.Height
	}
	if i.MipCount > 1 && maxDim>>uint(i.MipCount-1) == 0 {
		return errors.New("bc7: invalid DDS info: mip chain longer than dimensions allow")
	}
	return nil
}

// mipDims returns the texel dimensions of one mip level.
func mipDims(width, height, level int) (int, int) {
	w := width >> uint(level)
	h := height >> uint(level)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// BlocksSize returns the total compressed payload size of the mip chain.
func (i DDSInfo) BlocksSize() int {
	total := 0
	for level := 0; level < i.MipCount; level++ {
		w, h := mipDims(i.Width, i.Height, level)
		total += BlocksByteSize(w, h)
	}
	return total
}

// MarshalDDSHeader returns the DDS preamble for a BC7 image.
func MarshalDDSHeader(info DDSInfo) ([DDSHeaderSize]byte, error) {
	var out [DDSHeaderSize]byte
	if err := info.validate(); err != nil {
		return out, err
	}

	flags := uint32(ddsHeaderFlagCaps | ddsHeaderFlagHeight | ddsHeaderFlagWidth |
		ddsHeaderFlagPixelFormat | ddsHeaderFlagLinearSize)
	caps := uint32(ddsCapsTexture)
	if info.MipCount > 1 {
		flags |= ddsHeaderFlagMipMapCount
		caps |= ddsCapsComplex | ddsCapsMipMap
	}

	le := binary.LittleEndian
	le.PutUint32(out[0:], ddsMagic)
	le.PutUint32(out[4:], 124) // header size
	le.PutUint32(out[8:], flags)
	le.PutUint32(out[12:], uint32(info.Height))
	le.PutUint32(out[16:], uint32(info.Width))
	le.PutUint32(out[20:], uint32(BlocksByteSize(info.Width, info.Height)))
	le.PutUint32(out[28:], uint32(info.MipCount))
	// Pixel format block at offset 76.
	le.PutUint32(out[76:], 32) // pixel format size
	le.PutUint32(out[80:], ddsPixelFormatFourCC)
	le.PutUint32(out[84:], ddsFourCCDX10)
	le.PutUint32(out[108:], caps)
	// DX10 extension at offset 128.
	format := uint32(dxgiFormatBC7UNorm)
	if info.SRGB {
		format = dxgiFormatBC7UNormSRGB
	}
	le.PutUint32(out[128:], format)
	le.PutUint32(out[132:], ddsDimensionTexture2D)
	le.PutUint32(out[140:], 1) // array size

	return out, nil
}

// ParseDDS parses a BC7 DDS file.
//
// It returns the image description and the compressed mip chain (the slice
// aliases data). Non-BC7 formats and texture arrays are rejected.
func ParseDDS(data []byte) (DDSInfo, []byte, error) {
	if len(data) < DDSHeaderSize {
		return DDSInfo{}, nil, ddsErrUnexpectedEOF("header", DDSHeaderSize, len(data))
	}

	le := binary.LittleEndian
	if le.Uint32(data[0:]) != ddsMagic {
		return DDSInfo{}, nil, errors.New("bc7: invalid DDS magic")
	}
	if le.Uint32(data[4:]) != 124 {
		return DDSInfo{}, nil, errors.New("bc7: invalid DDS header size")
	}
	if le.Uint32(data[76:]) != 32 {
		return DDSInfo{}, nil, errors.New("bc7: invalid DDS pixel format size")
	}
	if le.Uint32(data[80:])&ddsPixelFormatFourCC == 0 || le.Uint32(data[84:]) != ddsFourCCDX10 {
		return DDSInfo{}, nil, errors.New("bc7: not a DX10 DDS file")
	}

	format := le.Uint32(data[128:])
	if format != dxgiFormatBC7UNorm && format != dxgiFormatBC7UNormSRGB {
		return DDSInfo{}, nil, fmt.Errorf("bc7: unsupported DXGI format %d", format)
	}
	if le.Uint32(data[132:]) != ddsDimensionTexture2D {
		return DDSInfo{}, nil, errors.New("bc7: only 2D textures are supported")
	}
	if arraySize := le.Uint32(data[140:]); arraySize > 1 {
		return DDSInfo{}, nil, errors.New("bc7: texture arrays are not supported")
	}

	info := DDSInfo{
		Width:    int(le.Uint32(data[16:])),
		Height:   int(le.Uint32(data[12:])),
		MipCount: 1,
		SRGB:     format == dxgiFormatBC7UNormSRGB,
	}
	if le.Uint32(data[8:])&ddsHeaderFlagMipMapCount != 0 {
		if n := int(le.Uint32(data[28:])); n > 1 {
			info.MipCount = n
		}
	}
	if err := info.validate(); err != nil {
		return DDSInfo{}, nil, err
	}

	need := DDSHeaderSize + info.BlocksSize()
	if len(data) < need {
		return DDSInfo{}, nil, ddsErrUnexpectedEOF("payload", need, len(data))
	}

	return info, data[DDSHeaderSize:need], nil
}

func ddsErrUnexpectedEOF(what string, want, got int) error {
	return fmt.Errorf("bc7: DDS %s: unexpected EOF: want %d bytes, got %d", what, want, got)
}
