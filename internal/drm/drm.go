// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package drm maps DRM fourcc buffer formats to the pixel
// formats understood by the presentation engine.
// Window system backends negotiate buffers in fourcc terms,
// so the tables here define which formats a surface can
// advertise.
package drm

// FourCC identifies a DRM buffer format.
type FourCC uint32

func fourcc(a, b, c, d byte) FourCC {
	return FourCC(a) | FourCC(b)<<8 | FourCC(c)<<16 | FourCC(d)<<24
}

// DRM buffer formats.
var (
	RGB332   = fourcc('R', 'G', 'B', '8')
	BGR233   = fourcc('B', 'G', 'R', '8')
	XRGB4444 = fourcc('X', 'R', '1', '2')
	XBGR4444 = fourcc('X', 'B', '1', '2')
	RGBX4444 = fourcc('R', 'X', '1', '2')
	BGRX4444 = fourcc('B', 'X', '1', '2')
	ARGB4444 = fourcc('A', 'R', '1', '2')
	ABGR4444 = fourcc('A', 'B', '1', '2')
	RGBA4444 = fourcc('R', 'A', '1', '2')
	BGRA4444 = fourcc('B', 'A', '1', '2')
	XRGB1555 = fourcc('X', 'R', '1', '5')
	XBGR1555 = fourcc('X', 'B', '1', '5')
	RGBX5551 = fourcc('R', 'X', '1', '5')
	BGRX5551 = fourcc('B', 'X', '1', '5')
	ARGB1555 = fourcc('A', 'R', '1', '5')
	ABGR1555 = fourcc('A', 'B', '1', '5')
	RGBA5551 = fourcc('R', 'A', '1', '5')
	BGRA5551 = fourcc('B', 'A', '1', '5')
	RGB565   = fourcc('R', 'G', '1', '6')
	BGR565   = fourcc('B', 'G', '1', '6')
	RGB888   = fourcc('R', 'G', '2', '4')
	BGR888   = fourcc('B', 'G', '2', '4')
	XRGB8888 = fourcc('X', 'R', '2', '4')
	XBGR8888 = fourcc('X', 'B', '2', '4')
	RGBX8888 = fourcc('R', 'X', '2', '4')
	BGRX8888 = fourcc('B', 'X', '2', '4')
	ARGB8888 = fourcc('A', 'R', '2', '4')
	ABGR8888 = fourcc('A', 'B', '2', '4')
	RGBA8888 = fourcc('R', 'A', '2', '4')
	BGRA8888 = fourcc('B', 'A', '2', '4')
)

// Modifier identifies a DRM format modifier.
type Modifier uint64

// ModifierLinear is the only modifier that every backend
// must accept.
const ModifierLinear Modifier = 0

// Format is a pixel format of the presentation engine.
// FormatUndefined marks fourcc entries that have no
// presentable counterpart.
type Format int

// Pixel formats.
const (
	FormatUndefined Format = iota
	RGBA4Unorm
	BGRA4Unorm
	A1RGB5Unorm
	RGB5A1Unorm
	BGR5A1Unorm
	RGB565Unorm
	BGR565Unorm
	RGB8Unorm
	BGR8Unorm
	RGBA8Unorm
	BGRA8Unorm
	RGBA8SRGB
	BGRA8SRGB
)

// String returns the format's name.
func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case RGBA4Unorm:
		return "RGBA4Unorm"
	case BGRA4Unorm:
		return "BGRA4Unorm"
	case A1RGB5Unorm:
		return "A1RGB5Unorm"
	case RGB5A1Unorm:
		return "RGB5A1Unorm"
	case BGR5A1Unorm:
		return "BGR5A1Unorm"
	case RGB565Unorm:
		return "RGB565Unorm"
	case BGR565Unorm:
		return "BGR565Unorm"
	case RGB8Unorm:
		return "RGB8Unorm"
	case BGR8Unorm:
		return "BGR8Unorm"
	case RGBA8Unorm:
		return "RGBA8Unorm"
	case BGRA8Unorm:
		return "BGRA8Unorm"
	case RGBA8SRGB:
		return "RGBA8SRGB"
	case BGRA8SRGB:
		return "BGRA8SRGB"
	}
	return "<invalid format>"
}

// Spec describes one fourcc entry.
type Spec struct {
	FourCC FourCC
	// Bits per pixel of the single plane.
	BPP int
	// Format is FormatUndefined when the fourcc cannot
	// be presented.
	Format Format
}

// formatTable lists the R,G,B,A fourcc formats and their
// presentable counterparts.
var formatTable = [...]Spec{
	{RGB332, 8, FormatUndefined},
	{BGR233, 8, FormatUndefined},
	{XRGB4444, 16, FormatUndefined},
	{XBGR4444, 16, FormatUndefined},
	{RGBX4444, 16, FormatUndefined},
	{BGRX4444, 16, FormatUndefined},
	{ARGB4444, 16, FormatUndefined},
	{ABGR4444, 16, FormatUndefined},
	{RGBA4444, 16, RGBA4Unorm},
	{BGRA4444, 16, BGRA4Unorm},
	{XRGB1555, 16, FormatUndefined},
	{XBGR1555, 16, FormatUndefined},
	{RGBX5551, 16, FormatUndefined},
	{BGRX5551, 16, FormatUndefined},
	{ARGB1555, 16, A1RGB5Unorm},
	{ABGR1555, 16, FormatUndefined},
	{RGBA5551, 16, RGB5A1Unorm},
	{BGRA5551, 16, BGR5A1Unorm},
	{RGB565, 16, RGB565Unorm},
	{BGR565, 16, BGR565Unorm},
	{RGB888, 24, BGR8Unorm},
	{BGR888, 24, RGB8Unorm},
	{XRGB8888, 32, FormatUndefined},
	{XBGR8888, 32, FormatUndefined},
	{RGBX8888, 32, FormatUndefined},
	{BGRX8888, 32, FormatUndefined},
	{ARGB8888, 32, BGRA8Unorm},
	{ABGR8888, 32, RGBA8Unorm},
	{RGBA8888, 32, FormatUndefined},
	{BGRA8888, 32, FormatUndefined},
}

// srgbTable lists the fourcc formats that can additionally
// be presented with sRGB encoding.
var srgbTable = [...]Spec{
	{ARGB8888, 32, BGRA8SRGB},
	{ABGR8888, 32, RGBA8SRGB},
}

// Lookup returns the Spec of a fourcc format.
func Lookup(fc FourCC) (Spec, bool) {
	for i := range formatTable {
		if formatTable[i].FourCC == fc {
			return formatTable[i], true
		}
	}
	return Spec{}, false
}

// LookupSRGB returns the sRGB Spec of a fourcc format.
func LookupSRGB(fc FourCC) (Spec, bool) {
	for i := range srgbTable {
		if srgbTable[i].FourCC == fc {
			return srgbTable[i], true
		}
	}
	return Spec{}, false
}

// FormatOf returns the presentable format of a fourcc,
// considering the sRGB table when srgb is true.
func FormatOf(fc FourCC, srgb bool) Format {
	if srgb {
		if s, ok := LookupSRGB(fc); ok {
			return s.Format
		}
		return FormatUndefined
	}
	if s, ok := Lookup(fc); ok {
		return s.Format
	}
	return FormatUndefined
}

// SpecFor returns the fourcc entry whose presentable format
// is f, consulting the sRGB table as well.
func SpecFor(f Format) (Spec, bool) {
	if f == FormatUndefined {
		return Spec{}, false
	}
	for i := range formatTable {
		if formatTable[i].Format == f {
			return formatTable[i], true
		}
	}
	for i := range srgbTable {
		if srgbTable[i].Format == f {
			return srgbTable[i], true
		}
	}
	return Spec{}, false
}

// PresentableFormats returns every format that has a fourcc
// mapping, sRGB variants included.
func PresentableFormats() []Format {
	var fmts []Format
	for i := range formatTable {
		if formatTable[i].Format != FormatUndefined {
			fmts = append(fmts, formatTable[i].Format)
		}
	}
	for i := range srgbTable {
		fmts = append(fmts, srgbTable[i].Format)
	}
	return fmts
}
