package gpu

import "github.com/Carmen-Shannon/oxy-frame/common"

// ReadbackRowAlignment is the required byte alignment of each row in a texture-to-buffer copy.
const ReadbackRowAlignment = 256

// Footprint is the layout of a texture copied into a linear buffer.
type Footprint struct {
	Offset uint64
	Width  uint32
	Height uint32
	Format Format
	// RowPitch is the byte distance between rows, a multiple of ReadbackRowAlignment.
	RowPitch uint32
}

// ReadbackFootprint returns the aligned layout of a width x height texture of format f.
func ReadbackFootprint(width, height uint32, f Format) Footprint {
	row := uint64(width) * uint64(f.BytesPerPixel())
	return Footprint{
		Width:    width,
		Height:   height,
		Format:   f,
		RowPitch: uint32(common.AlignUp(row, ReadbackRowAlignment)),
	}
}

// Size returns the number of bytes the copy occupies.
func (fp Footprint) Size() uint64 {
	return fp.Offset + uint64(fp.RowPitch)*uint64(fp.Height)
}

// RowPitchTexels returns RowPitch in texels.
func (fp Footprint) RowPitchTexels() uint32 {
	bpp := fp.Format.BytesPerPixel()
	if bpp == 0 {
		return 0
	}
	return fp.RowPitch / bpp
}
