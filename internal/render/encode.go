package render

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/user/stm_scan_go/internal/scan"
)

// ImageFormat is a raster encoding.
type ImageFormat string

const (
	PNG  ImageFormat = "png"
	JPEG ImageFormat = "jpeg"
	GIF  ImageFormat = "gif"
	TIFF ImageFormat = "tiff"
	BMP  ImageFormat = "bmp"
)

var extFormats = map[string]ImageFormat{
	".png":  PNG,
	".jpg":  JPEG,
	".jpeg": JPEG,
	".gif":  GIF,
	".tif":  TIFF,
	".tiff": TIFF,
	".bmp":  BMP,
}

var contentTypes = map[ImageFormat]string{
	PNG:  "image/png",
	JPEG: "image/jpeg",
	GIF:  "image/gif",
	TIFF: "image/tiff",
	BMP:  "image/bmp",
}

// FormatFromPath picks the raster encoding from a file extension.
func FormatFromPath(path string) (ImageFormat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", scan.Malformedf("no raster encoder for %q", ext)
}

// ContentType returns the MIME type of a format.
func (f ImageFormat) ContentType() string {
	return contentTypes[f]
}

// MaxImagePixels bounds the pixel count of an upscaled raster.
const MaxImagePixels = 1 << 28

// CheckScale rejects upscale factors whose output would exceed MaxImagePixels.
func CheckScale(width, height, scale int) error {
	if scale < 1 {
		return scan.Malformedf("scale %d must be at least 1", scale)
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	if scale > MaxImagePixels/width || scale > MaxImagePixels/height ||
		width*scale > MaxImagePixels/(height*scale) {
		return scan.Malformedf("scale %d turns a %dx%d raster into more than %d pixels", scale, width, height, MaxImagePixels)
	}
	return nil
}

// Encode writes the raster, upscaled by an integer factor, in the given format.
func Encode(w io.Writer, r *Raster, format ImageFormat, scale int) error {
	b := r.Image.Bounds()
	if err := CheckScale(b.Dx(), b.Dy(), max(scale, 1)); err != nil {
		return err
	}
	img := Upscale(r.Image, scale)

	var err error
	switch format {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(w, img)
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case GIF:
		err = gif.Encode(w, img, nil)
	case TIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		err = bmp.Encode(w, img)
	default:
		return scan.Malformedf("unknown image format %q", format)
	}
	if err != nil {
		return scan.IOErrorf("failed to encode %s: %v", format, err)
	}
	return nil
}

// Upscale enlarges img by an integer factor with nearest-neighbour sampling.
// Factors below 2 return img unchanged.
func Upscale(img *image.RGBA, scale int) *image.RGBA {
	if scale < 2 {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					out.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return out
}
