// package transcoder converts cover art into the RGB565 bitmap the ESP32 display reads
//
// The output is a 66 byte BMP header (file header, BITMAPINFOHEADER and three BI_BITFIELDS masks)
// followed by top-down rows of little-endian RGB565 pixels without row padding.
package transcoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/shared"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	maskSize       = 12

	// HeaderSize is the offset of the first pixel in the container.
	HeaderSize = fileHeaderSize + infoHeaderSize + maskSize

	bitsPerPixel   = 16
	bytesPerPixel  = bitsPerPixel / 8
	biBitfields    = 3
	pixelsPerMeter = 2835 // 72 DPI

	redMask   = 0xF800
	greenMask = 0x07E0
	blueMask  = 0x001F

	// maxDimension guards against allocating absurd buffers for misconfigured displays.
	maxDimension = 4096

	// maxSourceDimension bounds the decoded raster; compressed size says little about it.
	maxSourceDimension = 8192
)

// Transcoder converts images for a display of fixed size.
type Transcoder struct {
	Width   int
	Height  int
	Metrics *metrics.Metrics
}

// New creates a [Transcoder] for a width x height display.
func New(width, height int, m *metrics.Metrics) *Transcoder {
	return &Transcoder{Width: width, Height: height, Metrics: m}
}

// Transcode converts data for the configured display. It fails with [shared.ErrTranscode] when ctx is done.
func (t *Transcoder) Transcode(ctx context.Context, data []byte) (*models.TranscodedImage, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		t.Metrics.ObserveTranscode(metrics.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("%w: %v", shared.ErrTranscode, err)
	}

	img, err := Transcode(data, t.Width, t.Height)
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			img, err = nil, fmt.Errorf("%w: %v", shared.ErrTranscode, cerr)
		}
	}

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	t.Metrics.ObserveTranscode(outcome, time.Since(start))
	return img, err
}

// Transcode decodes data (JPEG, PNG, GIF, WebP or BMP), stretches it to exactly width x height and
// encodes it as an RGB565 bitmap. No partial image is returned on failure.
func Transcode(data []byte, width, height int) (*models.TranscodedImage, error) {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("%w: invalid target size %dx%d", shared.ErrTranscode, width, height)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", shared.ErrTranscode, err)
	}
	if cfg.Width > maxSourceDimension || cfg.Height > maxSourceDimension {
		return nil, fmt.Errorf("%w: %s source %dx%d exceeds %dx%d",
			shared.ErrTranscode, format, cfg.Width, cfg.Height, maxSourceDimension, maxSourceDimension)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", shared.ErrTranscode, err)
	}
	if b := src.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", shared.ErrTranscode, format)
	}

	dst := Resize(src, width, height)

	return &models.TranscodedImage{
		Width:           width,
		Height:          height,
		PixelFormat:     models.PixelFormatRGB565,
		ContainerFormat: models.ContainerBMP,
		Bytes:           Encode(dst),
	}, nil
}

// Resize stretches src to exactly width x height with Catmull-Rom, compositing transparency over black.
func Resize(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// RGB565 packs an 8-bit per channel color into 5-6-5 bits.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Encode writes img as a complete container: header, then rows top-to-bottom, pixels left-to-right.
func Encode(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	imageSize := w * h * bytesPerPixel

	out := make([]byte, HeaderSize+imageSize)
	writeHeader(out[:HeaderSize], w, h)

	pixels := out[HeaderSize:]
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			binary.LittleEndian.PutUint16(pixels[i:], RGB565(c.R, c.G, c.B))
			i += bytesPerPixel
		}
	}
	return out
}

func writeHeader(hdr []byte, width, height int) {
	le := binary.LittleEndian
	imageSize := uint32(width * height * bytesPerPixel)

	// BITMAPFILEHEADER
	hdr[0], hdr[1] = 'B', 'M'
	le.PutUint32(hdr[2:], HeaderSize+imageSize)
	le.PutUint32(hdr[6:], 0)
	le.PutUint32(hdr[10:], HeaderSize)

	// BITMAPINFOHEADER; negative height marks top-down rows
	info := hdr[fileHeaderSize:]
	le.PutUint32(info[0:], infoHeaderSize)
	le.PutUint32(info[4:], uint32(int32(width)))
	le.PutUint32(info[8:], uint32(-int32(height)))
	le.PutUint16(info[12:], 1)
	le.PutUint16(info[14:], bitsPerPixel)
	le.PutUint32(info[16:], biBitfields)
	le.PutUint32(info[20:], imageSize)
	le.PutUint32(info[24:], pixelsPerMeter)
	le.PutUint32(info[28:], pixelsPerMeter)
	le.PutUint32(info[32:], 0)
	le.PutUint32(info[36:], 0)

	masks := info[infoHeaderSize:]
	le.PutUint32(masks[0:], redMask)
	le.PutUint32(masks[4:], greenMask)
	le.PutUint32(masks[8:], blueMask)
}
