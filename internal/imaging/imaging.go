// Package imaging prepares uploaded cover art for storage. Covers are shown
// as portrait thumbnails in the catalog and at roughly double size on the
// item page, so everything is normalized into one bounded JPEG: sniff the
// real format, fit into the cover box, re-encode.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Stored covers fit within a portrait box sized for the item page at 2x.
const (
	MaxWidth  = 800
	MaxHeight = 1200
)

// JPEGQuality is the compression quality for the stored cover.
const JPEGQuality = 85

// Cover is processed cover art ready to store.
type Cover struct {
	Data []byte
	MIME string
}

// Prepare reads uploaded cover data, decodes it based on the sniffed content
// type (client headers are not trusted), scales it down to fit the cover box,
// and re-encodes as JPEG. Images already inside the box keep their size.
func Prepare(r io.Reader) (*Cover, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading cover data: %w", err)
	}

	var img image.Image
	switch detected := http.DetectContentType(data); detected {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported cover format %s: upload a JPEG or PNG", detected)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding cover: %w", err)
	}

	img = fitCoverBox(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding cover: %w", err)
	}

	return &Cover{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// fitCoverBox scales the image down to fit MaxWidth x MaxHeight, preserving
// aspect ratio. Covers smaller than the box are never upscaled.
func fitCoverBox(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= MaxWidth && h <= MaxHeight {
		return img
	}

	scale := float64(MaxWidth) / float64(w)
	if s := float64(MaxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
