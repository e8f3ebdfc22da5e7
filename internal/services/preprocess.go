package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"dococr/internal/models"
	"dococr/internal/ocr"
)

// ErrPreprocess is returned when a page image cannot be decoded or re-encoded.
var ErrPreprocess = errors.New("preprocess page image")

// Preprocessor shrinks, grayscales and JPEG-encodes page images.
type Preprocessor struct {
	maxEdge  int
	quality  int
	maxBytes int
}

// NewPreprocessor returns a Preprocessor; maxBytes <= 0 disables the size check.
func NewPreprocessor(maxEdge, quality, maxBytes int) *Preprocessor {
	if maxEdge <= 0 {
		maxEdge = 2000
	}
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Preprocessor{maxEdge: maxEdge, quality: quality, maxBytes: maxBytes}
}

func (p *Preprocessor) Prepare(page models.PageImage) (ocr.Payload, error) {
	img, _, err := image.Decode(bytes.NewReader(page.Data))
	if err != nil {
		return ocr.Payload{}, fmt.Errorf("%w: page %d: decode: %v", ErrPreprocess, page.Index, err)
	}
	payload, err := p.PrepareImage(img)
	if err != nil {
		return ocr.Payload{}, fmt.Errorf("page %d: %w", page.Index, err)
	}
	return payload, nil
}

func (p *Preprocessor) PrepareImage(img image.Image) (ocr.Payload, error) {
	src := img.Bounds()
	if src.Empty() {
		return ocr.Payload{}, fmt.Errorf("%w: empty image", ErrPreprocess)
	}

	w, h := fitWithin(src.Dx(), src.Dy(), p.maxEdge)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return ocr.Payload{}, fmt.Errorf("%w: encode jpeg: %v", ErrPreprocess, err)
	}
	if p.maxBytes > 0 && buf.Len() > p.maxBytes {
		return ocr.Payload{}, fmt.Errorf("%w: encoded size %d exceeds limit %d", ErrPreprocess, buf.Len(), p.maxBytes)
	}

	return ocr.Payload{
		Data:   buf.Bytes(),
		Format: "image/jpeg",
		Width:  w,
		Height: h,
	}, nil
}

// fitWithin scales w x h down so the long edge is at most maxEdge, keeping
// the aspect ratio. Images already within bounds are left alone.
func fitWithin(w, h, maxEdge int) (int, int) {
	long := w
	if h > long {
		long = h
	}
	if long <= maxEdge {
		return w, h
	}
	nw := w * maxEdge / long
	nh := h * maxEdge / long
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
