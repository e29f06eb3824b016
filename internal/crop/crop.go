package crop

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultSize is the side length of curated training images.
const DefaultSize = 1024

// Square scales img so its short side equals size, then cuts the centred
// size x size window. Content outside the window on the long axis is lost.
// Input that is already size x size is copied without resampling.
func Square(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	if w == size && h == size {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}

	newW, newH := scaledSize(w, h, size)
	scaled := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	left := (newW - size) / 2
	top := (newH - size) / 2
	draw.Draw(dst, dst.Bounds(), scaled, image.Pt(left, top), draw.Src)
	return dst
}

// scaledSize keeps the aspect ratio while pinning the short side to size
// exactly, so the crop window always fits.
func scaledSize(w, h, size int) (int, int) {
	if w <= h {
		newH := (h*size + w/2) / w
		if newH < size {
			newH = size
		}
		return size, newH
	}
	newW := (w*size + h/2) / h
	if newW < size {
		newW = size
	}
	return newW, size
}
