// image.go - Konvertierung von Sample-Tensoren in Bilder
//
// Dieses Modul enthaelt:
// - frameImage: CHW-Float-Ebene [0,1] -> RGBA
// - gridImage: Batch eines Frames -> gekacheltes Grid
// - palettize: RGBA -> Paletted fuer den GIF-Encoder
package output

import (
	"image"
	"image/color/palette"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/7wolken7/animforge/engine"
)

// frameImage konvertiert die CHW-Ebene eines Frames in ein RGBA-Bild.
// Ein-Kanal-Samples werden als Graustufen repliziert.
func frameImage(s *engine.Sample, batch, frame int) *image.RGBA {
	data := s.Frame(batch, frame)
	plane := s.Height * s.Width

	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := range s.Height {
		for x := range s.Width {
			i := y*s.Width + x
			r := quantize(data[i])
			g, b := r, r
			if s.Channels >= 3 {
				g = quantize(data[plane+i])
				b = quantize(data[2*plane+i])
			}

			o := img.PixOffset(x, y)
			img.Pix[o+0] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 0xff
		}
	}

	return img
}

// quantize bildet [0,1] auf ein Byte ab; Werte ausserhalb werden geklemmt
func quantize(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}

// gridImage kachelt alle Batch-Elemente eines Frames in ein Grid mit
// hoechstens perRow Kacheln pro Zeile
func gridImage(s *engine.Sample, frame, perRow int) *image.RGBA {
	if perRow > s.Batch {
		perRow = s.Batch
	}
	rows := (s.Batch + perRow - 1) / perRow

	grid := image.NewRGBA(image.Rect(0, 0, perRow*s.Width, rows*s.Height))
	for batch := range s.Batch {
		tile := frameImage(s, batch, frame)
		origin := image.Pt((batch%perRow)*s.Width, (batch/perRow)*s.Height)
		xdraw.Draw(grid, tile.Bounds().Add(origin), tile, image.Point{}, xdraw.Src)
	}

	return grid
}

// palettize quantisiert ein Bild fuer den GIF-Encoder
func palettize(img image.Image) *image.Paletted {
	out := image.NewPaletted(img.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(out, img.Bounds(), img, image.Point{})
	return out
}
