// Package render draws the robot's view of the table: board, pieces, capture bins and the
// carriage, laid out in gantry coordinates.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/planner"
)

// Scene is everything drawn in one frame.
type Scene struct {
	Geometry planner.Geometry
	Pieces   map[domain.Square]domain.Piece
	WhiteBin []domain.Piece
	BlackBin []domain.Piece
	Pose     domain.Point
	Homed    bool
	Magnet   domain.MagnetState
}

// Scale is pixels per step.
const Scale = 0.25

var (
	tableColor      = "#2b2f3a"
	lightSquare     = "#e9cfa3"
	darkSquare      = "#bb8860"
	binSlotColor    = "#444a5a"
	whitePieceFill  = "#f5f5f0"
	blackPieceFill  = "#1d1d1d"
	engagedColor    = "#e0483e"
	releasedColor   = "#9aa0ad"
	unhomedColor    = "#f0b429"
	whiteLabelColor = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	blackLabelColor = color.NRGBA{R: 240, G: 240, B: 240, A: 255}
)

// label is a letter to stamp over the raster after the vector pass.
type label struct {
	text string
	at   image.Point
	clr  color.Color
}

// PNG renders the scene.
func PNG(ctx context.Context, s Scene) ([]byte, error) {
	g := s.Geometry
	if g.XMax <= 0 || g.YMax <= 0 || g.SquareSize <= 0 {
		return nil, fmt.Errorf("render: empty geometry")
	}
	w := int(float64(g.XMax)*Scale) + 1
	h := int(float64(g.YMax)*Scale) + 1

	svg, labels := buildSVG(s, w, h)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse scene svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, imagedraw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	drawLabels(img, labels)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// toPixel maps gantry coordinates to image coordinates. y grows upwards on the table.
func toPixel(g planner.Geometry, p domain.Point) (float64, float64) {
	return float64(p.X) * Scale, float64(g.YMax-p.Y) * Scale
}

func buildSVG(s Scene, w, h int) (string, []label) {
	g := s.Geometry
	var b strings.Builder
	var labels []label

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, w, h, tableColor)

	side := float64(g.SquareSize) * Scale
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			sq := domain.Square{File: f, Rank: r}
			cx, cy := toPixel(g, g.Center(sq))
			fill := lightSquare
			if (f+r)%2 == 0 {
				fill = darkSquare
			}
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>`, cx-side/2, cy-side/2, side, side, fill)
		}
	}

	pieceR := side * 0.34
	for sq, p := range s.Pieces {
		cx, cy := toPixel(g, g.Center(sq))
		labels = append(labels, piece(&b, p, cx, cy, pieceR))
	}

	slotR := side * 0.2
	for _, bin := range []struct {
		color  domain.Color
		pieces []domain.Piece
	}{{domain.White, s.WhiteBin}, {domain.Black, s.BlackBin}} {
		for i, p := range bin.pieces {
			cx, cy := toPixel(g, g.Slot(bin.color, i))
			if p.IsEmpty() {
				fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>`, cx, cy, slotR, binSlotColor)
				continue
			}
			labels = append(labels, piece(&b, p, cx, cy, slotR))
		}
	}

	carriage := releasedColor
	switch {
	case !s.Homed:
		carriage = unhomedColor
	case s.Magnet == domain.MagnetEngaged:
		carriage = engagedColor
	}
	px, py := toPixel(g, s.Pose)
	fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="none" stroke="%s" stroke-width="3"/>`, px, py, side*0.42, carriage)
	fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="2" fill="%s"/>`, px, py, carriage)

	b.WriteString(`</svg>`)
	return b.String(), labels
}

func piece(b *strings.Builder, p domain.Piece, cx, cy, r float64) label {
	fill, stroke, clr := whitePieceFill, blackPieceFill, color.Color(whiteLabelColor)
	if p.Color == domain.Black {
		fill, stroke, clr = blackPieceFill, whitePieceFill, blackLabelColor
	}
	fmt.Fprintf(b, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s" stroke="%s" stroke-width="1"/>`, cx, cy, r, fill, stroke)
	return label{text: strings.ToUpper(p.Type.Letter()), at: image.Point{X: int(cx), Y: int(cy)}, clr: clr}
}

func drawLabels(dst imagedraw.Image, labels []label) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for _, l := range labels {
		if l.text == "" {
			continue
		}
		drawer.Src = image.NewUniform(l.clr)
		width := drawer.MeasureString(l.text).Ceil()
		drawer.Dot = fixed.P(l.at.X-width/2, l.at.Y+ascent/2)
		drawer.DrawString(l.text)
	}
}
