package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/paga2004/robochess/internal/config"
	"github.com/paga2004/robochess/internal/domain"
	"github.com/paga2004/robochess/internal/planner"
)

func testScene() Scene {
	return Scene{
		Geometry: planner.GeometryFromConfig(config.Default().Geometry),
		Pieces:   map[domain.Square]domain.Piece{},
		Pose:     domain.Point{X: 1200, Y: 1100},
		Homed:    true,
		Magnet:   domain.MagnetEngaged,
	}
}

func decode(t *testing.T, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()
	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -3 && d <= 3
	}
	if !near(got.R, want.R) || !near(got.G, want.G) || !near(got.B, want.B) {
		t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func TestPNGSizeFollowsEnvelope(t *testing.T) {
	raw, err := PNG(context.Background(), testScene())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b := decode(t, raw).Bounds()
	if b.Dx() != 601 || b.Dy() != 551 {
		t.Fatalf("size = %dx%d, want 601x551", b.Dx(), b.Dy())
	}
}

func TestPNGSquaresAreMirrored(t *testing.T) {
	img := decode(t, mustRender(t, testScene()))
	// a1 sits at high x, h1 at low x.
	assertColor(t, img, 520, 517, color.NRGBA{R: 0xbb, G: 0x88, B: 0x60, A: 255})
	assertColor(t, img, 58, 517, color.NRGBA{R: 0xe9, G: 0xcf, B: 0xa3, A: 255})
}

func TestPNGCarriageColorFollowsMagnet(t *testing.T) {
	s := testScene()
	assertColor(t, decode(t, mustRender(t, s)), 300, 275, color.NRGBA{R: 0xe0, G: 0x48, B: 0x3e, A: 255})

	s.Magnet = domain.MagnetDisengaged
	assertColor(t, decode(t, mustRender(t, s)), 300, 275, color.NRGBA{R: 0x9a, G: 0xa0, B: 0xad, A: 255})

	s.Homed = false
	assertColor(t, decode(t, mustRender(t, s)), 300, 275, color.NRGBA{R: 0xf0, G: 0xb4, B: 0x29, A: 255})
}

func TestPNGDrawsBinPieces(t *testing.T) {
	s := testScene()
	s.WhiteBin = []domain.Piece{{Color: domain.White, Type: domain.Knight}, domain.NoPiece}
	img := decode(t, mustRender(t, s))
	// slot 0 of the white bin is centered at (34, 66) steps.
	assertColor(t, img, 16, 533, color.NRGBA{R: 0xf5, G: 0xf5, B: 0xf0, A: 255})
	// an emptied slot keeps its placeholder.
	assertColor(t, img, 8, 500, color.NRGBA{R: 0x44, G: 0x4a, B: 0x5a, A: 255})
}

func TestPNGDrawsBoardPieces(t *testing.T) {
	s := testScene()
	s.Pieces[domain.Square{File: 0, Rank: 0}] = domain.Piece{Color: domain.Black, Type: domain.Rook}
	img := decode(t, mustRender(t, s))
	assertColor(t, img, 520+15, 517, color.NRGBA{R: 0x1d, G: 0x1d, B: 0x1d, A: 255})
}

func TestPNGRejectsEmptyGeometry(t *testing.T) {
	if _, err := PNG(context.Background(), Scene{}); err == nil {
		t.Fatal("expected error for zero geometry")
	}
}

func TestPNGHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := PNG(ctx, testScene()); err == nil {
		t.Fatal("expected context error")
	}
}

func mustRender(t *testing.T, s Scene) []byte {
	t.Helper()
	raw, err := PNG(context.Background(), s)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return raw
}
