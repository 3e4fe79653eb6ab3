package planner

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/paga2004/robochess/internal/domain"
)

var testGeometry = Geometry{
	SquareSize:      264,
	XOffset:         100,
	YOffset:         0,
	PlacementOffset: 50,
	XMax:            2400,
	YMax:            2200,
}

func sq(t *testing.T, s string) domain.Square {
	t.Helper()
	v, err := domain.ParseSquare(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func pc(c domain.Color, ty domain.PieceType) domain.Piece { return domain.Piece{Color: c, Type: ty} }

func pt(x, y int) domain.Point { return domain.Point{X: x, Y: y} }

func travel(x, y int) Step { return Step{Kind: Travel, To: pt(x, y)} }
func carry(x, y int) Step  { return Step{Kind: Carry, To: pt(x, y)} }

var (
	engage  = Step{Kind: Engage}
	release = Step{Kind: Release}
	settle  = Step{Kind: Settle}
)

func compile(t *testing.T, mv domain.MoveSpec, bins Bins) (Plan, Bins) {
	t.Helper()
	c := NewCompiler(testGeometry, zap.NewNop())
	plan, next, err := c.Compile(mv, bins)
	if err != nil {
		t.Fatalf("Compile(%s): %v", mv.UCI, err)
	}
	if err := plan.Validate(testGeometry); err != nil {
		t.Fatalf("Validate(%s): %v", mv.UCI, err)
	}
	return plan, next
}

func assertSteps(t *testing.T, got []Step, want ...Step) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("steps:\n got  %v\n want %v", got, want)
	}
}

func TestSquareCenters(t *testing.T) {
	cases := map[string]domain.Point{
		"a1": pt(2080, 132),
		"h1": pt(232, 132),
		"e2": pt(1024, 396),
		"g1": pt(496, 132),
		"d5": pt(1288, 1188),
		"h8": pt(232, 1980),
	}
	for name, want := range cases {
		if got := testGeometry.Center(sq(t, name)); got != want {
			t.Errorf("Center(%s) = %v, want %v", name, got, want)
		}
	}
	if got := testGeometry.Slot(domain.White, 0); got != pt(34, 66) {
		t.Errorf("white slot 0 = %v", got)
	}
	if got := testGeometry.Slot(domain.Black, 0); got != pt(2278, 2178) {
		t.Errorf("black slot 0 = %v", got)
	}
	if got := testGeometry.Slot(domain.Black, 3); got != pt(2278, 1782) {
		t.Errorf("black slot 3 = %v", got)
	}
}

func TestPawnPush(t *testing.T) {
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e2e4", From: sq(t, "e2"), To: sq(t, "e4"), Piece: pc(domain.White, domain.Pawn),
	}, Bins{})

	assertSteps(t, plan.Steps, travel(1024, 396), engage, carry(1024, 974), release)
	if len(next.White) != 0 || len(next.Black) != 0 {
		t.Fatalf("bins changed on a quiet move: %+v", next)
	}
}

func TestKnightG1F3(t *testing.T) {
	plan, _ := compile(t, domain.MoveSpec{
		UCI: "g1f3", From: sq(t, "g1"), To: sq(t, "f3"), Piece: pc(domain.White, domain.Knight),
	}, Bins{})

	assertSteps(t, plan.Steps,
		travel(496, 132), engage,
		carry(628, 132), settle,
		carry(628, 660), settle,
		carry(760, 710), release)
}

func TestKnightWideLUsesRankGap(t *testing.T) {
	plan, _ := compile(t, domain.MoveSpec{
		UCI: "b1d2", From: sq(t, "b1"), To: sq(t, "d2"), Piece: pc(domain.White, domain.Knight),
	}, Bins{})

	// b1 (1816, 132) -> d2 (1288, 396): |dx| = 528 > |dy| = 264
	assertSteps(t, plan.Steps,
		travel(1816, 132), engage,
		carry(1816, 264), settle,
		carry(1288, 264), settle,
		carry(1288, 446), release)
}

func TestKnightPathsStayInGaps(t *testing.T) {
	c := NewCompiler(testGeometry, zap.NewNop())
	half := testGeometry.SquareSize / 2
	jumps := [][2]int{{1, 2}, {2, 1}, {-1, 2}, {-2, 1}, {1, -2}, {2, -1}, {-1, -2}, {-2, -1}}

	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			from := domain.Square{File: f, Rank: r}
			for _, j := range jumps {
				to := domain.Square{File: f + j[0], Rank: r + j[1]}
				if !to.Valid() {
					continue
				}
				plan, _, err := c.Compile(domain.MoveSpec{
					UCI: from.String() + to.String(), From: from, To: to, Piece: pc(domain.Black, domain.Knight),
				}, Bins{})
				if err != nil {
					t.Fatal(err)
				}
				o := testGeometry.Center(from)
				pts := plan.Targets()
				// pts[0] is the origin, pts[1..2] the corners of the L, pts[3] the placement
				if len(pts) != 4 {
					t.Fatalf("%s: %d targets", plan.Move, len(pts))
				}
				for _, p := range pts[1:3] {
					onFileGap := (p.X-o.X)%half == 0 && ((p.X-o.X)/half)%2 != 0
					onRankGap := (p.Y-o.Y)%half == 0 && ((p.Y-o.Y)/half)%2 != 0
					if !onFileGap && !onRankGap {
						t.Errorf("%s: corner %v is not on a gap line", plan.Move, p)
					}
				}
				// the long leg runs along a single gap line
				a, b := pts[1], pts[2]
				if a.X != b.X && a.Y != b.Y {
					t.Errorf("%s: long leg %v -> %v is diagonal", plan.Move, a, b)
				}
				if err := plan.Validate(testGeometry); err != nil {
					t.Errorf("%s: %v", plan.Move, err)
				}
			}
		}
	}
}

func TestCaptureIntoBlackBin(t *testing.T) {
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e4d5", From: sq(t, "e4"), To: sq(t, "d5"), Piece: pc(domain.White, domain.Pawn),
		Capture: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.Black, domain.Pawn),
	}, Bins{})

	assertSteps(t, plan.Steps,
		travel(1288, 1188), engage,
		carry(1288, 1056), carry(2278, 1056), carry(2278, 2178), release,
		travel(1024, 924), engage, carry(1288, 1238), release)
	if len(next.Black) != 1 || next.Black[0] != pc(domain.Black, domain.Pawn) || len(next.White) != 0 {
		t.Fatalf("bins = %+v", next)
	}
}

func TestCaptureIntoWhiteBin(t *testing.T) {
	bins := Bins{White: []domain.Piece{pc(domain.White, domain.Knight)}}
	plan, next := compile(t, domain.MoveSpec{
		UCI: "d5e4", From: sq(t, "d5"), To: sq(t, "e4"), Piece: pc(domain.Black, domain.Pawn),
		Capture: true, CaptureSquare: sq(t, "e4"), Captured: pc(domain.White, domain.Pawn),
	}, bins)

	assertSteps(t, plan.Steps,
		travel(1024, 924), engage,
		carry(1024, 1056), carry(34, 1056), carry(34, 198), release,
		travel(1288, 1188), engage, carry(1024, 974), release)
	if len(next.White) != 2 || next.White[1] != pc(domain.White, domain.Pawn) {
		t.Fatalf("white bin = %+v", next.White)
	}
	if len(bins.White) != 1 {
		t.Fatalf("input bins mutated: %+v", bins)
	}
}

func TestEnPassantRemovesPawnBehind(t *testing.T) {
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e5d6", From: sq(t, "e5"), To: sq(t, "d6"), Piece: pc(domain.White, domain.Pawn),
		Capture: true, EnPassant: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.Black, domain.Pawn),
	}, Bins{})

	if plan.Steps[0] != travel(1288, 1188) {
		t.Fatalf("en passant should start at d5, got %v", plan.Steps[0])
	}
	last := plan.Steps[len(plan.Steps)-2]
	if last != carry(1288, 1502) {
		t.Fatalf("pawn should land on d6, got %v", last)
	}
	if len(next.Black) != 1 {
		t.Fatalf("black bin = %+v", next.Black)
	}
}

func TestBinGrowth(t *testing.T) {
	c := NewCompiler(testGeometry, zap.NewNop())
	bins := Bins{}
	moves := []domain.MoveSpec{
		{UCI: "e4d5", From: sq(t, "e4"), To: sq(t, "d5"), Piece: pc(domain.White, domain.Pawn),
			Capture: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.Black, domain.Pawn)},
		{UCI: "d8d5", From: sq(t, "d8"), To: sq(t, "d5"), Piece: pc(domain.Black, domain.Queen),
			Capture: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.White, domain.Pawn)},
		{UCI: "c3d5", From: sq(t, "c3"), To: sq(t, "d5"), Piece: pc(domain.White, domain.Knight),
			Capture: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.Black, domain.Queen)},
	}
	for _, mv := range moves {
		_, next, err := c.Compile(mv, bins)
		if err != nil {
			t.Fatal(err)
		}
		captured := mv.Captured.Color
		if got, want := len(next.Of(captured)), len(bins.Of(captured))+1; got != want {
			t.Fatalf("%s: %s bin has %d, want %d", mv.UCI, captured, got, want)
		}
		if got, want := len(next.Of(captured.Other())), len(bins.Of(captured.Other())); got != want {
			t.Fatalf("%s: other bin changed", mv.UCI)
		}
		bins = next
	}
	if bins.Black[1] != pc(domain.Black, domain.Queen) {
		t.Fatalf("black bin = %+v", bins.Black)
	}
}

func TestCastling(t *testing.T) {
	cases := []struct {
		name string
		mv   domain.MoveSpec
		want []Step
	}{
		{
			name: "white king side",
			mv:   domain.MoveSpec{UCI: "e1g1", From: sq(t, "e1"), To: sq(t, "g1"), Piece: pc(domain.White, domain.King), Castle: domain.CastleKing},
			want: []Step{
				travel(1024, 132), engage, carry(1024, 0), carry(496, 0), carry(496, 132), release,
				travel(232, 132), engage, carry(232, 0), carry(760, 0), carry(760, 182), release,
				travel(496, 132), engage, carry(496, 182), release,
			},
		},
		{
			name: "white queen side",
			mv:   domain.MoveSpec{UCI: "e1c1", From: sq(t, "e1"), To: sq(t, "c1"), Piece: pc(domain.White, domain.King), Castle: domain.CastleQueen},
			want: []Step{
				travel(1024, 132), engage, carry(1024, 0), carry(1552, 0), carry(1552, 132), release,
				travel(2080, 132), engage, carry(2080, 0), carry(1288, 0), carry(1288, 182), release,
				travel(1552, 132), engage, carry(1552, 182), release,
			},
		},
		{
			name: "black king side",
			mv:   domain.MoveSpec{UCI: "e8g8", From: sq(t, "e8"), To: sq(t, "g8"), Piece: pc(domain.Black, domain.King), Castle: domain.CastleKing},
			want: []Step{
				travel(1024, 1980), engage, carry(1024, 2112), carry(496, 2112), carry(496, 1980), release,
				travel(232, 1980), engage, carry(232, 2112), carry(760, 2112), carry(760, 2030), release,
				travel(496, 1980), engage, carry(496, 2030), release,
			},
		},
		{
			name: "black queen side",
			mv:   domain.MoveSpec{UCI: "e8c8", From: sq(t, "e8"), To: sq(t, "c8"), Piece: pc(domain.Black, domain.King), Castle: domain.CastleQueen},
			want: []Step{
				travel(1024, 1980), engage, carry(1024, 2112), carry(1552, 2112), carry(1552, 1980), release,
				travel(2080, 1980), engage, carry(2080, 2112), carry(1288, 2112), carry(1288, 2030), release,
				travel(1552, 1980), engage, carry(1552, 2030), release,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, next := compile(t, tc.mv, Bins{})
			assertSteps(t, plan.Steps, tc.want...)
			if len(next.White)+len(next.Black) != 0 {
				t.Fatalf("castling touched the bins")
			}
		})
	}
}

func TestCastlingRejectsWrongSquares(t *testing.T) {
	c := NewCompiler(testGeometry, zap.NewNop())
	_, _, err := c.Compile(domain.MoveSpec{
		UCI: "e1f1", From: sq(t, "e1"), To: sq(t, "f1"), Piece: pc(domain.White, domain.King), Castle: domain.CastleKing,
	}, Bins{})
	if !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("err = %v, want ErrInvalidMove", err)
	}
}

func TestPromotionFromBin(t *testing.T) {
	bins := Bins{White: []domain.Piece{pc(domain.White, domain.Queen), pc(domain.White, domain.Rook)}}
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e7e8q", From: sq(t, "e7"), To: sq(t, "e8"), Piece: pc(domain.White, domain.Pawn), Promotion: domain.Queen,
	}, bins)

	assertSteps(t, plan.Steps,
		travel(34, 66), engage,
		carry(0, 66), carry(0, 2200), carry(1024, 2200), carry(1024, 2030), release,
		travel(1024, 1716), engage,
		carry(1024, 1584), carry(2278, 1584), carry(2278, 2178), release)

	if next.White[0] != domain.NoPiece || next.White[1] != pc(domain.White, domain.Rook) {
		t.Fatalf("white bin = %+v", next.White)
	}
	if len(next.Black) != 1 || next.Black[0] != pc(domain.White, domain.Pawn) {
		t.Fatalf("pawn not parked in the black bin: %+v", next.Black)
	}
	if bins.White[0] != pc(domain.White, domain.Queen) {
		t.Fatalf("input bins mutated")
	}
}

func TestBlackPromotionUsesBlackBin(t *testing.T) {
	bins := Bins{
		White: []domain.Piece{pc(domain.White, domain.Bishop), pc(domain.White, domain.Bishop)},
		Black: []domain.Piece{pc(domain.Black, domain.Pawn), pc(domain.Black, domain.Knight)},
	}
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e2e1n", From: sq(t, "e2"), To: sq(t, "e1"), Piece: pc(domain.Black, domain.Pawn), Promotion: domain.Knight,
	}, bins)

	assertSteps(t, plan.Steps,
		travel(2278, 2046), engage,
		carry(2400, 2046), carry(2400, 0), carry(1024, 0), carry(1024, 182), release,
		travel(1024, 396), engage,
		carry(1024, 528), carry(34, 528), carry(34, 330), release)

	if next.Black[1] != domain.NoPiece || len(next.Black) != 2 {
		t.Fatalf("black bin = %+v", next.Black)
	}
	if len(next.White) != 3 {
		t.Fatalf("white bin = %+v", next.White)
	}
}

func TestCapturePromotionOrder(t *testing.T) {
	bins := Bins{White: []domain.Piece{pc(domain.White, domain.Queen)}}
	plan, next := compile(t, domain.MoveSpec{
		UCI: "d7e8q", From: sq(t, "d7"), To: sq(t, "e8"), Piece: pc(domain.White, domain.Pawn),
		Capture: true, CaptureSquare: sq(t, "e8"), Captured: pc(domain.Black, domain.Rook), Promotion: domain.Queen,
	}, bins)

	travels := []domain.Point{}
	for _, s := range plan.Steps {
		if s.Kind == Travel {
			travels = append(travels, s.To)
		}
	}
	// captured rook, spare queen, pawn
	want := []domain.Point{pt(1024, 1980), pt(34, 66), pt(1288, 1716)}
	if fmt.Sprint(travels) != fmt.Sprint(want) {
		t.Fatalf("pick-up order = %v, want %v", travels, want)
	}
	if len(next.Black) != 2 || next.Black[0] != pc(domain.Black, domain.Rook) || next.Black[1] != pc(domain.White, domain.Pawn) {
		t.Fatalf("black bin = %+v", next.Black)
	}
}

func TestPromotionWithoutSpareCarriesPawn(t *testing.T) {
	plan, next := compile(t, domain.MoveSpec{
		UCI: "e7e8q", From: sq(t, "e7"), To: sq(t, "e8"), Piece: pc(domain.White, domain.Pawn), Promotion: domain.Queen,
	}, Bins{White: []domain.Piece{pc(domain.White, domain.Rook)}})

	assertSteps(t, plan.Steps, travel(1024, 1716), engage, carry(1024, 2030), release)
	if len(next.White) != 1 || next.White[0] != pc(domain.White, domain.Rook) || len(next.Black) != 0 {
		t.Fatalf("bins = %+v", next)
	}
}

func TestValidateRejectsOverfullBin(t *testing.T) {
	c := NewCompiler(testGeometry, zap.NewNop())
	full := make([]domain.Piece, 17)
	for i := range full {
		full[i] = pc(domain.Black, domain.Pawn)
	}
	plan, _, err := c.Compile(domain.MoveSpec{
		UCI: "e4d5", From: sq(t, "e4"), To: sq(t, "d5"), Piece: pc(domain.White, domain.Pawn),
		Capture: true, CaptureSquare: sq(t, "d5"), Captured: pc(domain.Black, domain.Pawn),
	}, Bins{Black: full})
	if err != nil {
		t.Fatal(err)
	}
	if err := plan.Validate(testGeometry); !errors.Is(err, ErrPlanOutOfBounds) {
		t.Fatalf("err = %v, want ErrPlanOutOfBounds", err)
	}
}

func TestCompileRejectsEmptyMove(t *testing.T) {
	c := NewCompiler(testGeometry, zap.NewNop())
	if _, _, err := c.Compile(domain.MoveSpec{UCI: "e2e4"}, Bins{}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("err = %v", err)
	}
}
