package encoding

import (
	"errors"
	"testing"

	"mazefire.ai/internal/sim/grid"
)

func TestTiles_GridRoundTrip(t *testing.T) {
	g, _ := grid.New(7, 5)
	g.MarkTarget(grid.Cell{X: 2, Y: 2})
	for x := 0; x < 7; x++ {
		g.SetFloor(grid.Cell{X: x, Y: 0})
	}
	g.Lock(grid.Cell{X: 4, Y: 4}, 6)
	g.PlaceFire(grid.Cell{X: 0, Y: 0})

	in := g.Codes()
	out, err := DecodeTiles(EncodeTiles(in), g.Len())
	if err != nil {
		t.Fatalf("DecodeTiles: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestTiles_LengthMismatch(t *testing.T) {
	enc := EncodeTiles([]uint16{1, 1, 1, 0})
	if _, err := DecodeTiles(enc, 3); !errors.Is(err, ErrLength) {
		t.Fatalf("expected ErrLength for overflow, got %v", err)
	}
	if _, err := DecodeTiles(enc, 5); !errors.Is(err, ErrLength) {
		t.Fatalf("expected ErrLength for short stream, got %v", err)
	}
	if _, err := DecodeTiles("!!", 1); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestTiles_Empty(t *testing.T) {
	out, err := DecodeTiles(EncodeTiles(nil), 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}
