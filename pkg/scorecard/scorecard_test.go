package scorecard

import (
	"bytes"
	"image/png"
	"testing"
)

func TestRenderPNG(t *testing.T) {
	r := NewRenderer()
	card := Card{
		Title: "NBA Recap 2024-01-15: Tatum Takes Over",
		Date:  "2024-01-15",
		Rows: []Row{
			{Home: "Boston Celtics", Away: "Miami Heat", HomeScore: 112, AwayScore: 104},
			{Home: "Denver Nuggets", Away: "Phoenix Suns", HomeScore: 99, AwayScore: 101},
		},
	}

	data, err := r.RenderPNG(card)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1200 {
		t.Errorf("expected width 1200, got %d", b.Dx())
	}
	if b.Dy() != r.Height(2) {
		t.Errorf("expected height %d, got %d", r.Height(2), b.Dy())
	}
}

func TestRenderPNG_NoGames(t *testing.T) {
	r := NewRenderer()
	data, err := r.RenderPNG(Card{Date: "2024-07-04"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if r.Height(0) != r.Height(1) {
		t.Error("expected an empty card to reserve one row")
	}
}

func TestRow_HomeWon(t *testing.T) {
	if !(Row{HomeScore: 100, AwayScore: 90}).HomeWon() {
		t.Error("expected home win")
	}
	if (Row{HomeScore: 90, AwayScore: 90}).HomeWon() {
		t.Error("expected a tie to count as away")
	}
}
