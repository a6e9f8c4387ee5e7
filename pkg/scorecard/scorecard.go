// Package scorecard renders a night's final scores as a PNG header image.
package scorecard

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
)

// Row is one final score.
type Row struct {
	Home      string
	Away      string
	HomeScore int
	AwayScore int
}

// HomeWon reports whether the home side won; ties count as away wins.
func (r Row) HomeWon() bool { return r.HomeScore > r.AwayScore }

// Card is everything drawn on one image.
type Card struct {
	Title  string
	Date   string
	Footer string
	Rows   []Row
}

// Renderer draws cards. The zero value is not usable; call NewRenderer.
type Renderer struct {
	Width     float64
	RowHeight float64
	HeaderH   float64
	FooterH   float64
	PadX      float64
	FontSize  float64
	TitleSize float64
	SmallSize float64
	FontPaths []string
}

// NewRenderer creates a 1200px wide renderer, a common blog header width.
func NewRenderer() *Renderer {
	return &Renderer{
		Width:     1200,
		RowHeight: 64,
		HeaderH:   120,
		FooterH:   56,
		PadX:      40,
		FontSize:  26,
		TitleSize: 34,
		SmallSize: 18,
		FontPaths: []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
			"/System/Library/Fonts/Helvetica.ttc",
		},
	}
}

// Height returns the image height for a card with n rows.
func (r *Renderer) Height(n int) int {
	if n == 0 {
		n = 1 // room for the "no games" line
	}
	return int(20 + r.HeaderH + 16 + float64(n)*r.RowHeight + 16 + r.FooterH + 20)
}

// RenderPNG draws the card and returns PNG bytes.
func (r *Renderer) RenderPNG(card Card) ([]byte, error) {
	height := r.Height(len(card.Rows))
	dc := gg.NewContext(int(r.Width), height)

	r.drawBackground(dc, float64(height))
	y := r.drawTitle(dc, card)
	if len(card.Rows) == 0 {
		r.loadFont(dc, r.FontSize)
		dc.SetColor(hexColor("#8888aa"))
		dc.DrawStringAnchored("No games on the schedule", r.Width/2, y+r.RowHeight/2, 0.5, 0.5)
		y += r.RowHeight
	}
	for i, row := range card.Rows {
		y = r.drawRow(dc, row, i, y)
	}
	r.drawFooter(dc, card, y)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode scorecard: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawBackground(dc *gg.Context, height float64) {
	for y := 0; y < int(height); y++ {
		t := float64(y) / height
		dc.SetColor(color.RGBA{uint8(14 + t*6), uint8(17 + t*6), uint8(34 + t*12), 255})
		dc.DrawRectangle(0, float64(y), r.Width, 1)
		dc.Fill()
	}
}

func (r *Renderer) drawTitle(dc *gg.Context, card Card) float64 {
	dc.SetColor(hexColor("#1d2147"))
	dc.DrawRoundedRectangle(r.PadX, 20, r.Width-2*r.PadX, r.HeaderH, 12)
	dc.Fill()

	// Accent line in basketball orange
	dc.SetColor(hexColor("#f58426"))
	dc.DrawRectangle(r.PadX, 20, 4, r.HeaderH)
	dc.Fill()

	title := card.Title
	if title == "" {
		title = "NBA Final Scores"
	}
	r.loadFont(dc, r.TitleSize)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(truncate(dc, title, r.Width-2*r.PadX-40), r.Width/2, 20+r.HeaderH/2-12, 0.5, 0.5)

	r.loadFont(dc, r.SmallSize)
	dc.SetColor(hexColor("#9a9ac0"))
	subtitle := card.Date
	if n := len(card.Rows); n > 0 {
		subtitle = fmt.Sprintf("%s · %d %s", card.Date, n, plural(n, "game", "games"))
	}
	dc.DrawStringAnchored(subtitle, r.Width/2, 20+r.HeaderH/2+24, 0.5, 0.5)

	return 20 + r.HeaderH + 16
}

func (r *Renderer) drawRow(dc *gg.Context, row Row, i int, y float64) float64 {
	if i%2 == 1 {
		dc.SetColor(hexColor("#15183a"))
	} else {
		dc.SetColor(hexColor("#11132e"))
	}
	dc.DrawRectangle(r.PadX, y, r.Width-2*r.PadX, r.RowHeight)
	dc.Fill()

	mid := r.Width / 2
	base := y + r.RowHeight/2
	r.loadFont(dc, r.FontSize)

	// Away team on the left, home team on the right, the usual "away @ home" order.
	r.setTeamColor(dc, !row.HomeWon())
	dc.DrawStringAnchored(row.Away, mid-150, base, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%d", row.AwayScore), mid-40, base, 1, 0.5)

	dc.SetColor(hexColor("#55577a"))
	dc.DrawStringAnchored("@", mid, base, 0.5, 0.5)

	r.setTeamColor(dc, row.HomeWon())
	dc.DrawStringAnchored(fmt.Sprintf("%d", row.HomeScore), mid+40, base, 0, 0.5)
	dc.DrawStringAnchored(row.Home, mid+150, base, 0, 0.5)

	return y + r.RowHeight
}

func (r *Renderer) setTeamColor(dc *gg.Context, winner bool) {
	if winner {
		dc.SetColor(hexColor("#ffb15c"))
		return
	}
	dc.SetColor(hexColor("#c0c0d0"))
}

func (r *Renderer) drawFooter(dc *gg.Context, card Card, y float64) {
	y += 16
	dc.SetColor(hexColor("#0b0c1c"))
	dc.DrawRoundedRectangle(r.PadX, y, r.Width-2*r.PadX, r.FooterH, 8)
	dc.Fill()

	footer := card.Footer
	if footer == "" {
		footer = "Winners highlighted"
	}
	r.loadFont(dc, 16)
	dc.SetColor(hexColor("#56567a"))
	dc.DrawStringAnchored(footer, r.Width/2, y+r.FooterH/2, 0.5, 0.5)
}

// loadFont tries each configured font and keeps gg's built-in face when none load.
func (r *Renderer) loadFont(dc *gg.Context, size float64) {
	for _, p := range r.FontPaths {
		if err := dc.LoadFontFace(p, size); err == nil {
			return
		}
	}
}

func truncate(dc *gg.Context, s string, max float64) string {
	if w, _ := dc.MeasureString(s); w <= max {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if w, _ := dc.MeasureString(candidate); w <= max {
			return candidate
		}
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func hexColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	var cr, cg, cb uint8
	fmt.Sscanf(hex, "%02x%02x%02x", &cr, &cg, &cb)
	return color.RGBA{cr, cg, cb, 255}
}
