// Package render draws game snapshots to images with gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"

	"github.com/fogleman/gg"
)

// Board palette
var (
	colorLightGrass = color.RGBA{50, 205, 50, 255} // lime green
	colorDarkGrass  = color.RGBA{34, 139, 34, 255} // forest green
	colorBorder     = color.RGBA{0, 100, 0, 255}   // dark green
	colorBody       = color.RGBA{255, 0, 0, 255}
	colorBodyStroke = color.RGBA{139, 0, 0, 255}
	colorHead       = color.RGBA{200, 20, 20, 255}
	colorEye        = color.White
	colorApple      = color.RGBA{36, 150, 237, 255} // docker blue
	colorBackdrop   = color.RGBA{12, 28, 12, 255}
	colorHUD        = color.White
	colorOverlay    = color.RGBA{0, 0, 0, 160}
)

const borderWidth = 4

// FrameRenderer draws snapshots at a fixed cell size. The canvas is the
// board plus a margin on every side; the top margin holds the HUD line.
type FrameRenderer struct {
	cellPx   int
	marginPx int
	fontPath string
}

// NewFrameRenderer creates a renderer. Non-positive sizes fall back to defaults.
func NewFrameRenderer(cfg config.RenderConfig) *FrameRenderer {
	def := config.DefaultRender()
	if cfg.CellPx <= 0 {
		cfg.CellPx = def.CellPx
	}
	if cfg.MarginPx < 0 {
		cfg.MarginPx = def.MarginPx
	}
	return &FrameRenderer{
		cellPx:   cfg.CellPx,
		marginPx: cfg.MarginPx,
		fontPath: getFontPath(),
	}
}

// Size returns the canvas dimensions for a grid
func (r *FrameRenderer) Size(g game.Grid) (width, height int) {
	return g.Width*r.cellPx + 2*r.marginPx, g.Height*r.cellPx + 2*r.marginPx
}

// Render draws the snapshot
func (r *FrameRenderer) Render(snap game.Snapshot) image.Image {
	w, h := r.Size(snap.Grid)
	dc := gg.NewContext(w, h)

	r.drawBackground(dc, w, h)
	r.drawBoard(dc, snap.Grid)
	if snap.Apple != nil {
		r.drawApple(dc, *snap.Apple)
	}
	r.drawSnake(dc, snap.Segments)
	r.drawHUD(dc, snap, w)
	if banner := phaseBanner(snap); banner != "" {
		r.drawBanner(dc, banner, w, h)
	}

	return dc.Image()
}

// EncodePNG renders the snapshot and writes it as PNG
func (r *FrameRenderer) EncodePNG(w io.Writer, snap game.Snapshot) error {
	if err := png.Encode(w, r.Render(snap)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func (r *FrameRenderer) drawBackground(dc *gg.Context, w, h int) {
	dc.SetColor(colorBackdrop)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()
}

// drawBoard paints the checkerboard and the outer border
func (r *FrameRenderer) drawBoard(dc *gg.Context, g game.Grid) {
	cell := float64(r.cellPx)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if (row+col)%2 == 0 {
				dc.SetColor(colorLightGrass)
			} else {
				dc.SetColor(colorDarkGrass)
			}
			x, y := r.cellOrigin(game.Cell{Col: col, Row: row})
			dc.DrawRectangle(x, y, cell, cell)
			dc.Fill()
		}
	}

	m := float64(r.marginPx)
	dc.SetColor(colorBorder)
	dc.SetLineWidth(borderWidth)
	dc.DrawRectangle(m, m, float64(g.Width)*cell, float64(g.Height)*cell)
	dc.Stroke()
}

func (r *FrameRenderer) drawApple(dc *gg.Context, c game.Cell) {
	cx, cy := r.cellCenter(c)
	dc.SetColor(colorApple)
	dc.DrawCircle(cx, cy, float64(r.cellPx)*0.4)
	dc.Fill()
}

func (r *FrameRenderer) drawSnake(dc *gg.Context, segments []game.Segment) {
	cell := float64(r.cellPx)
	inset := cell * 0.1

	// Tail first so the head is drawn on top
	for i := len(segments) - 1; i >= 1; i-- {
		x, y := r.cellOrigin(segments[i].Cell)
		dc.SetColor(colorBody)
		dc.DrawRectangle(x+inset, y+inset, cell-2*inset, cell-2*inset)
		dc.FillPreserve()
		dc.SetColor(colorBodyStroke)
		dc.SetLineWidth(2)
		dc.Stroke()
	}

	if len(segments) == 0 {
		return
	}
	head := segments[0]
	cx, cy := r.cellCenter(head.Cell)
	dc.SetColor(colorHead)
	dc.DrawRoundedRectangle(cx-cell/2+inset, cy-cell/2+inset, cell-2*inset, cell-2*inset, cell*0.25)
	dc.Fill()

	// Eyes sit toward the heading
	dx, dy := head.Dir.Vector()
	fx, fy := float64(dx)*cell*0.2, float64(dy)*cell*0.2
	px, py := float64(-dy)*cell*0.18, float64(dx)*cell*0.18
	dc.SetColor(colorEye)
	dc.DrawCircle(cx+fx+px, cy+fy+py, cell*0.1)
	dc.DrawCircle(cx+fx-px, cy+fy-py, cell*0.1)
	dc.Fill()
}

func (r *FrameRenderer) drawHUD(dc *gg.Context, snap game.Snapshot, w int) {
	if r.marginPx == 0 {
		return
	}
	r.loadFont(dc, float64(r.marginPx)*0.7)
	dc.SetColor(colorHUD)
	dc.DrawStringAnchored(fmt.Sprintf("%d/%d apples", snap.ApplesEaten, snap.WinTarget),
		float64(w)/2, float64(r.marginPx)/2, 0.5, 0.5)
}

func (r *FrameRenderer) drawBanner(dc *gg.Context, text string, w, h int) {
	bannerH := float64(r.cellPx) * 3
	top := float64(h)/2 - bannerH/2

	dc.SetColor(colorOverlay)
	dc.DrawRectangle(0, top, float64(w), bannerH)
	dc.Fill()

	r.loadFont(dc, float64(r.cellPx))
	dc.SetColor(colorHUD)
	dc.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.5)
}

func (r *FrameRenderer) loadFont(dc *gg.Context, points float64) {
	if r.fontPath == "" || points <= 0 {
		return // gg keeps its built-in bitmap face
	}
	_ = dc.LoadFontFace(r.fontPath, points)
}

func (r *FrameRenderer) cellOrigin(c game.Cell) (x, y float64) {
	return float64(r.marginPx + c.Col*r.cellPx), float64(r.marginPx + c.Row*r.cellPx)
}

func (r *FrameRenderer) cellCenter(c game.Cell) (x, y float64) {
	x, y = r.cellOrigin(c)
	half := float64(r.cellPx) / 2
	return x + half, y + half
}

// phaseBanner returns the overlay text, empty while playing
func phaseBanner(snap game.Snapshot) string {
	switch snap.Phase {
	case game.PhaseIntro:
		return "Press start"
	case game.PhaseMilestonePause:
		return fmt.Sprintf("%d apples! Keep going", snap.ApplesEaten)
	case game.PhaseWon:
		return "You collected every apple!"
	case game.PhaseGameOver:
		return strings.ToUpper(snap.Collision.String()) + " - game over"
	default:
		return ""
	}
}

func getFontPath() string {
	// Try common font locations
	paths := []string{
		"C:\\Windows\\Fonts\\arial.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}

	return ""
}
