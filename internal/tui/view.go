package tui

import (
	"fmt"

	"bernar-snake/internal/game"

	"github.com/gdamore/tcell/v2"
)

// Every grid cell is two terminal columns wide so the board looks square.
const cellCols = 2

var (
	styleDefault = tcell.StyleDefault
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	styleGrassA  = tcell.StyleDefault.Background(tcell.ColorLimeGreen)
	styleGrassB  = tcell.StyleDefault.Background(tcell.ColorForestGreen)
	styleBody    = tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorDarkRed)
	styleHead    = tcell.StyleDefault.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
	styleApple   = tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue)
	styleHUD     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

// headGlyphs points the head along its heading
var headGlyphs = [4]rune{
	game.DirRight: '▶',
	game.DirDown:  '▼',
	game.DirLeft:  '◀',
	game.DirUp:    '▲',
}

// BoardSize returns the terminal area the board needs, border and HUD included
func BoardSize(g game.Grid) (cols, rows int) {
	return g.Width*cellCols + 2, g.Height + 4
}

// Draw renders a snapshot at the top-left of the screen
func Draw(screen tcell.Screen, snap game.Snapshot) {
	screen.Clear()

	g := snap.Grid
	left, top := 0, 1

	drawText(screen, left, 0, styleHUD, fmt.Sprintf("%d/%d apples", snap.ApplesEaten, snap.WinTarget))

	// Border
	width := g.Width*cellCols + 2
	for x := 0; x < width; x++ {
		screen.SetContent(left+x, top, '─', nil, styleBorder)
		screen.SetContent(left+x, top+g.Height+1, '─', nil, styleBorder)
	}
	for y := 0; y <= g.Height+1; y++ {
		screen.SetContent(left, top+y, '│', nil, styleBorder)
		screen.SetContent(left+width-1, top+y, '│', nil, styleBorder)
	}
	screen.SetContent(left, top, '┌', nil, styleBorder)
	screen.SetContent(left+width-1, top, '┐', nil, styleBorder)
	screen.SetContent(left, top+g.Height+1, '└', nil, styleBorder)
	screen.SetContent(left+width-1, top+g.Height+1, '┘', nil, styleBorder)

	// Checkerboard
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			style := styleGrassA
			if (row+col)%2 == 1 {
				style = styleGrassB
			}
			setCell(screen, left, top, game.Cell{Col: col, Row: row}, ' ', ' ', style)
		}
	}

	if snap.Apple != nil {
		setCell(screen, left, top, *snap.Apple, '◆', ' ', styleApple.Background(grassAt(*snap.Apple)))
	}

	for i := len(snap.Segments) - 1; i >= 1; i-- {
		setCell(screen, left, top, snap.Segments[i].Cell, '█', '█', styleBody)
	}
	if len(snap.Segments) > 0 {
		head := snap.Segments[0]
		glyph := '●'
		if head.Dir.Valid() {
			glyph = headGlyphs[head.Dir]
		}
		setCell(screen, left, top, head.Cell, glyph, ' ', styleHead)
	}

	status := top + g.Height + 2
	if text := bannerText(snap); text != "" {
		drawText(screen, left, status, styleBanner, text)
	}
	drawText(screen, left, status+1, styleDefault, "arrows/WASD move  enter start  r restart  esc quit")

	screen.Show()
}

func setCell(screen tcell.Screen, left, top int, c game.Cell, a, b rune, style tcell.Style) {
	x := left + 1 + c.Col*cellCols
	y := top + 1 + c.Row
	screen.SetContent(x, y, a, nil, style)
	screen.SetContent(x+1, y, b, nil, style)
}

func grassAt(c game.Cell) tcell.Color {
	if (c.Col+c.Row)%2 == 0 {
		return tcell.ColorLimeGreen
	}
	return tcell.ColorForestGreen
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

func bannerText(snap game.Snapshot) string {
	switch snap.Phase {
	case game.PhaseIntro:
		return "Collect the apples. Press enter to start."
	case game.PhaseMilestonePause:
		return fmt.Sprintf("%d apples! Press enter to keep going.", snap.ApplesEaten)
	case game.PhaseWon:
		return "You collected every apple! Enter to play again."
	case game.PhaseGameOver:
		return fmt.Sprintf("Game over (%s). Enter to try again.", snap.Collision)
	default:
		return ""
	}
}
