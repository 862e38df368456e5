package render

import (
	"bytes"
	"image/png"
	"testing"

	"bernar-snake/internal/config"
	"bernar-snake/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T, phase game.Phase) game.Snapshot {
	t.Helper()
	rules := game.DefaultRules()
	rules.Grid = game.Grid{Width: 10, Height: 8}
	sim, err := game.NewSimulationWithLayout(rules, 1, game.Layout{
		Snake:   []game.Cell{{Col: 5, Row: 4}, {Col: 4, Row: 4}, {Col: 4, Row: 5}},
		Heading: game.DirRight,
		Apple:   game.Cell{Col: 1, Row: 1},
		Phase:   phase,
	})
	require.NoError(t, err)
	return sim.Snapshot()
}

func TestFrameSize(t *testing.T) {
	r := NewFrameRenderer(config.RenderConfig{CellPx: 10, MarginPx: 5})
	w, h := r.Size(game.Grid{Width: 10, Height: 8})
	assert.Equal(t, 110, w)
	assert.Equal(t, 90, h)

	def := NewFrameRenderer(config.RenderConfig{CellPx: 0, MarginPx: -1})
	w, _ = def.Size(game.Grid{Width: 30, Height: 30})
	assert.Equal(t, 640, w)
}

func TestEncodePNG(t *testing.T) {
	r := NewFrameRenderer(config.DefaultRender())

	for _, phase := range []game.Phase{game.PhaseIntro, game.PhasePlaying, game.PhaseGameOver} {
		t.Run(phase.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.EncodePNG(&buf, testSnapshot(t, phase)))

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			w, h := r.Size(game.Grid{Width: 10, Height: 8})
			assert.Equal(t, w, img.Bounds().Dx())
			assert.Equal(t, h, img.Bounds().Dy())
		})
	}
}

func TestRenderDrawsApple(t *testing.T) {
	r := NewFrameRenderer(config.RenderConfig{CellPx: 20, MarginPx: 20})
	img := r.Render(testSnapshot(t, game.PhasePlaying))

	// Centre of the apple cell is blue, not grass
	x, y := r.cellCenter(game.Cell{Col: 1, Row: 1})
	cr, cg, cb, _ := img.At(int(x), int(y)).RGBA()
	assert.Greater(t, cb, cg)
	assert.Greater(t, cb, cr)
}

func TestPhaseBanner(t *testing.T) {
	assert.Empty(t, phaseBanner(game.Snapshot{Phase: game.PhasePlaying}))
	assert.Equal(t, "WALL - game over", phaseBanner(game.Snapshot{Phase: game.PhaseGameOver, Collision: game.CollisionWall}))
}
