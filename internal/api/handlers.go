package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"bernar-snake/internal/game"

	"github.com/rs/zerolog/log"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	stats := map[string]interface{}{
		"engine":   h.engine.Stats(),
		"eventLog": h.engine.EventLogStats(),
		"run": map[string]interface{}{
			"runId":       snap.RunID,
			"phase":       snap.Phase,
			"applesEaten": snap.ApplesEaten,
			"length":      snap.Length(),
			"tick":        snap.Tick,
		},
	}
	if h.commands != nil {
		stats["commands"] = h.commands.Stats()
	}
	if h.spectators != nil {
		stats["spectators"] = h.spectators.Stats()
	}
	if h.limiter != nil {
		stats["rateLimit"] = h.limiter.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, "Frame rendering disabled", http.StatusNotFound)
		return
	}

	// Encode into a buffer so a failed render can still return JSON
	var buf bytes.Buffer
	if err := h.frames.EncodePNG(&buf, *h.engine.GetSnapshot()); err != nil {
		log.Error().Err(err).Msg("❌ Frame render failed")
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleStart(w http.ResponseWriter, r *http.Request) {
	if !h.engine.StartRun() {
		writePhaseConflict(w, h.engine.GetSnapshot(), "Run can only start from intro")
		return
	}
	UpdatePhase(game.PhasePlaying)
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleAck(w http.ResponseWriter, r *http.Request) {
	if !h.engine.AcknowledgeMilestone() {
		writePhaseConflict(w, h.engine.GetSnapshot(), "No milestone to acknowledge")
		return
	}
	UpdatePhase(game.PhasePlaying)
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("ip", GetClientIP(r)).Msg("🔄 Restart requested via API")
	h.engine.Restart()
	snap := h.engine.GetSnapshot()
	UpdatePhase(snap.Phase)
	writeJSON(w, snap)
}

func (h *routerHandlers) handleDirection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	d, err := game.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	accepted := h.engine.QueueDirection(d, "http:"+GetClientIP(r))
	writeJSON(w, map[string]bool{"accepted": accepted})
}

// Helper functions (package-level for reuse)

func writePhaseConflict(w http.ResponseWriter, snap *game.Snapshot, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"phase": snap.Phase,
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
