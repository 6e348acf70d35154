package main

import (
	"context"
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health: database unreachable", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down", "ts": a.now().UTC().Format(time.RFC3339)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up", "ts": a.now().UTC().Format(time.RFC3339)})
}
