package handlers

import (
	"net/http"

	"img2img/internal/domain/modelcfg"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Models lists the generation presets and the accepted aspect ratios.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"models":       a.Registry.List(),
		"aspectRatios": modelcfg.AspectRatios(),
		"numOutputs":   []int{1, 2, 4},
	})
}
