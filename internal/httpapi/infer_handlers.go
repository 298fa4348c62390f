package httpapi

import (
	"errors"
	"net/http"

	"lekha.org/internal/infer"
	"lekha.org/internal/obs"
)

func (a *API) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	res, err := a.engine.Classify(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, infer.ErrNoActiveModel):
			writeError(w, r, http.StatusServiceUnavailable, "no active model")
		case errors.Is(err, infer.ErrArtifactUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "model weights unavailable")
		case errors.Is(err, infer.ErrDecode):
			writeError(w, r, http.StatusBadRequest, "image could not be decoded")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// Event persistence never blocks the classification response.
	source := r.FormValue("source")
	if source == "" {
		source = "web"
	}
	if err := a.registry.RecordEvent(r.Context(), p.ID, res.ArtifactID, source); err != nil {
		obs.LogEvent("warn", "inference_event_write_failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}
