package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"lekha.org/internal/registry"
)

const modelsPrefix = "/api/admin/models/"

func (a *API) handleModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listModels(w, r)
	case http.MethodPost:
		a.createModel(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleModelByID dispatches /api/admin/models/{id} and its toggle and
// activate sub-resources.
func (a *API) handleModelByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, modelsPrefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.deleteModel(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "toggle":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.toggleModel(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "activate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.activateModel(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (a *API) listModels(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.registry.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (a *API) createModel(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	artifact, err := a.registry.Create(r.Context(), registry.CreateSpec{
		Name:         r.FormValue("name"),
		Architecture: r.FormValue("arch"),
		Version:      r.FormValue("version"),
		Description:  r.FormValue("description"),
		OwnerID:      p.ID,
	}, file)
	if err != nil {
		a.handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, artifact)
}

func (a *API) toggleModel(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, r, http.StatusBadRequest, "enabled is required")
		return
	}
	artifact, err := a.registry.Toggle(r.Context(), id, *req.Enabled)
	if err != nil {
		a.handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (a *API) activateModel(w http.ResponseWriter, r *http.Request, id string) {
	artifact, err := a.registry.SetActive(r.Context(), id)
	if err != nil {
		a.handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (a *API) deleteModel(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.registry.Delete(r.Context(), id); err != nil {
		a.handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okDetail)
}

func (a *API) handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "model not found")
	case errors.Is(err, registry.ErrInvalidState):
		writeError(w, r, http.StatusBadRequest, "model is disabled")
	case errors.Is(err, registry.ErrNoActive):
		writeError(w, r, http.StatusNotFound, "no active model")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
