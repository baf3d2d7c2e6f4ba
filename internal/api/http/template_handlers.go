package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openqbank/qbexport/internal/auth"
	"github.com/openqbank/qbexport/internal/template"
)

// GET /templates?applies_to=&owner=
func ListTemplatesHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListPresentations(r.Context(), template.Filter{
			AppliesTo: r.URL.Query().Get("applies_to"),
			Owner:     r.URL.Query().Get("owner"),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if out == nil {
			out = []template.PresentationTemplate{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /templates
func CreateTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t template.PresentationTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = ""
		t.Owner = auth.SubjectFromContext(r.Context())
		saved, err := store.SavePresentation(r.Context(), t)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

// GET /templates/{id}
func GetTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetPresentation(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// PUT /templates/{id}
func UpdateTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t template.PresentationTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = chi.URLParam(r, "id")
		saved, err := store.SavePresentation(r.Context(), t)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// DELETE /templates/{id}
func DeleteTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeletePresentation(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /templates/{id}/clone  { "name": "..." }
func CloneTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		owner := auth.SubjectFromContext(r.Context())
		cp, err := store.ClonePresentation(r.Context(), chi.URLParam(r, "id"), req.Name, owner)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, cp)
	}
}

// GET /metadata-templates?owner=
func ListMetadataTemplatesHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListMetadata(r.Context(), r.URL.Query().Get("owner"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if out == nil {
			out = []template.MetadataTemplate{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /metadata-templates
func CreateMetadataTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t template.MetadataTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = ""
		t.Owner = auth.SubjectFromContext(r.Context())
		saved, err := store.SaveMetadata(r.Context(), t)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

// GET /metadata-templates/{id}
func GetMetadataTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetMetadata(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DELETE /metadata-templates/{id}
func DeleteMetadataTemplateHandler(store template.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteMetadata(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
