package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openqbank/qbexport/internal/auth"
	"github.com/openqbank/qbexport/internal/export"
	"github.com/openqbank/qbexport/internal/render"
	"github.com/openqbank/qbexport/internal/storage"
)

// POST /export
func SubmitExportHandler(m *export.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		caller := auth.SubjectFromContext(r.Context())
		taskID, err := m.Submit(r.Context(), caller, req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
	}
}

// GET /export/{taskID}
func ExportStatusHandler(m *export.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := m.Status(chi.URLParam(r, "taskID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// POST /export/{taskID}/cancel
func CancelExportHandler(m *export.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := m.Cancel(chi.URLParam(r, "taskID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// GET /export/{taskID}/download
func DownloadExportHandler(m *export.Manager, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := m.Status(chi.URLParam(r, "taskID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if t.State != export.StateSucceeded {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "task is " + string(t.State) + ", no artifact to download",
			})
			return
		}
		rc, err := bs.Get(t.ArtifactPath)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", t.Format.ContentType())
		w.Header().Set("Content-Disposition",
			"attachment; filename=\""+t.ID+t.Format.Ext()+"\"")
		_, _ = io.Copy(w, rc)
	}
}

// GET /export-history?format=&requested_by=&limit=
func ExportHistoryHandler(h export.HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := export.HistoryFilter{
			Format:      r.URL.Query().Get("format"),
			RequestedBy: r.URL.Query().Get("requested_by"),
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			f.Limit = n
		}
		recs, err := h.List(r.Context(), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		if recs == nil {
			recs = []export.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// GET /formats
func FormatsHandler() http.HandlerFunc {
	type fmtInfo struct {
		Format      string `json:"format"`
		ContentType string `json:"content_type"`
		Extension   string `json:"extension"`
	}
	formats := []render.Format{
		render.FormatDocx, render.FormatPDF, render.FormatHTML,
		render.FormatMarkdown, render.FormatXLSX,
	}
	out := make([]fmtInfo, 0, len(formats))
	for _, f := range formats {
		out = append(out, fmtInfo{Format: string(f), ContentType: f.ContentType(), Extension: f.Ext()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, out)
	}
}
