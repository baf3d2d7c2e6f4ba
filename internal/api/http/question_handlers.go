package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openqbank/qbexport/internal/qbank"
)

// POST /questions (multipart: file=bank.xml, or raw XML body)
func UploadQuestionsHandler(sessions qbank.SessionStore, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var src io.Reader
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			src = f
		} else {
			src = r.Body
		}

		data, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if int64(len(data)) > maxBytes {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		if len(data) == 0 {
			http.Error(w, "empty upload", http.StatusBadRequest)
			return
		}

		questions, warnings, err := qbank.Parse(data)
		if err != nil {
			writeErr(w, err)
			return
		}
		sess, err := sessions.Put(questions, warnings)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

// GET /questions/{sessionID}
func GetSessionHandler(sessions qbank.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}
