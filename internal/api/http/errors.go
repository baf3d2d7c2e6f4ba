package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/openqbank/qbexport/internal/errs"
)

// writeErr maps the error taxonomy onto HTTP status codes. Validation and
// in-use failures carry structured detail so a client can act on them.
func writeErr(w http.ResponseWriter, err error) {
	var ve *errs.ValidationError
	var iu *errs.InUseError
	var ir *errs.InvalidRequestError
	var mi *errs.MalformedInputError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "validation failed",
			"violations": ve.Violations,
		})
	case errors.As(err, &iu):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":       err.Error(),
			"template_id": iu.TemplateID,
			"task_ids":    iu.TaskIDs,
		})
	case errors.As(err, &ir):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	case errors.As(err, &mi):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  err.Error(),
			"offset": mi.Offset,
		})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
	default:
		log.Printf("api: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
