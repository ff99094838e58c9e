package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sersweai/leadcrm/internal/domain/leadimport"
)

const maxUploadBytes = 10 << 20

// LeadImporter parses and stores a CSV export.
type LeadImporter interface {
	Import(ctx context.Context, r io.Reader, source string) (int, error)
}

// ImportHandler accepts CSV exports as JSON {"csv": "..."} or a multipart "file" upload.
type ImportHandler struct {
	importer LeadImporter
}

func NewImportHandler(importer LeadImporter) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Import handles POST /api/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	var (
		src    io.Reader
		source string
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			CSV string `json:"csv"`
		}
		raw, err := readBody(w, r)
		if err == nil {
			_ = json.Unmarshal(raw, &body)
		}
		if body.CSV == "" {
			writeError(w, http.StatusBadRequest, "Missing csv field")
			return
		}
		src, source = strings.NewReader(body.CSV), "paste"
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing CSV file")
			return
		}
		defer file.Close()
		src, source = file, header.Filename
	}

	n, err := h.importer.Import(r.Context(), src, source)
	switch {
	case errors.Is(err, leadimport.ErrNoValidRows):
		writeError(w, http.StatusBadRequest, "No valid rows found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to import leads: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inserted": n})
}
