package server

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/pkg/label"
)

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var requests []label.ShipmentRequest
	if !decodeBody(w, r, &requests) {
		return
	}

	user, err := s.deps.Users.FindUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	started := time.Now()
	outcome, err := s.deps.Orchestrator.Process(r.Context(), user, requests)
	if err != nil {
		s.metrics.RecordRequest("submit_batch", "", "error", time.Since(started).Seconds())
		s.logger.Error("Batch submission failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		respondError(w, err)
		return
	}
	s.metrics.RecordRequest("submit_batch", string(outcome.Courier), "ok", time.Since(started).Seconds())
	for _, item := range outcome.Items {
		s.metrics.RecordBatchItem(string(item.Request.Courier), string(item.Status))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Bulk orders created successfully",
		"fileName": primaryFilename(outcome.Files.LabelDoc, outcome.Files.ResultManifest),
		"data":     outcome,
	})
}

func primaryFilename(labelDoc, manifest string) string {
	if labelDoc != "" {
		return labelDoc
	}
	return manifest
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		respondMessage(w, http.StatusBadRequest, "User ID is required")
		return
	}

	batches, err := s.deps.Batches.FindBatchesByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, batches)
}

// handleDownload serves a generated artifact byte-for-byte.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := s.deps.Writer.Path(filename)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondMessage(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}
