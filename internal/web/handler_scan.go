package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/foodguard/internal/foodapi"
	"github.com/vbonduro/foodguard/internal/photostore"
	"github.com/vbonduro/foodguard/internal/service"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

func (s *Server) handleScanPage(w http.ResponseWriter, r *http.Request) {
	s.renderScan(w, r, http.StatusOK, nil)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		s.renderScan(w, r, http.StatusBadRequest, &alert{Title: "Error", Message: "The photo could not be read."})
		return
	}

	file, _, err := r.FormFile(foodapi.PictureField)
	if err != nil {
		s.renderScan(w, r, http.StatusBadRequest, &alert{Title: "Error", Message: "Please choose a photo first."})
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		s.logger.Error("read upload failed", "error", err)
		return
	}

	mimeType, ok := photostore.DetectImageType(imageData)
	if !ok {
		s.renderScan(w, r, http.StatusBadRequest, &alert{Title: "Error", Message: "Unsupported image format."})
		return
	}

	record, err := s.scans.Scan(r.Context(), imageData, mimeType)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		s.renderScan(w, r, http.StatusBadGateway, &alert{Title: "Error", Message: "Failed to fetch nutrition prediction. Please try again."})
		return
	}

	data := map[string]any{"Record": *record, "ActiveNav": "scan", "Predicted": true}
	if err := s.renderPage(w, http.StatusOK, data, "pages/detail.html", "partials/nutrition.html"); err != nil {
		s.logger.Error("render page failed", "page", "detail", "error", err)
	}
}

func (s *Server) renderScan(w http.ResponseWriter, r *http.Request, status int, a *alert) {
	scans, err := s.scans.ListScans(r.Context())
	if err != nil {
		s.logger.Error("list scans failed", "error", err)
	}
	data := map[string]any{"Alert": a, "Scans": scans, "ActiveNav": "scan"}
	if err := s.renderPage(w, status, data, "pages/scan.html"); err != nil {
		s.logger.Error("render page failed", "page", "scan", "error", err)
	}
}

func (s *Server) handleScanDetail(w http.ResponseWriter, r *http.Request) {
	scan, err := s.scans.GetScan(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrScanNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to load scan", http.StatusInternalServerError)
		s.logger.Error("get scan failed", "scan_id", r.PathValue("id"), "error", err)
		return
	}

	data := map[string]any{"Scan": scan, "ActiveNav": "scan"}
	if record, ok := s.history.Lookup(scan.RecordID); ok && scan.RecordID != "" {
		data["Record"] = record
	}
	if err := s.renderPage(w, http.StatusOK, data, "pages/scan_detail.html", "partials/nutrition.html"); err != nil {
		s.logger.Error("render page failed", "page", "scan_detail", "error", err)
	}
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	err := s.scans.DeleteScan(r.Context(), r.PathValue("id"))
	if errors.Is(err, service.ErrScanNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to delete scan", http.StatusInternalServerError)
		s.logger.Error("delete scan failed", "scan_id", r.PathValue("id"), "error", err)
		return
	}
	http.Redirect(w, r, "/scan", http.StatusSeeOther)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	reader, mimeType, err := s.photoStore.Get(r.Context(), r.PathValue("key"))
	if errors.Is(err, photostore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to read photo", http.StatusInternalServerError)
		s.logger.Error("get photo failed", "key", r.PathValue("key"), "error", err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "key", r.PathValue("key"), "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
