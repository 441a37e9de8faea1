package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/extract"
	"github.com/hyperjump/seisan/internal/ingest"
)

// maxUploadBytes caps multipart uploads held in memory before spilling to disk.
const maxUploadBytes = 64 << 20

func (s *Server) handleAnalyzeInvoices(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	employeeName := strings.TrimSpace(r.FormValue("employee_name"))
	if employeeName == "" {
		s.respondError(w, http.StatusBadRequest, "employee_name is required")
		return
	}

	zipFile, zipHeader, err := r.FormFile("invoices_zip")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invoices_zip file is required")
		return
	}
	defer zipFile.Close()
	if !strings.HasSuffix(strings.ToLower(zipHeader.Filename), ".zip") {
		s.respondError(w, http.StatusBadRequest, "invoices must be in ZIP format")
		return
	}

	tmpDir, err := os.MkdirTemp("", "seisan-upload-*")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, "invoices.zip")
	if err := saveUpload(zipFile, zipPath); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}

	policyText, policyName, err := s.resolvePolicy(r, tmpDir)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Debug("analyze invoices request",
		zap.String("employee", employeeName),
		zap.String("archive", zipHeader.Filename))

	results, err := s.pipeline.ProcessInvoices(r.Context(), zipPath, employeeName, policyText)
	if err != nil {
		var perr *ingest.ProcessingError
		if errors.As(err, &perr) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("invoice processing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"employee_name":   employeeName,
		"processed_count": len(results),
		"invoices":        results,
		"policy_used":     policyName,
	})
}

// resolvePolicy returns the policy text for an analysis request: the uploaded
// policy_file when present, otherwise inline policy_text, otherwise the
// configured default.
func (s *Server) resolvePolicy(r *http.Request, tmpDir string) (text, name string, err error) {
	policyFile, policyHeader, ferr := r.FormFile("policy_file")
	if ferr == nil {
		defer policyFile.Close()
		content, rerr := io.ReadAll(policyFile)
		if rerr != nil {
			return "", "", errors.New("failed to read policy file")
		}
		ext := strings.ToLower(filepath.Ext(policyHeader.Filename))
		extractor := extract.NewExtractor()
		if !extractor.Supported(ext) {
			return "", "", errors.New("unsupported policy file type")
		}
		text, xerr := extractor.ExtractBytes(content, ext)
		if xerr != nil {
			return "", "", errors.New("failed to extract policy text")
		}
		return text, "Uploaded policy: " + policyHeader.Filename, nil
	}
	if inline := r.FormValue("policy_text"); inline != "" {
		return inline, "Inline policy text", nil
	}
	return s.defaultPolicy, "Default company policy", nil
}

func saveUpload(src io.Reader, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type searchRequest struct {
	Query      string            `json:"query"`
	Filters    map[string]string `json:"filters,omitempty"`
	MaxResults int               `json:"max_results,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var hits interface{}
	var err error
	if strings.TrimSpace(req.Query) == "" {
		hits, err = s.searcher.SearchByMetadata(r.Context(), req.Filters, req.MaxResults)
	} else {
		hits, err = s.searcher.SearchByText(r.Context(), req.Query, req.Filters, req.MaxResults)
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": hits})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.chat.ProcessMessage(r.Context(), req.Message, req.SessionID)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	history, lastQuery := s.chat.Sessions().History(sessionID)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    sessionID,
		"history":       history,
		"message_count": len(history),
		"last_query":    lastQuery,
	})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	cleared := s.chat.Sessions().Clear(sessionID)
	if !cleared {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "cleared"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.chat.Sessions().ListActive(),
	})
}

// handleStats reports index health. It never fails: index trouble is reported
// in the body with a degraded status.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats(r.Context())
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("index clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("vector index cleared")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
