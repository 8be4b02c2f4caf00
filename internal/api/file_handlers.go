package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"filehost-backend/internal/repository"
)

type FileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Extension   string    `json:"extension"`
	Size        int64     `json:"size"`
	UploadTime  time.Time `json:"upload_time"`
	IsPublic    bool      `json:"is_public"`
	Owner       string    `json:"owner"`
}

func fileResponse(f *repository.File) FileResponse {
	return FileResponse{
		ID:          f.ID(),
		Name:        f.Name(),
		ContentType: f.ContentType(),
		Extension:   f.Extension(),
		Size:        f.Size(),
		UploadTime:  f.UploadTime(),
		IsPublic:    f.IsPublic(),
		Owner:       f.Owner(),
	}
}

func (s *Server) ListMyFilesHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	files := make([]FileResponse, 0)
	for _, fid := range user.FileIDs() {
		file, err := s.repo.GetFileInfo(r.Context(), fid)
		if err != nil {
			http.Error(w, "Failed to list files", http.StatusInternalServerError)
			return
		}
		if file == nil {
			continue
		}
		files = append(files, fileResponse(file))
	}

	writeJSON(w, http.StatusOK, files)
}

func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	s.handleUpload(w, r, user)
}

// handleUpload runs the shared upload path for both the session route and
// the upload-code route: stage, quota pre-check, commit, notify.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, owner *repository.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Limits.MaxUploadBytes)

	formFile, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Missing file in form data", http.StatusBadRequest)
		return
	}
	defer formFile.Close()

	tempPath, size, err := s.repo.Blobs().Stage(formFile)
	if err != nil {
		s.log.Error("failed to stage upload", "err", err)
		http.Error(w, "Failed to receive file", http.StatusInternalServerError)
		return
	}

	// Quota decision against the pre-commit snapshot; the commit protocol
	// deliberately does not re-check.
	if !owner.CanStore(size) {
		s.repo.Blobs().Discard(tempPath)
		http.Error(w, "Quota or file limit exceeded", http.StatusRequestEntityTooLarge)
		return
	}

	name := header.Filename
	if name == "" {
		name = "unnamed"
	}
	extension := strings.TrimPrefix(filepath.Ext(name), ".")
	contentType := formContentType(header)

	fid := s.repo.GenerateUniqueFileID()
	file, err := s.repo.CreateFileInfo(r.Context(), tempPath, fid, name, contentType, extension, size, time.Now(), false, owner.UID())
	if err != nil {
		s.repo.Blobs().Discard(tempPath)
		s.log.Error("commit failed", "fid", fid, "owner", owner.UID(), "err", err)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	s.hub.PublishEvent(owner.UID(), "file_created", fileResponse(file))
	writeJSON(w, http.StatusCreated, fileResponse(file))
}

func formContentType(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// getAccessibleFile resolves the fileID route param and checks that the
// caller (possibly nil for public routes) may see the file.
func (s *Server) getAccessibleFile(w http.ResponseWriter, r *http.Request, requireOwner bool) *repository.File {
	file, err := s.repo.GetFileInfo(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		http.Error(w, "Failed to retrieve file", http.StatusInternalServerError)
		return nil
	}
	if file == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return nil
	}

	user := GetUserFromContext(r.Context())
	isOwner := user != nil && (user.UID() == file.Owner() || user.IsAdmin())
	if requireOwner && !isOwner {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil
	}
	if !requireOwner && !isOwner && !file.IsPublic() {
		http.Error(w, "File not found", http.StatusNotFound)
		return nil
	}
	return file
}

func (s *Server) GetFileInfoHandler(w http.ResponseWriter, r *http.Request) {
	file := s.getAccessibleFile(w, r, false)
	if file == nil {
		return
	}
	writeJSON(w, http.StatusOK, fileResponse(file))
}

func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.getAccessibleFile(w, r, false)
	if file == nil {
		return
	}
	s.serveBlob(w, file)
}

// PublicDownloadHandler serves public files without authentication.
func (s *Server) PublicDownloadHandler(w http.ResponseWriter, r *http.Request) {
	file, err := s.repo.GetFileInfo(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		http.Error(w, "Failed to retrieve file", http.StatusInternalServerError)
		return
	}
	if file == nil || !file.IsPublic() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	s.serveBlob(w, file)
}

func (s *Server) serveBlob(w http.ResponseWriter, file *repository.File) {
	reader, err := s.repo.Blobs().Open(file.ID())
	if err != nil {
		s.log.Error("blob missing for committed file", "fid", file.ID(), "err", err)
		http.Error(w, "File content unavailable", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", file.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name()+`"`)
	io.Copy(w, reader)
}

type UpdateFileRequest struct {
	Name     *string `json:"name"`
	IsPublic *bool   `json:"is_public"`
}

func (s *Server) UpdateFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.getAccessibleFile(w, r, true)
	if file == nil {
		return
	}

	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		if err := file.SetName(r.Context(), *req.Name); err != nil {
			http.Error(w, "Failed to rename file", http.StatusBadRequest)
			return
		}
	}
	if req.IsPublic != nil {
		if err := file.SetPublic(r.Context(), *req.IsPublic); err != nil {
			http.Error(w, "Failed to update visibility", http.StatusInternalServerError)
			return
		}
	}

	s.hub.PublishEvent(file.Owner(), "file_updated", fileResponse(file))
	writeJSON(w, http.StatusOK, fileResponse(file))
}

func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	file := s.getAccessibleFile(w, r, true)
	if file == nil {
		return
	}

	if err := file.Delete(r.Context()); err != nil {
		s.log.Error("failed to delete file", "fid", file.ID(), "err", err)
		http.Error(w, "Failed to delete file", http.StatusInternalServerError)
		return
	}

	s.hub.PublishEvent(file.Owner(), "file_deleted", map[string]string{"id": file.ID()})
	w.WriteHeader(http.StatusNoContent)
}
