package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type UploadCodeResponse struct {
	Code string `json:"code"`
	// TTLSeconds tells the client how long the code stays valid if unused.
	TTLSeconds int64 `json:"ttl_seconds"`
}

func (s *Server) IssueUploadCodeHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	code := s.repo.IssueUploadCode(user.UID())
	writeJSON(w, http.StatusCreated, UploadCodeResponse{
		Code:       code,
		TTLSeconds: int64(s.config.UploadCodes.TTL.Seconds()),
	})
}

// UploadByCodeHandler accepts an upload delegated by an upload code instead
// of a session. Resolving consumes the code, so the delegation is spent even
// if the upload itself fails.
func (s *Server) UploadByCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	uid, ok := s.repo.ResolveUploadCode(code)
	if !ok {
		http.Error(w, "Invalid or expired upload code", http.StatusForbidden)
		return
	}

	owner, err := s.repo.GetUser(r.Context(), uid)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if owner == nil {
		http.Error(w, "Invalid or expired upload code", http.StatusForbidden)
		return
	}

	s.handleUpload(w, r, owner)
}
