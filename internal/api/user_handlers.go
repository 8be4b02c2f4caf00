package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"filehost-backend/internal/auth"
	"filehost-backend/internal/repository"
)

type UserResponse struct {
	UID        string `json:"uid"`
	UsedBytes  int64  `json:"used_bytes"`
	QuotaBytes int64  `json:"quota_bytes"`
	Files      int64  `json:"files"`
	MaxFiles   int64  `json:"max_files"`
	IsAdmin    bool   `json:"is_admin"`
}

func userResponse(u *repository.User) UserResponse {
	return UserResponse{
		UID:        u.UID(),
		UsedBytes:  u.UsedBytes(),
		QuotaBytes: u.QuotaBytes(),
		Files:      u.FileCount(),
		MaxFiles:   u.MaxFiles(),
		IsAdmin:    u.IsAdmin(),
	}
}

func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) ChangeMyPasswordHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash()) {
		http.Error(w, "Current password doesn't match", http.StatusBadRequest)
		return
	}

	if err := user.SetPassword(r.Context(), req.NewPassword); err != nil {
		if errors.Is(err, repository.ErrInvalidPassword) {
			http.Error(w, "Invalid new password", http.StatusBadRequest)
			return
		}
		s.log.Error("failed to change password", "uid", user.UID(), "err", err)
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type CreateUserRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	QuotaBytes *int64 `json:"quota_bytes"`
	MaxFiles   *int64 `json:"max_files"`
}

func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quota := s.config.Limits.DefaultQuotaBytes
	if req.QuotaBytes != nil {
		quota = *req.QuotaBytes
	}
	maxFiles := s.config.Limits.DefaultMaxFiles
	if req.MaxFiles != nil {
		maxFiles = *req.MaxFiles
	}

	user, err := s.repo.CreateUser(r.Context(), req.Username, req.Password, quota, maxFiles)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidUserName), errors.Is(err, repository.ErrInvalidPassword):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrDuplicateUser):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			s.log.Error("failed to create user", "err", err)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, userResponse(user))
}

func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"users": s.repo.AllUserIDs()})
}

func (s *Server) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.repo.GetUser(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

type UpdateUserRequest struct {
	QuotaBytes *int64 `json:"quota_bytes"`
	MaxFiles   *int64 `json:"max_files"`
	IsAdmin    *bool  `json:"is_admin"`
}

func (s *Server) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.repo.GetUser(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.QuotaBytes != nil {
		if err := user.SetQuotaBytes(r.Context(), *req.QuotaBytes); err != nil {
			http.Error(w, "Failed to update quota", http.StatusInternalServerError)
			return
		}
	}
	if req.MaxFiles != nil {
		if err := user.SetMaxFiles(r.Context(), *req.MaxFiles); err != nil {
			http.Error(w, "Failed to update file limit", http.StatusInternalServerError)
			return
		}
	}
	if req.IsAdmin != nil {
		if user.UID() == "root" && !*req.IsAdmin {
			http.Error(w, "Cannot revoke root's admin role", http.StatusForbidden)
			return
		}
		if err := user.SetAdmin(r.Context(), *req.IsAdmin); err != nil {
			http.Error(w, "Failed to update role", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, userResponse(user))
}

type SetPasswordRequest struct {
	Password string `json:"password"`
}

// SetUserPasswordHandler lets an admin reset someone's password. Root's
// password can only be changed by root through the self-service route.
func (s *Server) SetUserPasswordHandler(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	caller := GetUserFromContext(r.Context())
	if uid == "root" && caller.UID() != "root" {
		http.Error(w, "Cannot change root's password", http.StatusForbidden)
		return
	}

	user, err := s.repo.GetUser(r.Context(), uid)
	if err != nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var req SetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := user.SetPassword(r.Context(), req.Password); err != nil {
		if errors.Is(err, repository.ErrInvalidPassword) {
			http.Error(w, "Invalid password", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to set password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "root" {
		http.Error(w, "Cannot delete root", http.StatusForbidden)
		return
	}

	user, err := s.repo.GetUser(r.Context(), uid)
	if err != nil {
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if err := user.Delete(r.Context()); err != nil {
		s.log.Error("failed to delete user", "uid", user.UID(), "err", err)
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
