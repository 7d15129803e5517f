package app

import (
	"net/http"
)

func (s *HTTPServer) routeUsers(w http.ResponseWriter, r *http.Request, principal Principal, parts []string) bool {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		users, err := s.service.ListUsers(r.Context(), principal)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, usersJSON(users))
		return true
	case len(parts) == 1 && parts[0] == "me" && r.Method == http.MethodGet:
		user, err := s.service.CurrentUser(r.Context(), principal)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, userJSON(user))
		return true
	case len(parts) == 1 && parts[0] == "me" && r.Method == http.MethodPut:
		var body UpdateProfileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		user, err := s.service.UpdateProfile(r.Context(), principal, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, userJSON(user))
		return true
	case len(parts) == 2 && parts[0] == "me" && parts[1] == "photo" && r.Method == http.MethodPost:
		s.handleProfilePhoto(w, r, principal)
		return true
	case len(parts) == 2 && parts[0] == "me" && parts[1] == "password" && r.Method == http.MethodPost:
		var body struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		if err := s.service.ChangePassword(r.Context(), principal, body.CurrentPassword, body.NewPassword); err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true
	case len(parts) == 2 && parts[1] == "role" && r.Method == http.MethodPut:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		user, err := s.service.UpdateUserRole(r.Context(), principal, parts[0], body.Role)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, userJSON(user))
		return true
	}
	return false
}

func (s *HTTPServer) handleProfilePhoto(w http.ResponseWriter, r *http.Request, principal Principal) {
	if !isMultipart(r) {
		writeError(w, http.StatusBadRequest, codeValidation, "Photo upload must be multipart/form-data", nil)
		return
	}
	if err := parseMultipart(w, r, 1); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	photos, cleanup, err := openPhotos(r, 1, "photo")
	defer cleanup()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(photos) == 0 {
		writeError(w, http.StatusBadRequest, codeValidation, "No photo uploaded", nil)
		return
	}

	url, user, err := s.service.UploadProfilePhoto(r.Context(), principal, photos[0])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "user": userJSON(user)})
}

func (s *HTTPServer) routeAuditLogs(w http.ResponseWriter, r *http.Request, principal Principal, parts []string) bool {
	if r.Method != http.MethodGet {
		return false
	}
	switch {
	case len(parts) == 0:
		entries, err := s.service.ListAuditLogs(r.Context(), principal)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, auditListJSON(entries, false))
		return true
	case len(parts) == 1 && parts[0] == "recent":
		entries, err := s.service.RecentAuditLogs(r.Context(), principal)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, auditListJSON(entries, true))
		return true
	}
	return false
}
