package app

import (
	"net/http"
	"strconv"

	"cleanstreet/api/internal/store"
)

func (s *HTTPServer) routeComplaints(w http.ResponseWriter, r *http.Request, principal Principal, parts []string) bool {
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items, err := s.service.ListComplaints(r.Context(), principal)
		s.respondComplaints(w, r, items, err)
		return true
	case len(parts) == 0 && r.Method == http.MethodPost:
		s.handleCreateComplaint(w, r, principal)
		return true
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "recent":
		items, err := s.service.ListRecentComplaints(r.Context(), principal)
		s.respondComplaints(w, r, items, err)
		return true
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "mine":
		items, err := s.service.ListMyComplaints(r.Context(), principal)
		s.respondComplaints(w, r, items, err)
		return true
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "search":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.service.SearchComplaints(r.Context(), principal, r.URL.Query().Get("q"), r.URL.Query().Get("status"), limit)
		s.respondComplaints(w, r, items, err)
		return true
	case len(parts) == 1 && r.Method == http.MethodGet:
		item, err := s.service.GetComplaint(r.Context(), principal, parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, complaintJSON(item))
		return true
	case len(parts) == 1 && r.Method == http.MethodPut:
		var body UpdateComplaintInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		item, err := s.service.UpdateComplaint(r.Context(), principal, parts[0], body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, complaintJSON(item))
		return true
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteComplaint(r.Context(), principal, parts[0]); err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Complaint deleted successfully"})
		return true
	case len(parts) == 2 && r.Method == http.MethodPatch && parts[1] == "status":
		var body struct {
			Status     string  `json:"status"`
			AssignedTo *string `json:"assigned_to"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		item, err := s.service.UpdateComplaintStatus(r.Context(), principal, parts[0], body.Status, body.AssignedTo)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, complaintJSON(item))
		return true
	}
	return false
}

// handleCreateComplaint accepts multipart (with up to six "photos") or plain JSON.
func (s *HTTPServer) handleCreateComplaint(w http.ResponseWriter, r *http.Request, principal Principal) {
	var input CreateComplaintInput
	if isMultipart(r) {
		if err := parseMultipart(w, r, MaxComplaintPhotos); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		photos, cleanup, err := openPhotos(r, MaxComplaintPhotos, "photos", "photo")
		defer cleanup()
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		input = CreateComplaintInput{
			Title:          formValue(r, "title"),
			Description:    formValue(r, "description"),
			LocationCoords: formValue(r, "location_coords"),
			Address:        formValue(r, "address"),
			Photos:         photos,
		}
	} else {
		var body struct {
			Title          string `json:"title"`
			Description    string `json:"description"`
			LocationCoords string `json:"location_coords"`
			Address        string `json:"address"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return
		}
		input = CreateComplaintInput{
			Title:          body.Title,
			Description:    body.Description,
			LocationCoords: body.LocationCoords,
			Address:        body.Address,
		}
	}

	item, err := s.service.CreateComplaint(r.Context(), principal, input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, complaintJSON(item))
}

func (s *HTTPServer) respondComplaints(w http.ResponseWriter, r *http.Request, items []store.Complaint, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaintsJSON(items))
}
