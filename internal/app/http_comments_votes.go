package app

import (
	"net/http"
)

func (s *HTTPServer) routeComments(w http.ResponseWriter, r *http.Request, principal Principal, parts []string) bool {
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		views, err := s.service.ListComments(r.Context(), principal, parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, commentsJSON(views))
		return true
	case len(parts) == 1 && r.Method == http.MethodPost:
		s.handleAddComment(w, r, principal, parts[0])
		return true
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), principal, parts[0]); err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Comment deleted"})
		return true
	case len(parts) == 2 && r.Method == http.MethodPatch && parts[1] == "react":
		var body struct {
			Action *string `json:"action"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		var action string
		if body.Action != nil {
			action = *body.Action
			if action == "" {
				writeError(w, http.StatusBadRequest, codeValidation, "action must be like, dislike or null", nil)
				return true
			}
		}
		view, err := s.service.ReactComment(r.Context(), principal, parts[0], action)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, commentJSON(view))
		return true
	}
	return false
}

// handleAddComment accepts multipart (content, parent_id, photo) or JSON.
func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request, principal Principal, complaintID string) {
	var input AddCommentInput
	if isMultipart(r) {
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
		input = AddCommentInput{
			Content:  formValue(r, "content"),
			ParentID: formValue(r, "parent_id"),
		}
		if len(photos) == 1 {
			input.Photo = &photos[0]
		}
	} else {
		var body struct {
			Content  string `json:"content"`
			ParentID string `json:"parent_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return
		}
		input = AddCommentInput{Content: body.Content, ParentID: body.ParentID}
	}

	view, err := s.service.AddComment(r.Context(), principal, complaintID, input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentJSON(view))
}

func (s *HTTPServer) routeVotes(w http.ResponseWriter, r *http.Request, principal Principal, parts []string) bool {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet && parts[1] == "summary":
		counts, err := s.service.VoteSummary(r.Context(), principal, parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"up": counts.Up, "down": counts.Down})
		return true
	case len(parts) == 1 && r.Method == http.MethodPost:
		var body struct {
			VoteType *string `json:"vote_type"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
			return true
		}
		var voteType string
		if body.VoteType != nil {
			voteType = *body.VoteType
			if voteType == "" {
				writeError(w, http.StatusBadRequest, codeValidation, "Invalid vote_type", nil)
				return true
			}
		}
		result, err := s.service.SetVote(r.Context(), principal, parts[0], voteType)
		if err != nil {
			s.writeServiceError(w, r, err)
			return true
		}
		if result.Vote == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "vote": nil})
			return true
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, voteJSON(*result.Vote))
		return true
	}
	return false
}
