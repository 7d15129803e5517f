package app

import (
	"time"

	"cleanstreet/api/internal/store"
)

func authJSON(result AuthResult) map[string]any {
	return map[string]any{
		"token": result.Token,
		"user":  userJSON(result.User),
	}
}

// userJSON never includes the password hash.
func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"role":          user.Role,
		"location":      user.Location,
		"phone":         user.Phone,
		"bio":           user.Bio,
		"profile_photo": user.ProfilePhoto,
		"created_at":    formatTime(user.CreatedAt),
		"updated_at":    formatTime(user.UpdatedAt),
	}
}

func usersJSON(users []store.User) []map[string]any {
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userJSON(user))
	}
	return items
}

func complaintJSON(item store.Complaint) map[string]any {
	photos := item.Photos
	if photos == nil {
		photos = []string{}
	}
	return map[string]any{
		"id":              item.ID,
		"user_id":         item.UserID,
		"title":           item.Title,
		"description":     item.Description,
		"photos":          photos,
		"location_coords": item.LocationCoords,
		"address":         item.Address,
		"assigned_to":     item.AssignedTo,
		"status":          item.Status,
		"created_at":      formatTime(item.CreatedAt),
		"updated_at":      formatTime(item.UpdatedAt),
	}
}

func complaintsJSON(items []store.Complaint) []map[string]any {
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		result = append(result, complaintJSON(item))
	}
	return result
}

func commentJSON(view CommentView) map[string]any {
	var parentID any
	if view.ParentID != "" {
		parentID = view.ParentID
	}
	var author any
	if view.Author != nil {
		author = map[string]any{
			"id":            view.Author.ID,
			"name":          view.Author.Name,
			"profile_photo": view.Author.ProfilePhoto,
			"role":          view.Author.Role,
		}
	}
	return map[string]any{
		"id":           view.ID,
		"complaint_id": view.ComplaintID,
		"parent_id":    parentID,
		"content":      view.Content,
		"photo_url":    view.PhotoURL,
		"user":         author,
		"likes":        view.Likes,
		"dislikes":     view.Dislikes,
		"my_reaction":  view.MyReaction,
		"created_at":   formatTime(view.CreatedAt),
		"updated_at":   formatTime(view.UpdatedAt),
	}
}

func commentsJSON(views []CommentView) []map[string]any {
	items := make([]map[string]any, 0, len(views))
	for _, view := range views {
		items = append(items, commentJSON(view))
	}
	return items
}

func voteJSON(vote store.Vote) map[string]any {
	return map[string]any{
		"id":           vote.ID,
		"user_id":      vote.UserID,
		"complaint_id": vote.ComplaintID,
		"vote_type":    vote.VoteType,
		"created_at":   formatTime(vote.CreatedAt),
		"updated_at":   formatTime(vote.UpdatedAt),
	}
}

// auditJSON renders an entry; withActor adds the actor object, null when unknown.
func auditJSON(entry AuditEntry, withActor bool) map[string]any {
	item := map[string]any{
		"id":        entry.ID,
		"user_id":   entry.UserID,
		"action":    entry.Action,
		"timestamp": formatTime(entry.Timestamp),
	}
	if withActor {
		var actor any
		if entry.Actor != nil {
			actor = map[string]any{
				"id":    entry.Actor.ID,
				"name":  entry.Actor.Name,
				"email": entry.Actor.Email,
			}
		}
		item["actor"] = actor
	}
	return item
}

func auditListJSON(entries []AuditEntry, withActor bool) []map[string]any {
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, auditJSON(entry, withActor))
	}
	return items
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
