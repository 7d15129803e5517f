package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/metrics"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/store"
	"cleanstreet/api/internal/util"
)

const (
	ReactionNone    = "none"
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// CommentAuthor is the public part of a user profile shown next to a comment.
type CommentAuthor struct {
	ID           string
	Name         string
	ProfilePhoto string
	Role         string
}

type CommentView struct {
	ID          string
	ComplaintID string
	ParentID    string
	Content     string
	PhotoURL    string
	Author      *CommentAuthor
	Likes       int
	Dislikes    int
	MyReaction  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Service) ListComments(ctx context.Context, p Principal, complaintID string) ([]CommentView, error) {
	if _, err := s.loadListedComplaint(ctx, p, complaintID); err != nil {
		return nil, err
	}
	items, err := s.store.ListComments(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	return s.commentViews(ctx, p, items)
}

type AddCommentInput struct {
	Content  string
	ParentID string
	Photo    *media.File
}

// AddComment requires text or a photo. A parent must be an existing comment
// on the same complaint; nesting depth is not limited.
func (s *Service) AddComment(ctx context.Context, p Principal, complaintID string, input AddCommentInput) (CommentView, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" && input.Photo == nil {
		return CommentView{}, validationError("Content or photo required")
	}
	if _, err := s.loadListedComplaint(ctx, p, complaintID); err != nil {
		return CommentView{}, err
	}

	parentID := strings.TrimSpace(input.ParentID)
	if parentID != "" {
		parent, err := s.store.GetComment(ctx, parentID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && parent.ComplaintID != complaintID) {
			return CommentView{}, validationError("parent_id must reference a comment on the same complaint")
		}
		if err != nil {
			return CommentView{}, err
		}
	}

	var photoURL string
	if input.Photo != nil {
		url, err := s.uploadPhoto(ctx, media.FolderComments, *input.Photo)
		if err != nil {
			return CommentView{}, err
		}
		photoURL = url
	}

	created, err := s.store.InsertComment(ctx, store.Comment{
		ID:          util.NewID("cmt"),
		UserID:      p.UserID,
		ComplaintID: complaintID,
		ParentID:    parentID,
		Content:     content,
		PhotoURL:    photoURL,
	})
	if err != nil {
		return CommentView{}, err
	}
	return s.commentView(ctx, p, created)
}

// ReactComment sets the caller's reaction. Repeating the current reaction
// clears it; an empty action clears any reaction. Comments on complaints
// outside the caller's listings read as not found.
func (s *Service) ReactComment(ctx context.Context, p Principal, commentID, action string) (CommentView, error) {
	switch action {
	case ReactionLike, ReactionDislike, "":
	default:
		return CommentView{}, validationError("action must be like, dislike or null")
	}
	item, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, store.ErrNotFound) {
		return CommentView{}, notFoundError("Comment not found")
	}
	if err != nil {
		return CommentView{}, err
	}
	if _, err := s.loadListedComplaint(ctx, p, item.ComplaintID); err != nil {
		if isNotFound(err) {
			return CommentView{}, notFoundError("Comment not found")
		}
		return CommentView{}, err
	}

	updated, err := s.store.ReactComment(ctx, commentID, p.UserID, action)
	if errors.Is(err, store.ErrNotFound) {
		return CommentView{}, notFoundError("Comment not found")
	}
	if err != nil {
		return CommentView{}, err
	}
	metrics.Reaction(action)
	return s.commentView(ctx, p, updated)
}

// DeleteComment is allowed for the author and for admins. Replies go with it.
func (s *Service) DeleteComment(ctx context.Context, p Principal, commentID string) error {
	item, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("Comment not found")
	}
	if err != nil {
		return err
	}
	if !rbac.CanDeleteComment(p.subject(), item.UserID) {
		return forbiddenError("Forbidden")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Comment not found")
		}
		return err
	}
	return nil
}

func (s *Service) commentView(ctx context.Context, p Principal, item store.Comment) (CommentView, error) {
	views, err := s.commentViews(ctx, p, []store.Comment{item})
	if err != nil {
		return CommentView{}, err
	}
	return views[0], nil
}

func (s *Service) commentViews(ctx context.Context, p Principal, items []store.Comment) ([]CommentView, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.UserID]; !ok {
			seen[item.UserID] = struct{}{}
			ids = append(ids, item.UserID)
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	authors := make(map[string]*CommentAuthor, len(users))
	for _, user := range users {
		authors[user.ID] = &CommentAuthor{ID: user.ID, Name: user.Name, ProfilePhoto: user.ProfilePhoto, Role: user.Role}
	}

	views := make([]CommentView, 0, len(items))
	for _, item := range items {
		views = append(views, CommentView{
			ID:          item.ID,
			ComplaintID: item.ComplaintID,
			ParentID:    item.ParentID,
			Content:     item.Content,
			PhotoURL:    item.PhotoURL,
			Author:      authors[item.UserID],
			Likes:       len(item.Likes),
			Dislikes:    len(item.Dislikes),
			MyReaction:  reactionOf(p.UserID, item),
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return views, nil
}

func isNotFound(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == codeNotFound
}

func reactionOf(userID string, item store.Comment) string {
	for _, id := range item.Likes {
		if id == userID {
			return ReactionLike
		}
	}
	for _, id := range item.Dislikes {
		if id == userID {
			return ReactionDislike
		}
	}
	return ReactionNone
}
