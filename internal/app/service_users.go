package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/store"
)

func (s *Service) CurrentUser(ctx context.Context, p Principal) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User not found")
	}
	return user, err
}

type UpdateProfileInput struct {
	Name         *string `json:"name"`
	Location     *string `json:"location"`
	Phone        *string `json:"phone"`
	Bio          *string `json:"bio"`
	ProfilePhoto *string `json:"profile_photo"`
}

func (s *Service) UpdateProfile(ctx context.Context, p Principal, input UpdateProfileInput) (store.User, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return store.User{}, validationError("Name cannot be empty")
	}
	user, err := s.store.UpdateUserProfile(ctx, p.UserID, store.ProfileUpdate{
		Name:         trimmedPtr(input.Name),
		Location:     trimmedPtr(input.Location),
		Phone:        trimmedPtr(input.Phone),
		Bio:          input.Bio,
		ProfilePhoto: trimmedPtr(input.ProfilePhoto),
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User not found")
	}
	return user, err
}

// UploadProfilePhoto stores the photo and points the caller's profile at it.
func (s *Service) UploadProfilePhoto(ctx context.Context, p Principal, file media.File) (string, store.User, error) {
	url, err := s.uploadPhoto(ctx, media.FolderProfiles, file)
	if err != nil {
		return "", store.User{}, err
	}
	user, err := s.store.UpdateUserProfile(ctx, p.UserID, store.ProfileUpdate{ProfilePhoto: &url})
	if errors.Is(err, store.ErrNotFound) {
		return "", store.User{}, notFoundError("User not found")
	}
	if err != nil {
		return "", store.User{}, err
	}
	return url, user, nil
}

func (s *Service) ListUsers(ctx context.Context, p Principal) ([]store.User, error) {
	if !rbac.Can(p.Role, rbac.ActionManageUsers) {
		return nil, forbiddenError("Admin access required")
	}
	return s.store.ListUsers(ctx)
}

// UpdateUserRole lets an admin change any role but their own admin role.
// Every attempt is audited, including no-op ones.
func (s *Service) UpdateUserRole(ctx context.Context, p Principal, targetID, role string) (store.User, error) {
	if !rbac.Can(p.Role, rbac.ActionManageUsers) {
		return store.User{}, forbiddenError("Admin access required")
	}
	newRole, err := rbac.ParseRole(role)
	if err != nil {
		return store.User{}, validationError("Invalid role")
	}
	if err := rbac.ValidateRoleChange(p.subject(), targetID, newRole); err != nil {
		return store.User{}, validationError("Admins cannot demote themselves")
	}

	current, err := s.store.GetUserByID(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User not found")
	}
	if err != nil {
		return store.User{}, err
	}

	updated, err := s.store.UpdateUserRole(ctx, targetID, string(newRole))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, notFoundError("User not found")
	}
	if err != nil {
		return store.User{}, err
	}

	target := firstNonBlank(current.Name, current.Email, current.ID)
	var action string
	if current.Role != string(newRole) {
		action = fmt.Sprintf("role_change: admin='%s' changed '%s' from '%s' to '%s'", p.actorLabel(), target, current.Role, newRole)
	} else {
		action = fmt.Sprintf("role_change_noop: admin='%s' kept '%s' at '%s'", p.actorLabel(), target, newRole)
	}
	s.logger.Debug("role update audited", "action", action)
	s.recordLog(ctx, p.UserID, action)
	return updated, nil
}
