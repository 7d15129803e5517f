package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cleanstreet/api/internal/email"
	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/metrics"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/search"
	"cleanstreet/api/internal/store"
	"cleanstreet/api/internal/util"
)

const (
	StatusReceived = "received"
	StatusInReview = "in_review"
	StatusResolved = "resolved"

	MaxComplaintPhotos = 6
	recentComplaintCap = 5
)

var allowedStatuses = map[string]struct{}{
	StatusReceived: {},
	StatusInReview: {},
	StatusResolved: {},
}

func validStatus(status string) bool {
	_, ok := allowedStatuses[status]
	return ok
}

type CreateComplaintInput struct {
	Title          string
	Description    string
	LocationCoords string
	Address        string
	Photos         []media.File
}

// CreateComplaint uploads any photos first and only then persists the
// complaint, so a failed upload leaves nothing behind.
func (s *Service) CreateComplaint(ctx context.Context, p Principal, input CreateComplaintInput) (store.Complaint, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Complaint{}, validationError("Title required")
	}
	if len(input.Photos) > MaxComplaintPhotos {
		return store.Complaint{}, validationError(fmt.Sprintf("At most %d photos are allowed", MaxComplaintPhotos))
	}

	photoURLs := make([]string, 0, len(input.Photos))
	for _, photo := range input.Photos {
		url, err := s.uploadPhoto(ctx, media.FolderComplaints, photo)
		if err != nil {
			return store.Complaint{}, err
		}
		photoURLs = append(photoURLs, url)
	}

	created, err := s.store.InsertComplaint(ctx, store.Complaint{
		ID:             util.NewID("cmp"),
		UserID:         p.UserID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Photos:         photoURLs,
		LocationCoords: strings.TrimSpace(input.LocationCoords),
		Address:        strings.TrimSpace(input.Address),
		Status:         StatusReceived,
	})
	if err != nil {
		return store.Complaint{}, err
	}

	metrics.ComplaintCreated()
	s.indexComplaint(created)
	return created, nil
}

func (s *Service) ListMyComplaints(ctx context.Context, p Principal) ([]store.Complaint, error) {
	return s.store.ListComplaints(ctx, store.ComplaintFilter{OwnerID: p.UserID})
}

func (s *Service) ListRecentComplaints(ctx context.Context, p Principal) ([]store.Complaint, error) {
	return s.listScoped(ctx, p, recentComplaintCap)
}

func (s *Service) ListComplaints(ctx context.Context, p Principal) ([]store.Complaint, error) {
	return s.listScoped(ctx, p, 0)
}

func (s *Service) listScoped(ctx context.Context, p Principal, limit int) ([]store.Complaint, error) {
	scope := rbac.ListingScope(p.subject())
	if scope.Nothing {
		return []store.Complaint{}, nil
	}
	return s.store.ListComplaints(ctx, store.ComplaintFilter{
		OwnerID:         scope.OwnerID,
		AddressContains: scope.AddressContains,
		Limit:           limit,
	})
}

// GetComplaint hides complaints outside the caller's view scope as not found.
func (s *Service) GetComplaint(ctx context.Context, p Principal, complaintID string) (store.Complaint, error) {
	item, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return store.Complaint{}, err
	}
	if !rbac.ViewScope(p.subject()).Allows(item.UserID, item.Address) {
		return store.Complaint{}, notFoundError("Complaint not found")
	}
	return item, nil
}

// loadListedComplaint loads a complaint the caller could find in the
// listings. Anything else reads as not found, as in GetComplaint.
func (s *Service) loadListedComplaint(ctx context.Context, p Principal, complaintID string) (store.Complaint, error) {
	item, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return store.Complaint{}, err
	}
	if !rbac.ListingScope(p.subject()).Allows(item.UserID, item.Address) {
		return store.Complaint{}, notFoundError("Complaint not found")
	}
	return item, nil
}

func (s *Service) loadComplaint(ctx context.Context, complaintID string) (store.Complaint, error) {
	item, err := s.store.GetComplaint(ctx, complaintID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Complaint{}, notFoundError("Complaint not found")
	}
	return item, err
}

// SearchComplaints matches title, description and address, restricted to
// what the caller could see in the listings. The area restriction goes to
// the index so it applies before the result limit.
func (s *Service) SearchComplaints(ctx context.Context, p Principal, text, status string, limit int) ([]store.Complaint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("q is required")
	}
	if status != "" && !validStatus(status) {
		return nil, validationError("Invalid status")
	}
	scope := rbac.ListingScope(p.subject())
	if scope.Nothing || s.index == nil {
		return []store.Complaint{}, nil
	}

	ids := s.index.Search(ctx, search.Query{
		Text:            text,
		Status:          status,
		Limit:           limit,
		AddressContains: scope.AddressContains,
	})
	items := make([]store.Complaint, 0, len(ids))
	for _, id := range ids {
		item, err := s.store.GetComplaint(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if scope.Allows(item.UserID, item.Address) {
			items = append(items, item)
		}
	}
	return items, nil
}

type UpdateComplaintInput struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Photos         *[]string `json:"photos"`
	LocationCoords *string   `json:"location_coords"`
	Address        *string   `json:"address"`
	Status         *string   `json:"status"`
	AssignedTo     *string   `json:"assigned_to"`
}

// UpdateComplaint replaces the provided content fields. Only the owner may
// call it; status and assignment change only when included and only for
// callers who may triage.
func (s *Service) UpdateComplaint(ctx context.Context, p Principal, complaintID string, input UpdateComplaintInput) (store.Complaint, error) {
	current, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return store.Complaint{}, err
	}
	if !rbac.CanEditComplaint(p.subject(), current.UserID) {
		return store.Complaint{}, forbiddenError("You can only edit your own complaints")
	}
	if (input.Status != nil || input.AssignedTo != nil) && !rbac.CanTriage(p.Role) {
		return store.Complaint{}, forbiddenError("Only volunteers and admins can change status or assignment")
	}
	if input.Status != nil && !validStatus(*input.Status) {
		return store.Complaint{}, validationError("Invalid status")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return store.Complaint{}, validationError("Title required")
	}
	if input.Photos != nil && len(*input.Photos) > MaxComplaintPhotos {
		return store.Complaint{}, validationError(fmt.Sprintf("At most %d photos are allowed", MaxComplaintPhotos))
	}

	patch := store.ComplaintPatch{
		Title:          trimmedPtr(input.Title),
		Description:    input.Description,
		Photos:         input.Photos,
		LocationCoords: input.LocationCoords,
		Address:        input.Address,
		Status:         input.Status,
		AssignedTo:     input.AssignedTo,
	}
	updated, err := s.store.UpdateComplaint(ctx, complaintID, patch)
	if errors.Is(err, store.ErrNotFound) {
		return store.Complaint{}, notFoundError("Complaint not found")
	}
	if err != nil {
		return store.Complaint{}, err
	}

	if input.Status != nil {
		s.recordStatusChange(ctx, p, current, updated.Status)
		s.notifyStatusChange(p, current, updated)
	}
	s.indexComplaint(updated)
	return updated, nil
}

// UpdateComplaintStatus is the triage operation for volunteers and admins.
// Volunteers may only triage complaints inside their area.
func (s *Service) UpdateComplaintStatus(ctx context.Context, p Principal, complaintID, status string, assignedTo *string) (store.Complaint, error) {
	if !rbac.CanTriage(p.Role) {
		return store.Complaint{}, forbiddenError("Only volunteers and admins can change status")
	}
	status = strings.TrimSpace(status)
	if !validStatus(status) {
		return store.Complaint{}, validationError("Invalid status")
	}

	current, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return store.Complaint{}, err
	}
	if !rbac.ListingScope(p.subject()).Allows(current.UserID, current.Address) {
		return store.Complaint{}, forbiddenError("Complaint is outside your area")
	}

	updated, err := s.store.UpdateComplaint(ctx, complaintID, store.ComplaintPatch{
		Status:     &status,
		AssignedTo: assignedTo,
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.Complaint{}, notFoundError("Complaint not found")
	}
	if err != nil {
		return store.Complaint{}, err
	}

	s.recordStatusChange(ctx, p, current, status)
	s.notifyStatusChange(p, current, updated)
	s.indexComplaint(updated)
	return updated, nil
}

// recordStatusChange logs both real transitions and no-op updates.
func (s *Service) recordStatusChange(ctx context.Context, p Principal, before store.Complaint, newStatus string) {
	var action string
	if before.Status != newStatus {
		action = fmt.Sprintf(`"%s" status updated from %s to %s`, before.Title, before.Status, newStatus)
	} else {
		action = fmt.Sprintf(`"%s" status unchanged (still %s)`, before.Title, newStatus)
	}
	metrics.StatusUpdated(before.Status, newStatus)
	s.recordLog(ctx, p.UserID, action)
}

// DeleteComplaint is owner only, admins included. Comments and votes go with it.
func (s *Service) DeleteComplaint(ctx context.Context, p Principal, complaintID string) error {
	current, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteComplaint(p.subject(), current.UserID) {
		return forbiddenError("You can only delete your own complaints")
	}
	if err := s.store.DeleteComplaint(ctx, complaintID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("Complaint not found")
		}
		return err
	}

	s.recordLog(ctx, p.UserID, fmt.Sprintf(`complaint_deleted: "%s" (%s) removed by '%s'`, current.Title, current.ID, p.actorLabel()))
	if s.index != nil {
		s.index.DeleteComplaint(complaintID)
	}
	return nil
}

// notifyStatusChange emails the owner in the background when someone else
// changed the status. Delivery failures are only logged.
func (s *Service) notifyStatusChange(p Principal, before, after store.Complaint) {
	if s.notifier == nil || before.Status == after.Status || after.UserID == p.UserID {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		owner, err := s.store.GetUserByID(ctx, after.UserID)
		if err != nil {
			s.logger.Warn("status notification: owner lookup failed", "complaint_id", after.ID, "error", err)
			return
		}
		err = s.notifier.SendStatusChange(owner.Email, email.StatusChangeData{
			UserName:   owner.Name,
			Title:      after.Title,
			OldStatus:  before.Status,
			NewStatus:  after.Status,
			AssignedTo: after.AssignedTo,
		})
		if err != nil {
			s.logger.Warn("status notification failed", "complaint_id", after.ID, "error", err)
		}
	}()
}

func (s *Service) indexComplaint(item store.Complaint) {
	if s.index == nil {
		return
	}
	s.index.IndexComplaint(search.ComplaintRecord{
		ID:          item.ID,
		UserID:      item.UserID,
		Title:       item.Title,
		Description: item.Description,
		Address:     item.Address,
		Status:      item.Status,
		CreatedAt:   item.CreatedAt.Unix(),
	})
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
