package app

import (
	"context"
	"time"

	"cleanstreet/api/internal/metrics"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/store"
)

const (
	auditListCap   = 200
	auditRecentCap = 25
)

// recordLog appends an audit entry. Failures are logged and swallowed so the
// operation being audited never fails because of it.
func (s *Service) recordLog(ctx context.Context, userID, action string) {
	if err := s.store.InsertAuditLog(ctx, store.AuditLog{UserID: userID, Action: action}); err != nil {
		metrics.AuditWriteFailed()
		s.logger.Warn("audit log write failed", "user_id", userID, "action", action, "error", err)
	}
}

type AuditActor struct {
	ID    string
	Name  string
	Email string
}

type AuditEntry struct {
	ID        int64
	UserID    string
	Action    string
	Timestamp time.Time
	Actor     *AuditActor
}

// ListAuditLogs returns the newest entries first. Admin only.
func (s *Service) ListAuditLogs(ctx context.Context, p Principal) ([]AuditEntry, error) {
	if !rbac.Can(p.Role, rbac.ActionViewAudit) {
		return nil, forbiddenError("Admin access required")
	}
	logs, err := s.store.ListAuditLogs(ctx, auditListCap)
	if err != nil {
		return nil, err
	}
	items := make([]AuditEntry, 0, len(logs))
	for _, entry := range logs {
		items = append(items, AuditEntry{ID: entry.ID, UserID: entry.UserID, Action: entry.Action, Timestamp: entry.Timestamp})
	}
	return items, nil
}

// RecentAuditLogs is the activity feed shown to every signed-in user. Each
// entry carries its actor, or a nil actor when that user no longer exists.
func (s *Service) RecentAuditLogs(ctx context.Context, p Principal) ([]AuditEntry, error) {
	logs, err := s.store.ListAuditLogs(ctx, auditRecentCap)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(logs))
	seen := make(map[string]struct{}, len(logs))
	for _, entry := range logs {
		if _, ok := seen[entry.UserID]; ok {
			continue
		}
		seen[entry.UserID] = struct{}{}
		ids = append(ids, entry.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	items := make([]AuditEntry, 0, len(logs))
	for _, entry := range logs {
		item := AuditEntry{ID: entry.ID, UserID: entry.UserID, Action: entry.Action, Timestamp: entry.Timestamp}
		if user, ok := byID[entry.UserID]; ok {
			item.Actor = &AuditActor{ID: user.ID, Name: user.Name, Email: user.Email}
		}
		items = append(items, item)
	}
	return items, nil
}
