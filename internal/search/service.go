package search

import (
	"context"
	"log/slog"
	"strings"
)

// Service is the facade that tries Meilisearch first and falls back to Postgres.
type Service struct {
	meili    *Meili
	fallback *PgFallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback *PgFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search returns matching complaint ids. Errors are logged and yield no results.
func (s *Service) Search(ctx context.Context, q Query) []string {
	if s.useMeili(q) {
		ids, err := s.meili.Search(q)
		if err == nil {
			return nonNil(ids)
		}
		slog.Warn("search: meilisearch error, falling back to postgres", "error", err)
	}

	if s.fallback == nil {
		return []string{}
	}
	ids, err := s.fallback.Search(ctx, q)
	if err != nil {
		slog.Error("search: postgres fallback error", "error", err)
		return []string{}
	}
	return nonNil(ids)
}

// useMeili reports whether q can go to Meilisearch. The index cannot filter
// on address substrings, so area-restricted queries stay in Postgres where
// the restriction is applied before the limit.
func (s *Service) useMeili(q Query) bool {
	return s.meili != nil && s.meili.Healthy() && strings.TrimSpace(q.AddressContains) == ""
}

// IndexComplaint indexes a complaint (fire-and-forget to Meilisearch).
func (s *Service) IndexComplaint(c ComplaintRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComplaint(c); err != nil {
			slog.Warn("search: index complaint", "complaint_id", c.ID, "error", err)
		}
	}()
}

// DeleteComplaint removes a complaint from the search index (fire-and-forget).
func (s *Service) DeleteComplaint(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteComplaint(id); err != nil {
			slog.Warn("search: delete complaint", "complaint_id", id, "error", err)
		}
	}()
}

// ReindexAll pushes every complaint from Postgres into Meilisearch.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fallback == nil {
		return
	}
	items, err := s.fallback.LoadAllRecords(ctx)
	if err != nil {
		slog.Warn("search: reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexComplaints(items); err != nil {
		slog.Warn("search: reindex complaints", "error", err)
		return
	}
	slog.Info("search: reindexed complaints", "count", len(items))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
