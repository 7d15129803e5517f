package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxComplaints = "cleanstreet_complaints"

// Meili searches complaints in a Meilisearch index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the complaints index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		slog.Warn("search: meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxComplaints,
		PrimaryKey: "id",
	}); err != nil {
		slog.Debug("search: create index (may already exist)", "index", idxComplaints, "error", err)
	}

	index := m.client.Index(idxComplaints)
	filterable := []interface{}{"status", "userId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		slog.Warn("search: update filterable attrs", "index", idxComplaints, "error", err)
	}
	searchable := []string{"title", "description", "address"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		slog.Warn("search: update searchable attrs", "index", idxComplaints, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				slog.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	req := &meili.SearchRequest{
		Limit: int64(normalizeLimit(q.Limit)),
	}
	if q.Status != "" {
		req.Filter = fmt.Sprintf("status = %q", q.Status)
	}

	resp, err := m.client.Index(idxComplaints).Search(q.Text, req)
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexComplaint adds or updates a complaint in the search index.
func (m *Meili) IndexComplaint(c ComplaintRecord) error {
	_, err := m.client.Index(idxComplaints).AddDocuments([]ComplaintRecord{c}, nil)
	return err
}

// IndexComplaints bulk-indexes complaints.
func (m *Meili) IndexComplaints(items []ComplaintRecord) error {
	if len(items) == 0 {
		return nil
	}
	_, err := m.client.Index(idxComplaints).AddDocuments(items, nil)
	return err
}

// DeleteComplaint removes a complaint from the search index.
func (m *Meili) DeleteComplaint(id string) error {
	_, err := m.client.Index(idxComplaints).DeleteDocument(id, nil)
	return err
}
