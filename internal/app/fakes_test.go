package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cleanstreet/api/internal/config"
	"cleanstreet/api/internal/email"
	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/search"
	"cleanstreet/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// fakeStore is an in-memory dataStore. The Fn hooks override single methods.
type fakeStore struct {
	mu sync.Mutex

	users      map[string]store.User
	complaints map[string]store.Complaint
	comments   map[string]store.Comment
	votes      map[string]store.Vote
	auditLogs  []store.AuditLog
	clock      time.Time

	pingFn           func(context.Context) error
	insertAuditLogFn func(context.Context, store.AuditLog) error
	getComplaintFn   func(context.Context, string) (store.Complaint, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[string]store.User{},
		complaints: map[string]store.Complaint{},
		comments:   map[string]store.Comment{},
		votes:      map[string]store.Vote{},
		clock:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func voteKey(userID, complaintID string) string {
	return userID + "|" + complaintID
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	now := f.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUsersByIDs(_ context.Context, ids []string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []store.User
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (f *fakeStore) ListUsers(context.Context) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, userID string, update store.ProfileUpdate) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.ProfilePhoto != nil {
		user.ProfilePhoto = *update.ProfilePhoto
	}
	user.UpdatedAt = f.tick()
	f.users[userID] = user
	return user, nil
}

func (f *fakeStore) UpdateUserRole(_ context.Context, userID, role string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = f.tick()
	f.users[userID] = user
	return user, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) InsertComplaint(_ context.Context, item store.Complaint) (store.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Photos == nil {
		item.Photos = []string{}
	}
	f.complaints[item.ID] = item
	return item, nil
}

func (f *fakeStore) GetComplaint(ctx context.Context, complaintID string) (store.Complaint, error) {
	if f.getComplaintFn != nil {
		return f.getComplaintFn(ctx, complaintID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.complaints[complaintID]
	if !ok {
		return store.Complaint{}, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) ListComplaints(_ context.Context, filter store.ComplaintFilter) ([]store.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Complaint{}
	for _, item := range f.complaints {
		if filter.OwnerID != "" && item.UserID != filter.OwnerID {
			continue
		}
		if filter.AddressContains != "" && !strings.Contains(strings.ToLower(item.Address), strings.ToLower(filter.AddressContains)) {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (f *fakeStore) UpdateComplaint(_ context.Context, complaintID string, patch store.ComplaintPatch) (store.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.complaints[complaintID]
	if !ok {
		return store.Complaint{}, store.ErrNotFound
	}
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Photos != nil {
		item.Photos = *patch.Photos
	}
	if patch.LocationCoords != nil {
		item.LocationCoords = *patch.LocationCoords
	}
	if patch.Address != nil {
		item.Address = *patch.Address
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		item.AssignedTo = *patch.AssignedTo
	}
	item.UpdatedAt = f.tick()
	f.complaints[complaintID] = item
	return item, nil
}

func (f *fakeStore) DeleteComplaint(_ context.Context, complaintID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.complaints[complaintID]; !ok {
		return store.ErrNotFound
	}
	delete(f.complaints, complaintID)
	for id, comment := range f.comments {
		if comment.ComplaintID == complaintID {
			delete(f.comments, id)
		}
	}
	for key, vote := range f.votes {
		if vote.ComplaintID == complaintID {
			delete(f.votes, key)
		}
	}
	return nil
}

func (f *fakeStore) InsertComment(_ context.Context, item store.Comment) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	item.CreatedAt, item.UpdatedAt = now, now
	item.Likes, item.Dislikes = []string{}, []string{}
	f.comments[item.ID] = item
	return item, nil
}

func (f *fakeStore) GetComment(_ context.Context, commentID string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comments[commentID]
	if !ok {
		return store.Comment{}, store.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) ListComments(_ context.Context, complaintID string) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Comment{}
	for _, item := range f.comments {
		if item.ComplaintID == complaintID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) ReactComment(_ context.Context, commentID, userID, reaction string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.comments[commentID]
	if !ok {
		return store.Comment{}, store.ErrNotFound
	}
	liked := containsID(item.Likes, userID)
	disliked := containsID(item.Dislikes, userID)
	item.Likes = withoutID(item.Likes, userID)
	item.Dislikes = withoutID(item.Dislikes, userID)
	switch {
	case reaction == ReactionLike && !liked:
		item.Likes = append(item.Likes, userID)
	case reaction == ReactionDislike && !disliked:
		item.Dislikes = append(item.Dislikes, userID)
	}
	f.comments[commentID] = item
	return item, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[commentID]; !ok {
		return store.ErrNotFound
	}
	pending := []string{commentID}
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		delete(f.comments, id)
		for childID, child := range f.comments {
			if child.ParentID == id {
				pending = append(pending, childID)
			}
		}
	}
	return nil
}

func (f *fakeStore) GetVote(_ context.Context, userID, complaintID string) (store.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vote, ok := f.votes[voteKey(userID, complaintID)]
	if !ok {
		return store.Vote{}, store.ErrNotFound
	}
	return vote, nil
}

func (f *fakeStore) UpsertVote(_ context.Context, vote store.Vote) (store.Vote, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := voteKey(vote.UserID, vote.ComplaintID)
	now := f.tick()
	existing, ok := f.votes[key]
	if ok {
		existing.VoteType = vote.VoteType
		existing.UpdatedAt = now
		f.votes[key] = existing
		return existing, false, nil
	}
	vote.CreatedAt, vote.UpdatedAt = now, now
	f.votes[key] = vote
	return vote, true, nil
}

func (f *fakeStore) DeleteVote(_ context.Context, userID, complaintID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.votes, voteKey(userID, complaintID))
	return nil
}

func (f *fakeStore) VoteSummary(_ context.Context, complaintID string) (store.VoteCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counts store.VoteCounts
	for _, vote := range f.votes {
		if vote.ComplaintID != complaintID {
			continue
		}
		switch vote.VoteType {
		case VoteUp:
			counts.Up++
		case VoteDown:
			counts.Down++
		}
	}
	return counts, nil
}

func (f *fakeStore) InsertAuditLog(ctx context.Context, entry store.AuditLog) error {
	if f.insertAuditLogFn != nil {
		return f.insertAuditLogFn(ctx, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.auditLogs) + 1)
	entry.Timestamp = f.tick()
	f.auditLogs = append(f.auditLogs, entry)
	return nil
}

func (f *fakeStore) ListAuditLogs(_ context.Context, limit int) ([]store.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.AuditLog, 0, len(f.auditLogs))
	for i := len(f.auditLogs) - 1; i >= 0; i-- {
		items = append(items, f.auditLogs[i])
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (f *fakeStore) voteCount(complaintID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, vote := range f.votes {
		if vote.ComplaintID == complaintID {
			n++
		}
	}
	return n
}

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, 0, len(f.auditLogs))
	for _, entry := range f.auditLogs {
		actions = append(actions, entry.Action)
	}
	return actions
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

type fakePhotos struct {
	mu       sync.Mutex
	uploads  []string
	uploadFn func(context.Context, string, media.File) (string, error)
}

func (f *fakePhotos) Upload(ctx context.Context, folder string, file media.File) (string, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, folder, file)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://cdn.test/" + media.ObjectName(folder, file.Name, time.Unix(int64(len(f.uploads)), 0), fmt.Sprintf("u%d", len(f.uploads)))
	f.uploads = append(f.uploads, url)
	return url, nil
}

// fakeIndex returns results as given. When records is set it behaves like a
// real backend instead: match, filter, then cut at q.Limit.
type fakeIndex struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
	results []string
	records []search.ComplaintRecord
	lastQ   search.Query
}

func (f *fakeIndex) Search(_ context.Context, q search.Query) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	if f.records == nil {
		return f.results
	}

	text := strings.ToLower(q.Text)
	ids := []string{}
	for _, rec := range f.records {
		if q.Limit > 0 && len(ids) == q.Limit {
			break
		}
		haystack := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.Address)
		if !strings.Contains(haystack, text) {
			continue
		}
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		if q.AddressContains != "" && !strings.Contains(strings.ToLower(rec.Address), strings.ToLower(q.AddressContains)) {
			continue
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func (f *fakeIndex) IndexComplaint(c search.ComplaintRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, c.ID)
}

func (f *fakeIndex) DeleteComplaint(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func (f *fakeRevocations) RevokeToken(_ context.Context, tokenID, _ string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[tokenID] = expiresAt
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[tokenID]
	return ok, nil
}

const testAdminCode = "letmein"

func newTestService(fs *fakeStore, opts ...Option) *Service {
	cfg := config.Config{
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		AdminSignupCode: testAdminCode,
	}
	svc := New(cfg, fs, opts...)
	svc.passwords.WithCost(bcrypt.MinCost)
	return svc
}

// seedUser stores a user directly, bypassing registration.
func seedUser(fs *fakeStore, id, name string, role rbac.Role, location string) Principal {
	user := store.User{
		ID:       id,
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Role:     string(role),
		Location: location,
	}
	if err := fs.CreateUser(context.Background(), user); err != nil {
		panic(err)
	}
	return Principal{UserID: id, Name: name, Email: user.Email, Role: role, Location: location}
}

func seedComplaint(fs *fakeStore, id, ownerID, title, address string) store.Complaint {
	item, err := fs.InsertComplaint(context.Background(), store.Complaint{
		ID:      id,
		UserID:  ownerID,
		Title:   title,
		Address: address,
		Status:  StatusReceived,
	})
	if err != nil {
		panic(err)
	}
	return item
}

var errBoom = errors.New("boom")

type sentNotification struct {
	to   string
	data email.StatusChangeData
}

type fakeNotifier struct {
	sent chan sentNotification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan sentNotification, 8)}
}

func (f *fakeNotifier) SendStatusChange(to string, data email.StatusChangeData) error {
	f.sent <- sentNotification{to: to, data: data}
	return nil
}
