package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, email, password_hash, role, location, phone, bio, profile_photo, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Location,
		&user.Phone,
		&user.Bio,
		&user.ProfilePhoto,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, location, phone)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Location, user.Phone)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, err
}

func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal user ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
	`, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	return collectUsers(rows)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			location = COALESCE($3, location),
			phone = COALESCE($4, phone),
			bio = COALESCE($5, bio),
			profile_photo = COALESCE($6, profile_photo),
			updated_at = NOW()
		WHERE id=$1
		RETURNING `+userColumns,
		userID, update.Name, update.Location, update.Phone, update.Bio, update.ProfilePhoto,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, err
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, userID, role string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET role=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+userColumns, userID, role))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("update user role: %w", err)
	}
	return user, err
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return requireAffected(result)
}

const complaintColumns = `id, user_id, title, description, photos, location_coords, address, assigned_to, status, created_at, updated_at`

func scanComplaint(row rowScanner) (Complaint, error) {
	var item Complaint
	var photosRaw []byte
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Description,
		&photosRaw,
		&item.LocationCoords,
		&item.Address,
		&item.AssignedTo,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Complaint{}, ErrNotFound
	}
	if err != nil {
		return Complaint{}, err
	}
	if item.Photos, err = decodeStrings(photosRaw); err != nil {
		return Complaint{}, fmt.Errorf("decode photos of complaint %s: %w", item.ID, err)
	}
	return item, nil
}

func (s *PostgresStore) InsertComplaint(ctx context.Context, item Complaint) (Complaint, error) {
	photos, err := encodeStrings(item.Photos)
	if err != nil {
		return Complaint{}, fmt.Errorf("marshal complaint photos: %w", err)
	}
	created, err := scanComplaint(s.db.QueryRowContext(ctx, `
		INSERT INTO complaints (id, user_id, title, description, photos, location_coords, address, assigned_to, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9)
		RETURNING `+complaintColumns,
		item.ID, item.UserID, item.Title, item.Description, photos, item.LocationCoords, item.Address, item.AssignedTo, item.Status,
	))
	if err != nil {
		return Complaint{}, fmt.Errorf("insert complaint: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetComplaint(ctx context.Context, complaintID string) (Complaint, error) {
	item, err := scanComplaint(s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=$1`, complaintID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Complaint{}, fmt.Errorf("get complaint: %w", err)
	}
	return item, err
}

// ListComplaints returns complaints newest first. AddressContains is a
// case-insensitive substring match, not a pattern.
func (s *PostgresStore) ListComplaints(ctx context.Context, filter ComplaintFilter) ([]Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR STRPOS(LOWER(address), LOWER($2)) > 0)
		ORDER BY created_at DESC, id DESC`
	args := []any{filter.OwnerID, filter.AddressContains}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	items := make([]Complaint, 0)
	for rows.Next() {
		item, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateComplaint(ctx context.Context, complaintID string, patch ComplaintPatch) (Complaint, error) {
	var photos *string
	if patch.Photos != nil {
		encoded, err := encodeStrings(*patch.Photos)
		if err != nil {
			return Complaint{}, fmt.Errorf("marshal complaint photos: %w", err)
		}
		photos = &encoded
	}
	item, err := scanComplaint(s.db.QueryRowContext(ctx, `
		UPDATE complaints SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			photos = COALESCE($4::jsonb, photos),
			location_coords = COALESCE($5, location_coords),
			address = COALESCE($6, address),
			status = COALESCE($7, status),
			assigned_to = COALESCE($8, assigned_to),
			updated_at = NOW()
		WHERE id=$1
		RETURNING `+complaintColumns,
		complaintID, patch.Title, patch.Description, photos, patch.LocationCoords, patch.Address, patch.Status, patch.AssignedTo,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Complaint{}, fmt.Errorf("update complaint: %w", err)
	}
	return item, err
}

func (s *PostgresStore) DeleteComplaint(ctx context.Context, complaintID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM complaints WHERE id=$1`, complaintID)
	if err != nil {
		return fmt.Errorf("delete complaint: %w", err)
	}
	return requireAffected(result)
}

const commentColumns = `id, user_id, complaint_id, COALESCE(parent_id, ''), content, photo_url, likes, dislikes, created_at, updated_at`

func scanComment(row rowScanner) (Comment, error) {
	var item Comment
	var likesRaw, dislikesRaw []byte
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ComplaintID,
		&item.ParentID,
		&item.Content,
		&item.PhotoURL,
		&likesRaw,
		&dislikesRaw,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	if item.Likes, err = decodeStrings(likesRaw); err != nil {
		return Comment{}, fmt.Errorf("decode likes of comment %s: %w", item.ID, err)
	}
	if item.Dislikes, err = decodeStrings(dislikesRaw); err != nil {
		return Comment{}, fmt.Errorf("decode dislikes of comment %s: %w", item.ID, err)
	}
	return item, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) (Comment, error) {
	created, err := scanComment(s.db.QueryRowContext(ctx, `
		INSERT INTO comments (id, user_id, complaint_id, parent_id, content, photo_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING `+commentColumns,
		item.ID, item.UserID, item.ComplaintID, item.ParentID, item.Content, item.PhotoURL,
	))
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	item, err := scanComment(s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return item, err
}

func (s *PostgresStore) ListComments(ctx context.Context, complaintID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE complaint_id=$1
		ORDER BY created_at ASC, id ASC
	`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ReactComment removes the user from both reaction sets and, unless the user
// already held the requested reaction, adds them to it. One statement, so the
// two sets never disagree.
func (s *PostgresStore) ReactComment(ctx context.Context, commentID, userID, reaction string) (Comment, error) {
	item, err := scanComment(s.db.QueryRowContext(ctx, `
		UPDATE comments SET
			likes = CASE
				WHEN $3::text = 'like' AND NOT (likes ? $2::text) THEN (likes - $2::text) || jsonb_build_array($2::text)
				ELSE likes - $2::text
			END,
			dislikes = CASE
				WHEN $3::text = 'dislike' AND NOT (dislikes ? $2::text) THEN (dislikes - $2::text) || jsonb_build_array($2::text)
				ELSE dislikes - $2::text
			END,
			updated_at = NOW()
		WHERE id=$1
		RETURNING `+commentColumns,
		commentID, userID, reaction,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Comment{}, fmt.Errorf("react comment: %w", err)
	}
	return item, err
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) GetVote(ctx context.Context, userID, complaintID string) (Vote, error) {
	var vote Vote
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, complaint_id, vote_type, created_at, updated_at
		FROM votes
		WHERE user_id=$1 AND complaint_id=$2
	`, userID, complaintID).Scan(&vote.ID, &vote.UserID, &vote.ComplaintID, &vote.VoteType, &vote.CreatedAt, &vote.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Vote{}, ErrNotFound
	}
	if err != nil {
		return Vote{}, fmt.Errorf("lookup vote: %w", err)
	}
	return vote, nil
}

// UpsertVote writes the vote under the (user_id, complaint_id) constraint.
// created reports whether a new row was inserted.
func (s *PostgresStore) UpsertVote(ctx context.Context, vote Vote) (Vote, bool, error) {
	var saved Vote
	var created bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO votes (id, user_id, complaint_id, vote_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, complaint_id)
		DO UPDATE SET vote_type=EXCLUDED.vote_type, updated_at=NOW()
		RETURNING id, user_id, complaint_id, vote_type, created_at, updated_at, (xmax = 0) AS inserted
	`, vote.ID, vote.UserID, vote.ComplaintID, vote.VoteType).Scan(
		&saved.ID, &saved.UserID, &saved.ComplaintID, &saved.VoteType, &saved.CreatedAt, &saved.UpdatedAt, &created,
	)
	if err != nil {
		return Vote{}, false, fmt.Errorf("upsert vote: %w", err)
	}
	return saved, created, nil
}

func (s *PostgresStore) DeleteVote(ctx context.Context, userID, complaintID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE user_id=$1 AND complaint_id=$2`, userID, complaintID); err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) VoteSummary(ctx context.Context, complaintID string) (VoteCounts, error) {
	var counts VoteCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE vote_type='up'),
			COUNT(*) FILTER (WHERE vote_type='down')
		FROM votes
		WHERE complaint_id=$1
	`, complaintID).Scan(&counts.Up, &counts.Down)
	if err != nil {
		return VoteCounts{}, fmt.Errorf("summarize votes: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry AuditLog) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO admin_logs (user_id, action) VALUES ($1, $2)`, entry.UserID, entry.Action); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, timestamp
		FROM admin_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	items := make([]AuditLog, 0)
	for rows.Next() {
		var item AuditLog
		if err := rows.Scan(&item.ID, &item.UserID, &item.Action, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return items, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// decodeStrings reads a JSONB string array. NULL decodes to an empty list.
func decodeStrings(raw []byte) ([]string, error) {
	values := []string{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
