package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationsDir() string {
	return filepath.Join("..", "..", "db", "migrations")
}

func TestEveryUpMigrationHasDownMigration(t *testing.T) {
	ups, err := listMigrations(migrationsDir(), "up")
	require.NoError(t, err)
	downs, err := listMigrations(migrationsDir(), "down")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
	for i := range ups {
		assert.Equal(t, ups[i].version, downs[i].version)
		assert.Equal(t,
			strings.TrimSuffix(ups[i].name, ".up.sql"),
			strings.TrimSuffix(downs[i].name, ".down.sql"),
		)
	}
}

func TestListMigrationsSortsByVersionAndSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "README.md", "notes.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	files, err := listMigrations(dir, "up")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "0001_a.up.sql", files[0].name)
	assert.Equal(t, "0002_b.up.sql", files[1].name)
}

func TestInitMigrationDeclaresConstraints(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(migrationsDir(), "0001_init.up.sql"))
	require.NoError(t, err)
	sql := string(contents)

	assert.Contains(t, sql, "CHECK (role IN ('user', 'volunteer', 'admin'))")
	assert.Contains(t, sql, "CHECK (status IN ('received', 'in_review', 'resolved'))")
	assert.Contains(t, sql, "CHECK (vote_type IN ('up', 'down'))")
	assert.Contains(t, sql, "UNIQUE (user_id, complaint_id)")
	assert.Contains(t, sql, "ON users (LOWER(email))")
}

func TestAdminLogsImmutabilityMigrationBlocksUpdateAndDelete(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join(migrationsDir(), "0002_admin_logs_immutability_trigger.up.sql"))
	require.NoError(t, err)
	sql := string(contents)

	assert.Contains(t, sql, "BEFORE UPDATE ON admin_logs")
	assert.Contains(t, sql, "BEFORE DELETE ON admin_logs")
	assert.Contains(t, sql, "RAISE EXCEPTION")

	down, err := os.ReadFile(filepath.Join(migrationsDir(), "0002_admin_logs_immutability_trigger.down.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TRIGGER IF EXISTS trg_admin_logs_block_update")
	assert.Contains(t, string(down), "DROP TRIGGER IF EXISTS trg_admin_logs_block_delete")
}

func TestStringListEncoding(t *testing.T) {
	encoded, err := encodeStrings(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)

	encoded, err = encodeStrings([]string{"a", "b"})
	require.NoError(t, err)
	decoded, err := decodeStrings([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, decoded)

	decoded, err = decodeStrings(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, decoded)

	decoded, err = decodeStrings([]byte("null"))
	require.NoError(t, err)
	assert.Equal(t, []string{}, decoded)
}

func TestDecodeStringsRejectsCorruptJSON(t *testing.T) {
	for _, raw := range []string{`{"a":1}`, `[1,2]`, `["unterminated`} {
		_, err := decodeStrings([]byte(raw))
		assert.Error(t, err, "raw %s", raw)
	}
}

func TestScanComplaintReportsCorruptPhotos(t *testing.T) {
	row := fakeRow{values: []any{"cmp_1", "usr_1", "Pothole", "", []byte("not json"), "", "", "", "received", time.Now(), time.Now()}}
	_, err := scanComplaint(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode photos of complaint cmp_1")
}

func TestScanCommentReportsCorruptReactions(t *testing.T) {
	row := fakeRow{values: []any{"cmt_1", "usr_1", "cmp_1", "", "hi", "", []byte(`["usr_2"]`), []byte("{"), time.Now(), time.Now()}}
	_, err := scanComment(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode dislikes of comment cmt_1")
}

// fakeRow feeds fixed values to a scan function.
type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch target := d.(type) {
		case *string:
			*target = r.values[i].(string)
		case *[]byte:
			*target = r.values[i].([]byte)
		case *time.Time:
			*target = r.values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}
