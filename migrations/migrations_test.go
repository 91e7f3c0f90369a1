package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMigrationCreatesSchema(t *testing.T) {
	body, err := fs.ReadFile(FS, "00001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{
		"users", "refresh_tokens", "password_resets", "invitation_codes", "audit_logs",
		"classes", "class_students", "parent_links", "attendance_sessions", "attendance",
		"assignments", "submissions", "posts", "comments",
	} {
		assert.Contains(t, sql, "CREATE TABLE "+table+" (", table)
	}
	assert.Contains(t, sql, "ON attendance (student_id, session_id)")
	assert.Contains(t, sql, "UNIQUE (assignment_id, student_id)")
}
