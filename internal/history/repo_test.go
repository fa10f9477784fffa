package history

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			approval_id TEXT NOT NULL,
			actor_email TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	require.NoError(t, err)
	return db
}

func TestRecordAndList(t *testing.T) {
	repo := NewRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()

	entries := []Entry{
		{ApprovalID: "rec1", ActorEmail: "dana@example.com", Action: "REJECT", Outcome: OutcomeCommitted, Reason: "חסרה חשבונית"},
		{ApprovalID: "rec1", ActorEmail: "dana@example.com", Action: "APPROVE", Outcome: OutcomeFailed, Reason: "RATE_LIMIT_REACHED"},
		{ApprovalID: "rec2", ActorEmail: "noa@example.com", Action: "DELAY", Outcome: OutcomeCommitted, Reason: "ממתינים לתקציב"},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Record(ctx, entry))
	}

	got, err := repo.ListByApproval(ctx, "rec1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "only rec1 entries")

	for _, entry := range got {
		assert.Equal(t, "rec1", entry.ApprovalID)
		assert.NotZero(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	}
}

func TestListByApproval_Limit(t *testing.T) {
	repo := NewRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, Entry{
			ApprovalID: "rec1",
			ActorEmail: "dana@example.com",
			Action:     "DELAY",
			Outcome:    OutcomeCommitted,
		}))
	}

	got, err := repo.ListByApproval(ctx, "rec1", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListByApproval_Empty(t *testing.T) {
	repo := NewRepository(setupDB(t), zap.NewNop())

	got, err := repo.ListByApproval(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
