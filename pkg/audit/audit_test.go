package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeterm/kubeterm/pkg/ticket"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	r, err := Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func TestTicketIssued(t *testing.T) {
	r := openTestRecorder(t)

	now := time.Now()
	err := r.TicketIssued(context.Background(), &ticket.Ticket{
		Value:     "abc123",
		Action:    ticket.ActionExec,
		Namespace: "default",
		Pod:       "web-0",
		Container: "app",
		IssuedAt:  now,
		ExpiresAt: now.Add(30 * time.Second),
	})
	require.NoError(t, err)

	var count int
	err = r.db.QueryRow(`SELECT COUNT(*) FROM tickets WHERE value = ?`, "abc123").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionLifecycle(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	require.NoError(t, r.SessionStarted(ctx, Session{
		ID:         "sess-1",
		Action:     "exec",
		Namespace:  "default",
		Pod:        "web-0",
		Container:  "app",
		RemoteAddr: "10.0.0.5:41234",
		StartedAt:  started,
	}))

	require.NoError(t, r.SessionEnded(ctx, "sess-1", "client closed", time.Now()))

	sessions, err := r.RecentSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "exec", got.Action)
	assert.Equal(t, "client closed", got.CloseReason)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.After(got.StartedAt))
}

func TestRecentSessionsOrderAndLimit(t *testing.T) {
	r := openTestRecorder(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.SessionStarted(ctx, Session{
			ID:        id,
			Action:    "exec",
			Namespace: "default",
			Pod:       "web-0",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := r.RecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "c", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder

	assert.NoError(t, r.TicketIssued(context.Background(), &ticket.Ticket{}))
	assert.NoError(t, r.SessionStarted(context.Background(), Session{}))
	assert.NoError(t, r.SessionEnded(context.Background(), "x", "", time.Now()))
	assert.NoError(t, r.Close())
}
