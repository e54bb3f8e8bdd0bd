package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"turbolearn/internal/auth"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.False(t, found)

	u := auth.User{ID: "u1", Role: auth.RoleUser, Status: auth.StatusPending, CreatedAt: time.Unix(1, 0).UTC()}
	require.NoError(t, s.PutUser(ctx, u))

	got, found, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, u, got)

	require.Error(t, s.PutUser(ctx, auth.User{}), "empty id must be rejected")

	u.Status = auth.StatusApproved
	require.NoError(t, s.PutUser(ctx, u))
	got, _, _ = s.GetUser(ctx, "u1")
	require.Equal(t, auth.StatusApproved, got.Status)
}

func TestListUsersOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.PutUser(ctx, auth.User{ID: id, CreatedAt: time.Unix(int64(10-i), 0)}))
	}
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "b", users[0].ID, "oldest first")
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(100, 0).UTC()

	sess, err := s.CreateSession("u1", "What is 2+2?", now)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, found, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sess, got)

	later, err := s.CreateSession("u1", "second", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = s.CreateSession("u2", "other user", now)
	require.NoError(t, err)

	sessions, err := s.SessionsByUser("u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, later.ID, sessions[0].ID, "newest first")
}

func TestTurnsAppendOrderAndProviderFilter(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(100, 0).UTC()
	sess, err := s.CreateSession("u1", "t", now)
	require.NoError(t, err)

	for i, tc := range []struct{ role, content, provider string }{
		{"user", "q1", "google"},
		{"user", "q1", "groq"},
		{"assistant", "a1-google", "google"},
		{"assistant", "a1-groq", "groq"},
	} {
		_, err := s.AppendTurn(Turn{SessionID: sess.ID, Role: tc.role, Content: tc.content, Provider: tc.provider, CreatedAt: now.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	all, err := s.TurnsBySession(sess.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "q1", all[0].Content)

	googleOnly, err := s.TurnsBySession(sess.ID, "google")
	require.NoError(t, err)
	require.Len(t, googleOnly, 2)
	require.Equal(t, "a1-google", googleOnly[1].Content)

	groqOnly, err := s.TurnsBySession(sess.ID, "groq")
	require.NoError(t, err)
	require.Len(t, groqOnly, 2)
	require.Equal(t, "a1-groq", groqOnly[1].Content)
}

func TestAppendTurnRequiresSession(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AppendTurn(Turn{Role: "user", Content: "x"})
	require.Error(t, err)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(100, 0).UTC()
	keep, err := s.CreateSession("u1", "keep", now)
	require.NoError(t, err)
	drop, err := s.CreateSession("u1", "drop", now)
	require.NoError(t, err)

	for _, sessID := range []string{keep.ID, drop.ID} {
		for i := 0; i < 3; i++ {
			_, err := s.AppendTurn(Turn{SessionID: sessID, Role: "user", Content: "x", Provider: "google", CreatedAt: now})
			require.NoError(t, err)
		}
	}

	require.NoError(t, s.DeleteSession(drop.ID))

	_, found, err := s.GetSession(drop.ID)
	require.NoError(t, err)
	require.False(t, found)

	gone, err := s.TurnsBySession(drop.ID, "")
	require.NoError(t, err)
	require.Empty(t, gone)

	kept, err := s.TurnsBySession(keep.ID, "")
	require.NoError(t, err)
	require.Len(t, kept, 3, "sibling session must be untouched")
}
