package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/claudecode/internal/session"
)

func setupTestStore(t testing.TB) session.Store {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })
	return db.SessionStore()
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_123)

	err := store.Create(ctx, &session.Record{
		GUID: "g1", Project: "/repo", Model: "sonnet", Title: "hello", CreatedAt: created,
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "/repo", rec.Project)
	require.Equal(t, "sonnet", rec.Model)
	require.Equal(t, "hello", rec.Title)
	require.True(t, created.Equal(rec.CreatedAt), "millisecond precision survives the round trip")
	require.True(t, created.Equal(rec.UpdatedAt), "UpdatedAt defaults to CreatedAt")
	require.Empty(t, rec.Turns)
	require.Empty(t, rec.LastSessionID)
}

func TestSessionStore_DuplicateGUID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &session.Record{GUID: "dup"}))
	require.Error(t, store.Create(ctx, &session.Record{GUID: "dup"}))
}

func TestSessionStore_AppendTurn(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &session.Record{GUID: "g1"}))

	first := &session.Turn{Prompt: "q1", Response: "a1", SessionID: "s1", CostUSD: 0.5, DurationMs: 120}
	require.NoError(t, store.AppendTurn(ctx, "g1", first))
	require.Equal(t, 1, first.Seq)

	second := &session.Turn{Prompt: "q2", Response: "a2", Streamed: true}
	require.NoError(t, store.AppendTurn(ctx, "g1", second))
	require.Equal(t, 2, second.Seq)

	rec, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 2, rec.TurnCount)
	require.Equal(t, "s1", rec.LastSessionID, "a turn without a session id keeps the previous one")
	require.Len(t, rec.Turns, 2)
	require.Equal(t, "a1", rec.Turns[0].Response)
	require.InDelta(t, 0.5, rec.Turns[0].CostUSD, 1e-9)
	require.Equal(t, int64(120), rec.Turns[0].DurationMs)
	require.True(t, rec.Turns[1].Streamed)
	require.False(t, rec.Turns[0].Streamed)
}

func TestSessionStore_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var nf *session.NotFoundError

	_, err := store.Get(ctx, "missing")
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "missing", nf.GUID)

	err = store.AppendTurn(ctx, "missing", &session.Turn{Prompt: "x"})
	require.True(t, errors.As(err, &nf))

	err = store.Delete(ctx, "missing")
	require.True(t, errors.As(err, &nf))
}

func TestSessionStore_DeleteCascadesTurns(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	store := db.SessionStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &session.Record{GUID: "g1"}))
	require.NoError(t, store.AppendTurn(ctx, "g1", &session.Turn{Prompt: "p"}))
	require.NoError(t, store.Delete(ctx, "g1"))

	var n int
	require.NoError(t, db.conn.QueryRow("SELECT COUNT(*) FROM turns").Scan(&n))
	require.Zero(t, n, "turns are removed with their conversation")
}

func TestSessionStore_ListOrderAndFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_000_000)

	for i, project := range []string{"/a", "/b", "/a", "/a"} {
		require.NoError(t, store.Create(ctx, &session.Record{
			GUID:      fmt.Sprintf("g%d", i),
			Project:   project,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.List(ctx, session.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "g3", all[0].GUID, "newest first")
	require.Equal(t, "g0", all[3].GUID)

	onlyA, err := store.List(ctx, session.ListFilter{Project: "/a", Limit: 2})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	require.Equal(t, "g3", onlyA[0].GUID)
	require.Equal(t, "g2", onlyA[1].GUID)
}

// TestSessionStore_SequenceProperty checks that turn sequence numbers stay
// dense and ordered for any interleaving of appends across conversations.
func TestSessionStore_SequenceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := setupTestStore(t)
		ctx := context.Background()

		guids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{4,8}`), 1, 4, rapid.ID[string]).Draw(rt, "guids")
		for _, g := range guids {
			require.NoError(rt, store.Create(ctx, &session.Record{GUID: g}))
		}

		want := map[string][]string{}
		appends := rapid.IntRange(0, 20).Draw(rt, "appends")
		for i := 0; i < appends; i++ {
			g := rapid.SampledFrom(guids).Draw(rt, "guid")
			prompt := fmt.Sprintf("p%d", i)
			require.NoError(rt, store.AppendTurn(ctx, g, &session.Turn{Prompt: prompt}))
			want[g] = append(want[g], prompt)
		}

		for _, g := range guids {
			rec, err := store.Get(ctx, g)
			require.NoError(rt, err)
			require.Equal(rt, len(want[g]), rec.TurnCount)
			require.Len(rt, rec.Turns, len(want[g]))
			for i, turn := range rec.Turns {
				require.Equal(rt, i+1, turn.Seq)
				require.Equal(rt, want[g][i], turn.Prompt)
			}
		}
	})
}
