package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(Options{HomeDir: t.TempDir()})
}

func TestStore_GetCreatesWithDefaults(t *testing.T) {
	home := t.TempDir()
	store := NewStore(Options{HomeDir: home})

	sess, err := store.Get("tab-1")
	require.NoError(t, err)

	assert.Equal(t, "tab-1", sess.ID)
	assert.Equal(t, home, sess.CurrentPath)
	assert.Empty(t, sess.CommandHistory)
	assert.Empty(t, sess.OutputHistory)
	assert.Nil(t, sess.ActiveProcess)
	assert.Equal(t, 1, store.Len())
}

func TestStore_AppendHistoryKeepsLastN(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("s")
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, store.AppendHistory("s", fmt.Sprintf("cmd-%d", i), fmt.Sprintf("out-%d", i)))

		sess, err := store.Get("s")
		require.NoError(t, err)
		assert.Equal(t, len(sess.CommandHistory), len(sess.OutputHistory))
		assert.LessOrEqual(t, len(sess.CommandHistory), DefaultMaxHistory)
	}

	sess, _ := store.Get("s")
	assert.Equal(t, []string{"cmd-3", "cmd-4", "cmd-5", "cmd-6", "cmd-7"}, sess.CommandHistory)
	assert.Equal(t, []string{"out-3", "out-4", "out-5", "out-6", "out-7"}, sess.OutputHistory)
}

func TestStore_AppendHistoryTruncatesOutput(t *testing.T) {
	store := newTestStore(t)
	_, _ = store.Get("s")

	require.NoError(t, store.AppendHistory("s", "cat big", strings.Repeat("x", 500)))

	sess, _ := store.Get("s")
	out := sess.OutputHistory[0]
	assert.Equal(t, MaxStoredOutput, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
}

func TestStore_UnknownSessionIsNotResurrected(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendHistory("gone", "ls", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	err = store.SetPath("gone", "/tmp")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestStore_SetPath(t *testing.T) {
	store := newTestStore(t)
	_, _ = store.Get("s")

	require.NoError(t, store.SetPath("s", "/tmp"))
	sess, _ := store.Get("s")
	assert.Equal(t, "/tmp", sess.CurrentPath)
}

func TestStore_ActiveProcessSlot(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.TrySetActiveProcess("s", ActiveProcess{ID: "p1", Command: "top"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TrySetActiveProcess("s", ActiveProcess{ID: "p2", Command: "ls"})
	require.NoError(t, err)
	assert.False(t, ok, "second process must not take an occupied slot")

	store.ClearActiveProcess("s", "p2")
	sess, _ := store.Get("s")
	require.NotNil(t, sess.ActiveProcess)
	assert.Equal(t, "p1", sess.ActiveProcess.ID)

	store.ClearActiveProcess("s", "p1")
	ok, _ = store.TrySetActiveProcess("s", ActiveProcess{ID: "p3"})
	assert.True(t, ok)
}

func TestStore_ConcurrentAcquireHasOneWinner(t *testing.T) {
	store := newTestStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := store.TrySetActiveProcess("s", ActiveProcess{ID: fmt.Sprintf("p%d", i)})
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestStore_MaxSessions(t *testing.T) {
	store := NewStore(Options{HomeDir: t.TempDir(), MaxSessions: 2})

	_, err := store.Get("a")
	require.NoError(t, err)
	_, err = store.Get("b")
	require.NoError(t, err)
	_, err = store.Get("c")
	assert.ErrorIs(t, err, ErrTooManySessions)

	// Existing sessions stay reachable.
	_, err = store.Get("a")
	assert.NoError(t, err)

	store.Remove("a")
	_, err = store.Get("c")
	assert.NoError(t, err)
}

func TestStore_SnapshotIsReadOnly(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, store.Len(), "snapshot must not create sessions")

	_, _ = store.Get("s")
	require.NoError(t, store.AppendHistory("s", "ls", "a.txt\nb.txt"))

	snap, err := store.Snapshot("s")
	require.NoError(t, err)
	assert.Equal(t, []string{"ls"}, snap.CommandHistory)
	assert.Equal(t, []string{"a.txt\nb.txt"}, snap.OutputHistory)
	assert.Equal(t, DefaultMaxHistory, snap.MaxHistory)

	snap.CommandHistory[0] = "mutated"
	again, _ := store.Snapshot("s")
	assert.Equal(t, "ls", again.CommandHistory[0])
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdefghij", 6, "abc..."},
		{"multibyte", "日本語テキスト", 5, "日本..."},
		{"no limit", "abc", 0, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestStore_EvictIdle(t *testing.T) {
	store := NewStore(Options{HomeDir: t.TempDir(), MaxSessions: 3})

	for _, id := range []string{"idle", "busy", "fresh"} {
		_, err := store.Get(id)
		require.NoError(t, err)
	}
	ok, err := store.TrySetActiveProcess("busy", ActiveProcess{ID: "p1"})
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, err = store.Get("fresh")
	require.NoError(t, err)

	evicted := store.EvictIdle(20 * time.Millisecond)
	assert.Equal(t, []string{"idle"}, evicted)
	assert.Equal(t, 2, store.Len())

	_, err = store.Snapshot("idle")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Snapshot("busy")
	assert.NoError(t, err, "sessions with a running process are kept")

	// The freed slot is available to a new tab.
	_, err = store.Get("new-tab")
	assert.NoError(t, err)
}

func TestStore_EvictedSessionIsRecreatedOnUse(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("s1")
	require.NoError(t, err)
	require.NoError(t, store.AppendHistory("s1", "ls", "a.txt"))

	time.Sleep(20 * time.Millisecond)
	require.Len(t, store.EvictIdle(10*time.Millisecond), 1)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.CommandHistory, "an evicted session starts over")
}

func TestStore_RunJanitor(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.RunJanitor(ctx, 5*time.Millisecond, 10*time.Millisecond)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
