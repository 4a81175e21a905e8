package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/generation"
)

func TestGate(t *testing.T) {
	g := NewGate("banana")
	assert.False(t, g.Open())
	assert.NoError(t, g.Verify("banana"))
	assert.ErrorIs(t, g.Verify("Banana"), appErrors.ErrInvalidPassphrase)
	assert.ErrorIs(t, g.Verify(""), appErrors.ErrInvalidPassphrase)

	open := NewGate("")
	assert.True(t, open.Open())
	assert.NoError(t, open.Verify("anything"))
}

func TestSession_ClearKeepsVerification(t *testing.T) {
	s := New()
	s.Verified = true
	s.Topic = "Spring"
	s.Items = []generation.Result{{Topic: "Spring", Caption: "c"}}
	s.Flash = "Saved"

	s.Clear()

	assert.True(t, s.Verified)
	assert.Empty(t, s.Items)
	assert.Empty(t, s.Topic)
	assert.Empty(t, s.TakeFlash())
}

func TestSession_TakeFlash(t *testing.T) {
	s := New()
	s.Flash = "Saved to vault"
	assert.Equal(t, "Saved to vault", s.TakeFlash())
	assert.Empty(t, s.TakeFlash())
}

func TestMemoryStore_RoundTripAndIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	s := New()
	s.Verified = true
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	got.Verified = false
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, again.Verified, "mutating a loaded session must not leak without Save")

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestMemoryStore_ItemsNotShared(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	s := New()
	s.Items = []generation.Result{{Topic: "Spring", Caption: "original"}}
	require.NoError(t, store.Save(ctx, s))

	s.Items[0].Caption = "edited after save"

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Items[0].Caption)

	got.Items[0].Caption = "edited after get"
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Items[0].Caption)
}

func TestSession_RenewKeepsWorkUnderNewID(t *testing.T) {
	s := New()
	s.Topic = "Spring"
	s.Items = []generation.Result{{Topic: "Spring", Caption: "c"}}
	s.Flash = "Saved"

	n := s.Renew()

	assert.NotEqual(t, s.ID, n.ID)
	assert.Equal(t, "Spring", n.Topic)
	assert.Equal(t, "Saved", n.Flash)
	require.Len(t, n.Items, 1)
	n.Items[0].Caption = "changed"
	assert.Equal(t, "c", s.Items[0].Caption)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.clock = func() time.Time { return now }

	s := New()
	require.NoError(t, store.Save(ctx, s))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestSession_JSONKeepsFailureText(t *testing.T) {
	s := New()
	s.Items = []generation.Result{{Topic: "x", Caption: "Gen Error: boom", Error: "boom"}}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var back Session
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back.Items, 1)
	assert.True(t, back.Items[0].Failed())
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "studio:session:abc", buildKey("abc"))
}
