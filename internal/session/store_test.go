package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lukman83/autopost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Load("alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	state := models.SessionState{
		Cookies: []models.Cookie{
			{Name: "AFATK", Value: "tok-1", Domain: ".coupang.com", Path: "/"},
			{Name: "PCID", Value: "abc", Domain: ".coupang.com", Path: "/"},
		},
		AuthToken: "tok-1",
	}

	require.NoError(t, s.Save("alice", state))

	got, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, state.Cookies, got.Cookies)
	assert.Equal(t, "tok-1", got.AuthToken)
}

func TestStore_TokenSharedAcrossAccounts(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("alice", models.SessionState{Cookies: []models.Cookie{{Name: "PCID", Value: "1"}}}))
	require.NoError(t, s.SaveToken("shared"))

	got, err := s.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "shared", got.AuthToken)

	_, hasToken := got.Cookie("AFATK")
	assert.False(t, hasToken)
}

func TestStore_AccountFileNameIsSanitized(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Save("kakao:bob", models.SessionState{}))

	_, err := os.Stat(filepath.Join(dir, "cookies_kakao_bob.json"))
	assert.NoError(t, err)
}

func TestStore_Invalidate(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("alice", models.SessionState{}))

	require.NoError(t, s.Invalidate("alice"))
	_, err := s.Load("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Invalidate("alice"), "invalidating twice is not an error")
}

func TestStore_TrackAccountSwitch(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("alice", models.SessionState{}))

	prev, switched, err := s.Track("alice")
	require.NoError(t, err)
	assert.Empty(t, prev)
	assert.False(t, switched)

	prev, switched, err = s.Track("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", prev)
	assert.False(t, switched)

	prev, switched, err = s.Track("bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", prev)
	assert.True(t, switched)

	_, err = s.Load("alice")
	assert.ErrorIs(t, err, ErrNotFound)
}
