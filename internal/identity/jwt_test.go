package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	p, err := New("test-secret", "turnsync", time.Hour)
	require.NoError(t, err)

	tok, err := p.IssueToken("player-7")
	require.NoError(t, err)

	id, err := p.PlayerID(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, "player-7", id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := New("secret-a", "turnsync", time.Hour)
	b, _ := New("secret-b", "turnsync", time.Hour)

	tok, err := a.IssueToken("player-7")
	require.NoError(t, err)

	_, err = b.PlayerID(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	p, _ := New("secret", "turnsync", time.Millisecond)
	tok, err := p.IssueToken("player-7")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = p.PlayerID(context.Background(), tok)
	require.Error(t, err)
}

func TestVerifyRejectsEmpty(t *testing.T) {
	p, _ := New("secret", "turnsync", time.Hour)
	_, err := p.PlayerID(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("", "turnsync", time.Hour)
	require.ErrorIs(t, err, ErrEmptySecret)
}
