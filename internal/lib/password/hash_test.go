package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := newTestHasher(t)

	tests := []struct {
		name     string
		password string
	}{
		{name: "regular password", password: "password123"},
		{name: "password with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "unicode password", password: "пароль-чек"},
		{name: "short password", password: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)

			assert.NoError(t, h.Compare(hash, tt.password))
			assert.ErrorIs(t, h.Compare(hash, tt.password+"x"), ErrMismatch)
		})
	}
}

func TestHasher_HashIsSalted(t *testing.T) {
	h := newTestHasher(t)

	h1, err := h.Hash("same")
	require.NoError(t, err)
	h2, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHasher_TooLong(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.Hash(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	err := h.Compare("not-a-bcrypt-hash", "password")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}

func TestHasher_CompareDummy(t *testing.T) {
	h := newTestHasher(t)
	assert.ErrorIs(t, h.CompareDummy("anything"), ErrMismatch)
}

func TestNewHasher_InvalidCostFallsBack(t *testing.T) {
	h, err := NewHasher(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
}
