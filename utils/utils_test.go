package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("follow the white rabbit")
	require.NoError(t, err)

	assert.NotEqual(t, "follow the white rabbit", hash)
	assert.NoError(t, ComparePassword(hash, "follow the white rabbit"))
	assert.ErrorIs(t, ComparePassword(hash, "there is no spoon"), ErrPasswordMismatch)
}

func TestComparePasswordMalformedHash(t *testing.T) {
	err := ComparePassword("not-a-hash", "follow the white rabbit")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{"empty", "", ErrPasswordTooShort},
		{"short", "neo", ErrPasswordTooShort},
		{"multibyte counts runes", "пароль", nil},
		{"minimum", "zionzi", nil},
		{"at byte limit", strings.Repeat("a", MaxPasswordBytes), nil},
		{"over byte limit", strings.Repeat("a", MaxPasswordBytes+1), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := HashPassword("neo")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
