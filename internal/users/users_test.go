package users

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateExactMatch(t *testing.T) {
	d, err := Load(strings.NewReader("username,password\nkeerthi,s3cret\nadmin,admin\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	assert.NoError(t, d.Authenticate("keerthi", "s3cret"))
	assert.NoError(t, d.Authenticate("admin", "admin"))

	for _, tc := range []struct{ user, pass string }{
		{"keerthi", "S3cret"},
		{"Keerthi", "s3cret"},
		{"keerthi", "s3cret "},
		{"keerthi", ""},
		{"", ""},
		{"nobody", "s3cret"},
		{"admin", "s3cret"},
	} {
		assert.ErrorIs(t, d.Authenticate(tc.user, tc.pass), ErrInvalidCredentials, "%q/%q", tc.user, tc.pass)
	}
}

func TestLoadFindsColumnsByHeader(t *testing.T) {
	d, err := Load(strings.NewReader("role,password,username\nops,pw1,ana\nbroken\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
	assert.NoError(t, d.Authenticate("ana", "pw1"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadFile("does-not-exist.csv")
	assert.Error(t, err)
}

func TestAuthenticateAcceptsAnyRowForDuplicatedUser(t *testing.T) {
	d, err := Load(strings.NewReader("username,password\nalice,first\nbob,pw\nalice,second\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	assert.NoError(t, d.Authenticate("alice", "first"))
	assert.NoError(t, d.Authenticate("alice", "second"))
	assert.ErrorIs(t, d.Authenticate("alice", "pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, d.Authenticate("alice", "third"), ErrInvalidCredentials)
}
