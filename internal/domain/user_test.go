package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	t.Run("creates valid user with defaults", func(t *testing.T) {
		t.Parallel()
		user, err := NewUser("alice", "alice@x.com", "Secur3Pass!")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, []string{RoleUser}, user.Roles)
		assert.False(t, user.IsDisabled())
		assert.False(t, user.CreatedAt.IsZero())
	})

	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{name: "empty username", username: "", email: "a@x.com", password: "Secur3Pass!", wantErr: ErrEmptyUsername},
		{name: "short username", username: "ab", email: "a@x.com", password: "Secur3Pass!", wantErr: ErrUsernameTooShort},
		{name: "empty email", username: "alice", email: "", password: "Secur3Pass!", wantErr: ErrEmptyEmail},
		{name: "malformed email", username: "alice", email: "not-an-email", password: "Secur3Pass!", wantErr: ErrInvalidEmail},
		{name: "short password", username: "alice", email: "a@x.com", password: "short", wantErr: ErrPasswordTooShort},
		{
			name:     "overlong password",
			username: "alice",
			email:    "a@x.com",
			password: string(make([]byte, 73)),
			wantErr:  ErrPasswordTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewUser(tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserValidate_StoredUser(t *testing.T) {
	t.Parallel()

	// Users loaded from the store have no plaintext password, only a hash.
	user := &User{
		ID:             uuid.New(),
		Username:       "alice",
		Email:          "alice@x.com",
		HashedPassword: "$2a$10$something",
		Roles:          []string{RoleUser},
	}
	require.NoError(t, user.Validate())

	user.HashedPassword = ""
	assert.ErrorIs(t, user.Validate(), ErrEmptyPassword)
}

func TestUserHasRole(t *testing.T) {
	t.Parallel()

	user := &User{Roles: []string{RoleUser, RoleAdmin}}
	assert.True(t, user.HasRole(RoleAdmin))
	assert.True(t, user.HasRole(RoleUser))
	assert.False(t, user.HasRole("auditor"))
}
