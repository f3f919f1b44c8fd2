package domain

import (
	"net/mail"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role names. Roles are static reference data; their permission sets are
// implied by the authorization policy in the service layer.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a registered user of the service.
// Users are never physically deleted; DisabledAt marks a soft-disabled account.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Password       string     `json:"-"` // Plaintext, held only between registration and hashing
	HashedPassword string     `json:"-"` // Never exposed in JSON
	Roles          []string   `json:"roles"`
	DisabledAt     *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewUser creates a new User with the given username, email and password.
// It generates a new UUID, assigns the default role set, and stamps the
// creation time. The caller is responsible for hashing the password before
// storing the user.
func NewUser(username, email, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  password,
		Roles:     []string{RoleUser},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks that the User holds valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Username == "" {
		return ErrEmptyUsername
	}
	if len(u.Username) < 3 {
		return ErrUsernameTooShort
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}

	if u.Password != "" {
		if len(u.Password) < 8 {
			return ErrPasswordTooShort
		}
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		// Existing users loaded from the store carry only the hash.
		return ErrEmptyPassword
	}

	return nil
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsDisabled reports whether the account has been soft-disabled.
func (u *User) IsDisabled() bool {
	return u.DisabledAt != nil
}
