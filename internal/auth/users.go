package auth

import (
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/koustreak/tablegate/internal/errs"
)

// User is one entry of the credential file.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// Users is the read-only credential store.
type Users struct {
	byName map[string]User
}

// dummyHash is compared against when the username is unknown, so both
// paths pay for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("tablegate"), bcrypt.DefaultCost)
	return h
})

// LoadUsers reads the YAML credential file at path:
//
//	users:
//	  - username: alice
//	    password_hash: $2a$10$...
//	    role: admin
func LoadUsers(path string) (*Users, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot read users file", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid users file", err)
	}
	return NewUsers(f.Users)
}

// NewUsers builds a store from users. Usernames must be unique and every
// user needs a bcrypt hash and a role.
func NewUsers(users []User) (*Users, error) {
	byName := make(map[string]User, len(users))
	for _, u := range users {
		switch {
		case strings.TrimSpace(u.Username) == "":
			return nil, errs.New(errs.ErrKindInvalidInput, "user without username")
		case u.Role == "":
			return nil, errs.Newf(errs.ErrKindInvalidInput, "user %q has no role", u.Username)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "user "+u.Username+" has no valid bcrypt hash", err)
		}
		if _, dup := byName[u.Username]; dup {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "duplicate user %q", u.Username)
		}
		byName[u.Username] = u
	}
	return &Users{byName: byName}, nil
}

// All returns every user, in no particular order.
func (s *Users) All() []User {
	out := make([]User, 0, len(s.byName))
	for _, u := range s.byName {
		out = append(out, u)
	}
	return out
}

// Verify checks password for username. Both an unknown user and a wrong
// password are reported as the same unauthenticated error.
func (s *Users) Verify(username, password string) (User, error) {
	u, ok := s.byName[username]
	var hash []byte
	if ok {
		hash = []byte(u.PasswordHash)
	} else {
		hash = dummyHash()
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return User{}, errs.New(errs.ErrKindUnauthenticated, "invalid username or password")
	}
	return u, nil
}

// HashPassword returns the bcrypt hash stored in the users file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to hash password", err)
	}
	return string(hash), nil
}
