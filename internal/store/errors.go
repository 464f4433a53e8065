package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrEmailTaken is returned when a write collides with another user's email.
	ErrEmailTaken = errors.New("email already in use")
	// ErrUsernameTaken is returned when a write collides with another user's username.
	ErrUsernameTaken = errors.New("username already in use")
)

const uniqueViolation = "23505"

// translateUnique maps unique-constraint violations on users to sentinel errors.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return ErrEmailTaken
	case "users_username_key":
		return ErrUsernameTaken
	default:
		return err
	}
}
