package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/policy"
	"github.com/alumnijourney/apiserver/internal/storage"
	"github.com/alumnijourney/apiserver/internal/store"
	"github.com/alumnijourney/apiserver/internal/tokens"
	"github.com/alumnijourney/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	List(ctx context.Context, filter types.UserFilter) ([]types.User, error)
	ChangePassword(ctx context.Context, userID int, passwordHash string, token types.Token) error
}

// TokenRepository defines persistence operations for API tokens.
type TokenRepository interface {
	GetOrCreate(ctx context.Context, token types.Token) (types.Token, error)
	GetByKey(ctx context.Context, key string) (types.Token, error)
	DeleteByUser(ctx context.Context, userID int) error
}

// AvatarStore keeps avatar images. *storage.Storage satisfies it.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

const invalidCredentials = "Invalid username/email or password."

// UserService covers accounts, sessions and profiles.
type UserService struct {
	base
	users      UserRepository
	tokens     TokenRepository
	signer     *tokens.Signer
	avatars    AvatarStore
	bcryptCost int
}

// NewUserService wires the identity use-cases. avatars may be nil when no object storage is configured.
func NewUserService(users UserRepository, tokenRepo TokenRepository, signer *tokens.Signer, avatars AvatarStore, bcryptCost int, opts ...Option) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		base:       newBase(opts),
		users:      users,
		tokens:     tokenRepo,
		signer:     signer,
		avatars:    avatars,
		bcryptCost: bcryptCost,
	}
}

// RegisterInput is a sign-up request. Role defaults to student.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	Password2      string
	FirstName      string
	LastName       string
	Role           types.Role
	GraduationYear *int
	Department     *string
	Bio            *string
}

// Session is an authenticated user together with their bearer token.
type Session struct {
	User  types.User
	Token string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = types.RoleStudent
	}

	fields := fieldErrors{}
	if in.Password != in.Password2 {
		fields.add("password", "Password fields didn't match.")
	}
	if !in.Role.Valid() {
		fields.add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		fields.add("email", "A user with this email already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, apperror.NewInternal("failed to check email", err)
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		fields.add("username", "A user with that username already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, apperror.NewInternal("failed to check username", err)
	}
	checkGraduationYear(fields, in.GraduationYear, s.now())
	if err := fields.err(); err != nil {
		return Session{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return Session{}, apperror.NewInternal("failed to create user", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:       in.Username,
		Email:          in.Email,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Role:           in.Role,
		GraduationYear: in.GraduationYear,
		Department:     in.Department,
		Bio:            in.Bio,
		IsActive:       true,
		PasswordHash:   string(hashed),
	})
	if err != nil {
		return Session{}, translateUserWrite(err, "failed to create user")
	}

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	s.publish(ctx, events.New(events.UserRegistered, &user.ID))
	return Session{User: user, Token: token}, nil
}

// Login accepts a username or an email address as identifier.
// The same user gets the same token back until it is revoked or rotated.
func (s *UserService) Login(ctx context.Context, identifier, password string) (Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return Session{}, apperror.NewAuth(`Must include "username" and "password".`)
	}

	user, ok, err := s.matchCredentials(ctx, identifier, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperror.NewAuth(invalidCredentials)
	}
	if !user.IsActive {
		return Session{}, apperror.NewAuth("User account is disabled.")
	}

	token, err := s.issue(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// matchCredentials tries identifier as a username first and then as an email.
func (s *UserService) matchCredentials(ctx context.Context, identifier, password string) (types.User, bool, error) {
	lookups := []func(context.Context, string) (types.User, error){s.users.GetByUsername, s.users.GetByEmail}
	for _, lookup := range lookups {
		user, err := lookup(ctx, identifier)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return types.User{}, false, apperror.NewInternal("failed to authenticate", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
			return user, true, nil
		}
	}
	return types.User{}, false, nil
}

func (s *UserService) issue(ctx context.Context, userID int) (string, error) {
	key, err := tokens.NewKey()
	if err != nil {
		return "", apperror.NewInternal("failed to create token", err)
	}
	token, err := s.tokens.GetOrCreate(ctx, types.Token{Key: key, UserID: userID, CreatedAt: s.now()})
	if err != nil {
		return "", apperror.NewInternal("failed to create token", err)
	}
	return s.sign(token)
}

func (s *UserService) sign(token types.Token) (string, error) {
	raw, err := s.signer.Sign(token)
	if err != nil {
		return "", apperror.NewInternal("failed to sign token", err)
	}
	return raw, nil
}

// Logout revokes the caller's token. It never fails.
func (s *UserService) Logout(ctx context.Context, caller types.User) {
	if err := s.tokens.DeleteByUser(ctx, caller.ID); err != nil {
		s.log.WithError(err).WithField("user_id", caller.ID).Warn("token delete failed on logout")
	}
}

// Authenticate resolves a bearer string to an active user.
func (s *UserService) Authenticate(ctx context.Context, raw string) (types.User, error) {
	claims, err := s.signer.Parse(raw)
	if err != nil {
		return types.User{}, apperror.NewUnauthenticated("Invalid token.")
	}

	token, err := s.tokens.GetByKey(ctx, claims.Key)
	if errors.Is(err, store.ErrNotFound) || (err == nil && token.UserID != claims.UserID) {
		return types.User{}, apperror.NewUnauthenticated("Invalid token.")
	}
	if err != nil {
		return types.User{}, apperror.NewInternal("failed to load token", err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !user.IsActive) {
		return types.User{}, apperror.NewUnauthenticated("User inactive or deleted.")
	}
	if err != nil {
		return types.User{}, apperror.NewInternal("failed to load user", err)
	}
	return user, nil
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	FirstName      *string
	LastName       *string
	Email          *string
	Role           *types.Role
	GraduationYear *int
	Department     *string
	Bio            *string
}

func (s *UserService) UpdateProfile(ctx context.Context, caller types.User, in ProfileInput) (types.User, error) {
	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return types.User{}, translateLookup(err, "user not found")
	}

	fields := fieldErrors{}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case email == "":
			fields.add("email", "This field may not be blank.")
		case err == nil && existing.ID != user.ID:
			fields.add("email", "This email is already in use.")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return types.User{}, apperror.NewInternal("failed to check email", err)
		}
		user.Email = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			fields.add("role", fmt.Sprintf("%q is not a valid choice.", *in.Role))
		}
		user.Role = *in.Role
	}
	checkGraduationYear(fields, in.GraduationYear, s.now())
	if err := fields.err(); err != nil {
		return types.User{}, err
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.GraduationYear != nil {
		user.GraduationYear = in.GraduationYear
	}
	if in.Department != nil {
		user.Department = in.Department
	}
	if in.Bio != nil {
		user.Bio = in.Bio
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, translateUserWrite(err, "failed to update profile")
	}
	return updated, nil
}

// ChangePassword replaces the caller's password and token together and returns the new bearer string.
func (s *UserService) ChangePassword(ctx context.Context, caller types.User, oldPassword, newPassword, newPassword2 string) (string, error) {
	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return "", translateLookup(err, "user not found")
	}

	fields := fieldErrors{}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		fields.add("old_password", "Current password is incorrect.")
	}
	if newPassword != newPassword2 {
		fields.add("new_password", "New password fields didn't match.")
	}
	if err := fields.err(); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return "", apperror.NewInternal("failed to change password", err)
	}
	key, err := tokens.NewKey()
	if err != nil {
		return "", apperror.NewInternal("failed to create token", err)
	}
	token := types.Token{Key: key, UserID: user.ID, CreatedAt: s.now()}
	if err := s.users.ChangePassword(ctx, user.ID, string(hashed), token); err != nil {
		return "", translateLookup(err, "user not found")
	}
	return s.sign(token)
}

// ListUsers is restricted to staff.
func (s *UserService) ListUsers(ctx context.Context, caller types.User, filter types.UserFilter) ([]types.User, error) {
	if !policy.CanListUsers(caller) {
		return nil, apperror.NewPermission("Permission denied")
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperror.NewInternal("failed to list users", err)
	}
	return users, nil
}

// Promote grants staff rights and the admin role.
func (s *UserService) Promote(ctx context.Context, username string) (types.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, translateLookup(err, "user not found")
	}
	user.IsStaff = true
	user.Role = types.RoleAdmin
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, translateUserWrite(err, "failed to promote user")
	}
	return updated, nil
}

// Deactivate disables the account and revokes its token.
func (s *UserService) Deactivate(ctx context.Context, username string) (types.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, translateLookup(err, "user not found")
	}
	user.IsActive = false
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, translateUserWrite(err, "failed to deactivate user")
	}
	if err := s.tokens.DeleteByUser(ctx, user.ID); err != nil {
		return types.User{}, apperror.NewInternal("failed to revoke token", err)
	}
	return updated, nil
}

// SetAvatar stores an already validated image for the caller.
func (s *UserService) SetAvatar(ctx context.Context, caller types.User, r io.Reader, size int64, contentType string) (types.User, error) {
	if s.avatars == nil {
		return types.User{}, apperror.NewUnavailable("avatar storage is not configured")
	}
	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return types.User{}, translateLookup(err, "user not found")
	}

	key := "avatars/" + strconv.Itoa(user.ID)
	if err := s.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return types.User{}, apperror.NewInternal("failed to store avatar", err)
	}
	user.AvatarKey = &key
	user.AvatarContentType = &contentType
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, translateUserWrite(err, "failed to update profile")
	}
	return updated, nil
}

// Avatar opens the stored avatar of a user. The caller must close the reader.
func (s *UserService) Avatar(ctx context.Context, userID int) (io.ReadCloser, string, error) {
	if s.avatars == nil {
		return nil, "", apperror.NewUnavailable("avatar storage is not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", translateLookup(err, "user not found")
	}
	if user.AvatarKey == nil || *user.AvatarKey == "" {
		return nil, "", apperror.NewNotFound("avatar not found")
	}

	rc, err := s.avatars.Get(ctx, *user.AvatarKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, "", apperror.NewNotFound("avatar not found")
	}
	if err != nil {
		return nil, "", apperror.NewInternal("failed to load avatar", err)
	}
	contentType := "application/octet-stream"
	if user.AvatarContentType != nil {
		contentType = *user.AvatarContentType
	}
	return rc, contentType, nil
}

func translateLookup(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFound(notFound)
	}
	return apperror.NewInternal("storage failure", err)
}

// translateUserWrite maps write-time uniqueness races to field errors.
func translateUserWrite(err error, message string) error {
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		return apperror.NewValidation("email", "A user with this email already exists.")
	case errors.Is(err, store.ErrUsernameTaken):
		return apperror.NewValidation("username", "A user with that username already exists.")
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFound("user not found")
	default:
		return apperror.NewInternal(message, err)
	}
}
