package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/monitoring"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// AuthHandler provides account and session endpoints.
type AuthHandler struct {
	users *services.UserService
	log   logrus.FieldLogger
}

func NewAuthHandler(users *services.UserService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

// AuthRouter registers auth routes on the given router.
// Authenticate must already run on the parent router.
func AuthRouter(r chi.Router, users *services.UserService, log logrus.FieldLogger) {
	handler := NewAuthHandler(users, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/check", handler.Check)
	r.Get("/users/{userID}/avatar", handler.GetAvatar)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Post("/logout", handler.Logout)
		r.Get("/profile", handler.Profile)
		r.Put("/profile", handler.UpdateProfile)
		r.Patch("/profile", handler.UpdateProfile)
		r.Put("/profile/avatar", handler.UploadAvatar)
		r.Post("/change-password", handler.ChangePassword)
		r.Get("/users", handler.ListUsers)
	})
}

// Authenticate resolves the bearer token, when one is sent, and injects the caller into context.
// Requests without a valid token continue anonymously; RequireAuth rejects them where needed.
func Authenticate(users *services.UserService, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.Authenticate(r.Context(), raw)
			if err != nil {
				if apperror.Is(err, apperror.Unauthenticated) {
					next.ServeHTTP(w, r)
					return
				}
				writeAppError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireAuth rejects requests that Authenticate did not resolve to a user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := bearerToken(r); errors.Is(err, errMissingAuthorization) {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid token.")
	})
}

// Register creates a new account and returns it with a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	session, err := h.users.Register(r.Context(), services.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Password2:      req.Password2,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           req.Role,
		GraduationYear: req.GraduationYear,
		Department:     req.Department,
		Bio:            req.Bio,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	monitoring.RegisterSuccess.Inc()
	writeJSON(w, http.StatusCreated, SessionResponse{
		Message: "Registration successful",
		User:    session.User.View(),
		Token:   session.Token,
	})
}

// Login verifies credentials and returns the caller's token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	session, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		monitoring.LoginFailure.WithLabelValues(loginFailureReason(err)).Inc()
		writeAppError(w, r, h.log, err)
		return
	}

	monitoring.LoginSuccess.Inc()
	writeJSON(w, http.StatusOK, SessionResponse{
		Message: "Login successful",
		User:    session.User.View(),
		Token:   session.Token,
	})
}

func loginFailureReason(err error) string {
	appErr := apperror.From(err)
	switch {
	case appErr.Kind != apperror.Auth:
		return "error"
	case strings.Contains(appErr.Message, "disabled"):
		return "disabled"
	case strings.HasPrefix(appErr.Message, "Must include"):
		return "missing_fields"
	default:
		return "invalid_credentials"
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	h.users.Logout(r.Context(), user)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Successfully logged out."})
}

// Profile returns the current authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user.View())
}

// UpdateProfile applies a partial update for both PUT and PATCH.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	caller, _ := UserFromContext(r.Context())
	updated, err := h.users.UpdateProfile(r.Context(), caller, services.ProfileInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           req.Role,
		GraduationYear: req.GraduationYear,
		Department:     req.Department,
		Bio:            req.Bio,
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Message: "Profile updated successfully", User: updated.View()})
}

// ChangePassword swaps the password and returns a replacement token; the old one stops working.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	caller, _ := UserFromContext(r.Context())
	token, err := h.users.ChangePassword(r.Context(), caller, req.OldPassword, req.NewPassword, req.NewPassword2)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Message: "Password changed successfully", Token: token})
}

// Check never fails; it reports whether the request carries a valid token.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := CheckResponse{}
	if user, ok := UserFromContext(r.Context()); ok {
		view := user.View()
		resp.IsAuthenticated = true
		resp.User = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUsers is the staff-only user directory.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	query := r.URL.Query()
	users, err := h.users.ListUsers(r.Context(), caller, types.UserFilter{
		Role:   types.Role(strings.TrimSpace(query.Get("role"))),
		Search: query.Get("search"),
	})
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	views := make([]types.UserView, len(users))
	for i, user := range users {
		views[i] = user.View()
	}
	writeJSON(w, http.StatusOK, views)
}

type RegisterRequest struct {
	Username       string     `json:"username" validate:"required,max=150"`
	Email          string     `json:"email" validate:"required,email"`
	Password       string     `json:"password" validate:"required,min=8"`
	Password2      string     `json:"password2" validate:"required"`
	FirstName      string     `json:"first_name" validate:"max=150"`
	LastName       string     `json:"last_name" validate:"max=150"`
	Role           types.Role `json:"role" validate:"omitempty,oneof=student alumni admin"`
	GraduationYear *int       `json:"graduation_year"`
	Department     *string    `json:"department" validate:"omitempty,max=200"`
	Bio            *string    `json:"bio"`
}

// LoginRequest accepts a username or an email address in Username.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	FirstName      *string     `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string     `json:"last_name" validate:"omitempty,max=150"`
	Email          *string     `json:"email" validate:"omitempty,email"`
	Role           *types.Role `json:"role" validate:"omitempty,oneof=student alumni admin"`
	GraduationYear *int        `json:"graduation_year"`
	Department     *string     `json:"department" validate:"omitempty,max=200"`
	Bio            *string     `json:"bio"`
}

type ChangePasswordRequest struct {
	OldPassword  string `json:"old_password" validate:"required"`
	NewPassword  string `json:"new_password" validate:"required,min=8"`
	NewPassword2 string `json:"new_password2" validate:"required"`
}

type SessionResponse struct {
	Message string         `json:"message"`
	User    types.UserView `json:"user"`
	Token   string         `json:"token"`
}

type ProfileResponse struct {
	Message string         `json:"message"`
	User    types.UserView `json:"user"`
}

type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type CheckResponse struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            *types.UserView `json:"user"`
}

var (
	errMissingAuthorization = errors.New("missing authorization")
	errInvalidAuthorization = errors.New("invalid authorization")
)

// bearerToken accepts both the "Bearer" and the "Token" scheme.
func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !(strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token")) {
		return "", errInvalidAuthorization
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errInvalidAuthorization
	}
	return token, nil
}
