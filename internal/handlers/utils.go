package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type contextKey string

const contextUserKey contextKey = "user"

const maxJSONBody = 1 << 20

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// viewerFromContext is UserFromContext for services that accept anonymous callers.
func viewerFromContext(ctx context.Context) *types.User {
	if user, ok := UserFromContext(ctx); ok {
		return &user
	}
	return nil
}

// MessageResponse is a plain acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apperror.Response{Error: message})
}

// writeAppError renders err with the status of its kind. Internal errors are logged
// and only their generic message is returned.
func writeAppError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.Internal {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error(appErr.Message)
	}
	writeJSON(w, appErr.StatusCode(), appErr.ToResponse())
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewValidationFields(map[string][]string{"non_field_errors": {"Request body is empty."}})
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperror.NewValidation(typeErr.Field, "Invalid value.")
		}
		return apperror.NewValidationFields(map[string][]string{"non_field_errors": {"Malformed JSON body."}})
	}
	return nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, apperror.NewNotFound("not found")
	}
	return id, nil
}
