package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/internal/store/memstore"
	"github.com/alumnijourney/apiserver/internal/tokens"
	"github.com/alumnijourney/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t       *testing.T
	store   *memstore.Store
	users   *services.UserService
	handler http.Handler
}

func newTestAPI(t *testing.T, avatars services.AvatarStore) *testAPI {
	t.Helper()
	st := memstore.New()
	log := logrus.New()
	log.SetOutput(io.Discard)
	opts := []services.Option{services.WithLogger(log)}

	users := services.NewUserService(st.Users(), st.Tokens(), tokens.NewSigner("test-secret"), avatars, bcrypt.MinCost, opts...)
	posts := services.NewPostService(st.Posts(), st.Comments(), opts...)
	comments := services.NewCommentService(st.Posts(), st.Comments(), opts...)

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes, Authenticate(users, log))
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, users, log)
	})
	r.Route("/api/posts", func(r chi.Router) {
		PostRouter(r, posts, comments, log)
	})

	return &testAPI{t: t, store: st, users: users, handler: r}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(username string, role types.Role) (string, types.UserView) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/register/", "", map[string]any{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "s3cret-pass",
		"password2": "s3cret-pass",
		"role":      role,
	})
	expectStatus(a.t, rec, http.StatusCreated)
	resp := decodeBody[SessionResponse](a.t, rec)
	return resp.Token, resp.User
}

func (a *testAPI) promote(username string) {
	a.t.Helper()
	if _, err := a.users.Promote(context.Background(), username); err != nil {
		a.t.Fatalf("promote %s: %v", username, err)
	}
}

func (a *testAPI) createPost(token string) map[string]any {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/posts/", token, validPost())
	expectStatus(a.t, rec, http.StatusCreated)
	return decodeBody[map[string]any](a.t, rec)
}

func validPost() map[string]any {
	return map[string]any{
		"name":       "Ada Lovelace",
		"role":       "Backend Engineer",
		"category":   "software-engineering",
		"company":    "Analytical Engines",
		"experience": "Joined as an intern after graduating.",
		"skills":     "go, postgres",
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, field string) apperror.Response {
	t.Helper()
	expectStatus(t, rec, status)
	resp := decodeBody[apperror.Response](t, rec)
	if field != "" && len(resp.Fields[field]) == 0 {
		t.Fatalf("expected error on %q, got %+v", field, resp)
	}
	return resp
}

func idOf(t *testing.T, body map[string]any) int {
	t.Helper()
	id, ok := body["id"].(float64)
	if !ok {
		t.Fatalf("missing id in %v", body)
	}
	return int(id)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		err    error
	}{
		{"", "", errMissingAuthorization},
		{"Bearer abc", "abc", nil},
		{"Token abc", "abc", nil},
		{"bearer  abc ", "abc", nil},
		{"Basic abc", "", errInvalidAuthorization},
		{"Bearer", "", errInvalidAuthorization},
		{"Bearer   ", "", errInvalidAuthorization},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, err := bearerToken(req)
		if err != tc.err || got != tc.want {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tc.header, got, err, tc.want, tc.err)
		}
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusBadRequest, "non_field_errors")

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusBadRequest, "non_field_errors")

	rec = api.do(http.MethodPost, "/api/auth/register", "", map[string]any{"username": 42})
	expectError(t, rec, http.StatusBadRequest, "username")
}

func TestParseIDRejectsGarbage(t *testing.T) {
	api := newTestAPI(t, nil)
	for _, path := range []string{"/api/posts/abc", "/api/posts/0", "/api/posts/-3"} {
		rec := api.do(http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusNotFound)
	}
}
