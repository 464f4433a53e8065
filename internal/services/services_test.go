package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/storage"
	"github.com/alumnijourney/apiserver/internal/store/memstore"
	"github.com/alumnijourney/apiserver/internal/tokens"
	"github.com/alumnijourney/apiserver/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	store    *memstore.Store
	events   *events.Recorder
	users    *UserService
	posts    *PostService
	comments *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	rec := &events.Recorder{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	opts := []Option{WithEvents(rec), WithLogger(log)}

	return &fixture{
		store:    st,
		events:   rec,
		users:    NewUserService(st.Users(), st.Tokens(), tokens.NewSigner("test-secret"), storage.NewMemory("test"), bcrypt.MinCost, opts...),
		posts:    NewPostService(st.Posts(), st.Comments(), opts...),
		comments: NewCommentService(st.Posts(), st.Comments(), opts...),
	}
}

func (f *fixture) register(t *testing.T, username string, role types.Role) Session {
	t.Helper()
	session, err := f.users.Register(context.Background(), RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "s3cret-pass",
		Password2: "s3cret-pass",
		Role:      role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return session
}

func (f *fixture) staff(t *testing.T, username string) types.User {
	t.Helper()
	f.register(t, username, types.RoleAlumni)
	user, err := f.users.Promote(context.Background(), username)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	return user
}

func (f *fixture) post(t *testing.T, author types.User) types.PostView {
	t.Helper()
	view, err := f.posts.Create(context.Background(), author, PostInput{
		Name:       strPtr("Grace"),
		Role:       strPtr("Staff Engineer"),
		Category:   categoryPtr(types.CategorySoftwareEngineering),
		Experience: strPtr("Started as an intern."),
		Skills:     strPtr("go, sql ,, k8s"),
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return view
}

func strPtr(s string) *string                      { return &s }
func intPtr(v int) *int                            { return &v }
func rolePtr(r types.Role) *types.Role             { return &r }
func categoryPtr(c types.Category) *types.Category { return &c }

func requireKind(t *testing.T, err error, kind apperror.Kind) *apperror.Error {
	t.Helper()
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected application error of kind %v, got %v", kind, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %v, got %v (%v)", kind, appErr.Kind, appErr)
	}
	return appErr
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	appErr := requireKind(t, err, apperror.Validation)
	if len(appErr.Fields[field]) == 0 {
		t.Fatalf("expected error on field %q, got %v", field, appErr.Fields)
	}
}
