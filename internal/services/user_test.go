package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/types"
)

func TestRegisterRejectsMismatchedPasswords(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "ada@example.com", Password: "one-pass", Password2: "two-pass",
	})
	requireField(t, err, "password")

	users, _ := f.store.Users().List(context.Background(), types.UserFilter{})
	if len(users) != 0 {
		t.Fatalf("no user may be persisted, got %d", len(users))
	}
}

func TestRegisterRejectsDuplicateEmailIgnoringCase(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada", types.RoleStudent)

	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ada2", Email: "ADA@example.com", Password: "s3cret-pass", Password2: "s3cret-pass",
	})
	requireField(t, err, "email")
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada", types.RoleStudent)

	_, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "other@example.com", Password: "s3cret-pass", Password2: "s3cret-pass",
	})
	requireField(t, err, "username")
}

func TestRegisterChecksGraduationYear(t *testing.T) {
	f := newFixture(t)
	for _, year := range []int{1949, 3000} {
		_, err := f.users.Register(context.Background(), RegisterInput{
			Username: "ada", Email: "ada@example.com", Password: "s3cret-pass", Password2: "s3cret-pass",
			GraduationYear: intPtr(year),
		})
		requireField(t, err, "graduation_year")
	}
}

func TestRegisterDefaultsRoleAndIssuesUsableToken(t *testing.T) {
	f := newFixture(t)
	session, err := f.users.Register(context.Background(), RegisterInput{
		Username: "ada", Email: "ada@example.com", Password: "s3cret-pass", Password2: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Role != types.RoleStudent || !session.User.IsActive {
		t.Fatalf("unexpected user %+v", session.User)
	}
	if session.User.PasswordHash == "s3cret-pass" {
		t.Fatalf("password stored in clear")
	}

	user, err := f.users.Authenticate(context.Background(), session.Token)
	if err != nil || user.ID != session.User.ID {
		t.Fatalf("authenticate: %+v %v", user, err)
	}

	got := f.events.Events()
	if len(got) != 1 || got[0].Type != events.UserRegistered || *got[0].ActorID != user.ID {
		t.Fatalf("expected user.registered event, got %+v", got)
	}
}

func TestLoginByUsernameOrEmailReturnsSameToken(t *testing.T) {
	f := newFixture(t)
	registered := f.register(t, "ada", types.RoleAlumni)

	byName, err := f.users.Login(context.Background(), "ada", "s3cret-pass")
	if err != nil {
		t.Fatalf("login by username: %v", err)
	}
	byEmail, err := f.users.Login(context.Background(), "ada@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if byName.Token != registered.Token || byEmail.Token != registered.Token {
		t.Fatalf("expected the token to be reused")
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada", types.RoleAlumni)

	_, err := f.users.Login(context.Background(), "ada", "wrong")
	if appErr := requireKind(t, err, apperror.Auth); appErr.Message != invalidCredentials {
		t.Fatalf("unexpected message %q", appErr.Message)
	}
	_, err = f.users.Login(context.Background(), "nobody", "s3cret-pass")
	requireKind(t, err, apperror.Auth)
	_, err = f.users.Login(context.Background(), "", "")
	requireKind(t, err, apperror.Auth)

	if _, err := f.users.Deactivate(context.Background(), "ada"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = f.users.Login(context.Background(), "ada", "s3cret-pass")
	if appErr := requireKind(t, err, apperror.Auth); appErr.Message != "User account is disabled." {
		t.Fatalf("unexpected message %q", appErr.Message)
	}
}

func TestDeactivateRevokesToken(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "ada", types.RoleAlumni)
	if _, err := f.users.Deactivate(context.Background(), "ada"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := f.users.Authenticate(context.Background(), session.Token)
	requireKind(t, err, apperror.Unauthenticated)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "ada", types.RoleAlumni)

	f.users.Logout(context.Background(), session.User)
	f.users.Logout(context.Background(), session.User)

	_, err := f.users.Authenticate(context.Background(), session.Token)
	requireKind(t, err, apperror.Unauthenticated)

	again, err := f.users.Login(context.Background(), "ada", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if again.Token == session.Token {
		t.Fatalf("expected a fresh token after logout")
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Authenticate(context.Background(), "garbage")
	requireKind(t, err, apperror.Unauthenticated)
}

func TestChangePasswordRotatesToken(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "ada", types.RoleAlumni)

	newToken, err := f.users.ChangePassword(context.Background(), session.User, "s3cret-pass", "n3w-pass-word", "n3w-pass-word")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if newToken == session.Token {
		t.Fatalf("expected a new token")
	}

	_, err = f.users.Authenticate(context.Background(), session.Token)
	requireKind(t, err, apperror.Unauthenticated)
	if _, err := f.users.Authenticate(context.Background(), newToken); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}

	if _, err := f.users.Login(context.Background(), "ada", "n3w-pass-word"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "ada", types.RoleAlumni)

	_, err := f.users.ChangePassword(context.Background(), session.User, "wrong", "a-new-pass", "a-new-pass")
	requireField(t, err, "old_password")

	_, err = f.users.ChangePassword(context.Background(), session.User, "s3cret-pass", "a-new-pass", "b-new-pass")
	requireField(t, err, "new_password")

	if _, err := f.users.Authenticate(context.Background(), session.Token); err != nil {
		t.Fatalf("failed change must keep the token: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ada := f.register(t, "ada", types.RoleStudent).User
	f.register(t, "bob", types.RoleStudent)

	_, err := f.users.UpdateProfile(context.Background(), ada, ProfileInput{Email: strPtr("BOB@example.com")})
	requireField(t, err, "email")

	updated, err := f.users.UpdateProfile(context.Background(), ada, ProfileInput{
		Email:          strPtr("ada@example.com"),
		Role:           rolePtr(types.RoleAlumni),
		Bio:            strPtr("hello"),
		GraduationYear: intPtr(2020),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != types.RoleAlumni || *updated.Bio != "hello" || *updated.GraduationYear != 2020 || updated.Username != "ada" {
		t.Fatalf("unexpected user %+v", updated)
	}

	_, err = f.users.UpdateProfile(context.Background(), ada, ProfileInput{Role: rolePtr("wizard")})
	requireField(t, err, "role")
}

// The role is self-service; only the staff flag is reserved for admins.
func TestSelfSelectedAdminRoleGrantsPostingButNotStaff(t *testing.T) {
	f := newFixture(t)
	student := f.register(t, "stu", types.RoleStudent).User

	_, err := f.posts.Create(context.Background(), student, PostInput{
		Name: strPtr("Stu"), Role: strPtr("Intern"), Category: categoryPtr(types.CategoryOther), Experience: strPtr("x"),
	})
	requireKind(t, err, apperror.Permission)

	updated, err := f.users.UpdateProfile(context.Background(), student, ProfileInput{Role: rolePtr(types.RoleAdmin)})
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != types.RoleAdmin || updated.IsStaff {
		t.Fatalf("unexpected user %+v", updated)
	}

	if _, err := f.posts.Create(context.Background(), updated, PostInput{
		Name: strPtr("Stu"), Role: strPtr("Intern"), Category: categoryPtr(types.CategoryOther), Experience: strPtr("x"),
	}); err != nil {
		t.Fatalf("create after role change: %v", err)
	}
	_, err = f.users.ListUsers(context.Background(), updated, types.UserFilter{})
	requireKind(t, err, apperror.Permission)
}

func TestListUsersIsStaffOnly(t *testing.T) {
	f := newFixture(t)
	student := f.register(t, "ada", types.RoleStudent).User
	f.register(t, "bob", types.RoleAlumni)
	admin := f.staff(t, "root")

	_, err := f.users.ListUsers(context.Background(), student, types.UserFilter{})
	requireKind(t, err, apperror.Permission)

	all, err := f.users.ListUsers(context.Background(), admin, types.UserFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("list: %d %v", len(all), err)
	}
	if all[0].Username != "root" {
		t.Fatalf("expected newest first, got %s", all[0].Username)
	}

	alumni, _ := f.users.ListUsers(context.Background(), admin, types.UserFilter{Role: types.RoleAlumni})
	if len(alumni) != 1 || alumni[0].Username != "bob" {
		t.Fatalf("unexpected role filter result %+v", alumni)
	}
	found, _ := f.users.ListUsers(context.Background(), admin, types.UserFilter{Search: "ADA@"})
	if len(found) != 1 || found[0].ID != student.ID {
		t.Fatalf("unexpected search result %+v", found)
	}
}

func TestAvatarRoundTrip(t *testing.T) {
	f := newFixture(t)
	ada := f.register(t, "ada", types.RoleStudent).User

	_, _, err := f.users.Avatar(context.Background(), ada.ID)
	requireKind(t, err, apperror.NotFound)

	updated, err := f.users.SetAvatar(context.Background(), ada, strings.NewReader("GIF89a"), 6, "image/gif")
	if err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	if !updated.View().HasAvatar {
		t.Fatalf("expected has_avatar")
	}

	rc, contentType, err := f.users.Avatar(context.Background(), ada.ID)
	if err != nil {
		t.Fatalf("avatar: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "GIF89a" || contentType != "image/gif" {
		t.Fatalf("unexpected avatar %q %q", data, contentType)
	}
}

func TestAvatarWithoutStorage(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store.Users(), f.store.Tokens(), nil, nil, 4)
	_, err := users.SetAvatar(context.Background(), types.User{ID: 1}, strings.NewReader("x"), 1, "image/png")
	requireKind(t, err, apperror.Unavailable)
	_, _, err = users.Avatar(context.Background(), 1)
	requireKind(t, err, apperror.Unavailable)
}
