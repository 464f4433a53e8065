package types

import (
	"reflect"
	"testing"
)

func TestPostSkillsList(t *testing.T) {
	post := Post{Skills: " Go, Kubernetes ,,SQL , "}
	got := post.SkillsList()
	want := []string{"Go", "Kubernetes", "SQL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected skills list: %v", got)
	}

	if got := (Post{}).SkillsList(); len(got) != 0 {
		t.Fatalf("expected empty skills list, got %v", got)
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleStudent, RoleAlumni, RoleAdmin} {
		if !role.Valid() {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	if Role("professor").Valid() {
		t.Fatalf("unexpected valid role")
	}
}

func TestCategoryDisplay(t *testing.T) {
	if got := CategoryDataScience.Display(); got != "Data Science" {
		t.Fatalf("unexpected display: %q", got)
	}
	if Category("astrology").Valid() {
		t.Fatalf("unexpected valid category")
	}
}

func TestUserViewHasAvatar(t *testing.T) {
	key := "avatars/7"
	view := User{ID: 7, Role: RoleAlumni, AvatarKey: &key}.View()
	if !view.HasAvatar || view.RoleDisplay != "Alumni" {
		t.Fatalf("unexpected view: %+v", view)
	}
}
