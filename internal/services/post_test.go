package services

import (
	"context"
	"testing"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/types"
)

func TestCreatePostIsGatedByRole(t *testing.T) {
	f := newFixture(t)
	student := f.register(t, "stu", types.RoleStudent).User
	alumni := f.register(t, "alu", types.RoleAlumni).User
	admin := f.staff(t, "root")

	_, err := f.posts.Create(context.Background(), student, PostInput{
		Name: strPtr("x"), Role: strPtr("x"), Category: categoryPtr(types.CategoryOther), Experience: strPtr("x"),
	})
	requireKind(t, err, apperror.Permission)

	for _, author := range []types.User{alumni, admin} {
		view := f.post(t, author)
		if *view.UserID != author.ID || !view.IsApproved || view.Likes != 0 {
			t.Fatalf("unexpected post %+v", view.Post)
		}
		if view.CategoryDisplay != "Software Engineering" || len(view.SkillsList) != 3 || view.CommentsCount != 0 {
			t.Fatalf("unexpected view %+v", view)
		}
	}

	var created int
	for _, e := range f.events.Events() {
		if e.Type == events.PostCreated {
			created++
		}
	}
	if created != 2 {
		t.Fatalf("expected two post.created events, got %d", created)
	}
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	alumni := f.register(t, "alu", types.RoleAlumni).User

	_, err := f.posts.Create(context.Background(), alumni, PostInput{
		Name: strPtr("  "), Role: strPtr("Engineer"), Category: categoryPtr("astrology"), Experience: strPtr("x"),
	})
	requireField(t, err, "name")
	requireField(t, err, "category")
}

func TestLikeIncrementsWithoutDeduplication(t *testing.T) {
	f := newFixture(t)
	alumni := f.register(t, "alu", types.RoleAlumni).User
	post := f.post(t, alumni)

	if likes, err := f.posts.Like(context.Background(), post.ID, nil); err != nil || likes != 1 {
		t.Fatalf("anonymous like: %d %v", likes, err)
	}
	if _, err := f.posts.Like(context.Background(), post.ID, &alumni); err != nil {
		t.Fatalf("like: %v", err)
	}
	likes, err := f.posts.Like(context.Background(), post.ID, &alumni)
	if err != nil || likes != 3 {
		t.Fatalf("expected 3 likes, got %d %v", likes, err)
	}
	if rows := f.store.Likes(); len(rows) != 1 || rows[0].UserID != alumni.ID {
		t.Fatalf("expected a single like row, got %+v", rows)
	}

	_, err = f.posts.Like(context.Background(), 9999, nil)
	requireKind(t, err, apperror.NotFound)
}

func TestHiddenPostsAreInvisible(t *testing.T) {
	f := newFixture(t)
	alumni := f.register(t, "alu", types.RoleAlumni).User
	shown := f.post(t, alumni)
	hidden := f.post(t, alumni)
	if err := f.posts.SetApproval(context.Background(), hidden.ID, false); err != nil {
		t.Fatalf("hide: %v", err)
	}

	list, err := f.posts.List(context.Background(), "", nil)
	if err != nil || len(list) != 1 || list[0].ID != shown.ID {
		t.Fatalf("unexpected list %+v %v", list, err)
	}

	_, err = f.posts.Get(context.Background(), hidden.ID, nil)
	requireKind(t, err, apperror.NotFound)
	_, err = f.posts.Like(context.Background(), hidden.ID, nil)
	requireKind(t, err, apperror.NotFound)
	_, err = f.comments.List(context.Background(), hidden.ID, nil)
	requireKind(t, err, apperror.NotFound)

	if err := f.posts.SetApproval(context.Background(), hidden.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.posts.Get(context.Background(), hidden.ID, nil); err != nil {
		t.Fatalf("approved post must be visible: %v", err)
	}
}

func TestListFiltersByCategory(t *testing.T) {
	f := newFixture(t)
	alumni := f.register(t, "alu", types.RoleAlumni).User
	first := f.post(t, alumni)
	design, err := f.posts.Create(context.Background(), alumni, PostInput{
		Name: strPtr("Lin"), Role: strPtr("Designer"), Category: categoryPtr(types.CategoryDesign), Experience: strPtr("x"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	all, _ := f.posts.List(context.Background(), "all", nil)
	if len(all) != 2 || all[0].ID != design.ID || all[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	only, _ := f.posts.List(context.Background(), "design", nil)
	if len(only) != 1 || only[0].ID != design.ID {
		t.Fatalf("unexpected filtered list %+v", only)
	}
	none, _ := f.posts.List(context.Background(), "unknown", nil)
	if len(none) != 0 {
		t.Fatalf("expected no posts for unknown category")
	}
	upper, _ := f.posts.List(context.Background(), "ALL", nil)
	if len(upper) != 0 {
		t.Fatalf("only lower-case \"all\" disables the filter, got %+v", upper)
	}
}

func TestUpdatePostOwnership(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "own", types.RoleAlumni).User
	other := f.register(t, "oth", types.RoleAlumni).User
	admin := f.staff(t, "root")
	post := f.post(t, owner)

	_, err := f.posts.Update(context.Background(), other, post.ID, PostInput{Company: strPtr("Acme")})
	requireKind(t, err, apperror.Permission)

	updated, err := f.posts.Update(context.Background(), owner, post.ID, PostInput{Company: strPtr("Acme")})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if *updated.Company != "Acme" || updated.Name != "Grace" {
		t.Fatalf("partial update lost fields: %+v", updated.Post)
	}

	cleared, err := f.posts.Update(context.Background(), admin, post.ID, PostInput{Company: strPtr("")})
	if err != nil {
		t.Fatalf("staff update: %v", err)
	}
	if cleared.Company != nil {
		t.Fatalf("expected company to be cleared")
	}
}

func TestDeletePostCascadesComments(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "own", types.RoleAlumni).User
	other := f.register(t, "oth", types.RoleStudent).User
	post := f.post(t, owner)
	if _, err := f.comments.Create(context.Background(), other, post.ID, CommentInput{Content: strPtr("nice")}); err != nil {
		t.Fatalf("comment: %v", err)
	}

	err := f.posts.Delete(context.Background(), other, post.ID)
	requireKind(t, err, apperror.Permission)

	if err := f.posts.Delete(context.Background(), owner, post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.posts.Get(context.Background(), post.ID, nil)
	requireKind(t, err, apperror.NotFound)
	mine, _ := f.comments.ListMine(context.Background(), other)
	if len(mine) != 0 {
		t.Fatalf("comments must be deleted with the post")
	}
}
