package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/policy"
	"github.com/alumnijourney/apiserver/internal/store"
	"github.com/alumnijourney/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, filter types.PostFilter) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
	IncrementLikes(ctx context.Context, id int, likerID *int) (int, error)
	SetApproval(ctx context.Context, id int, approved bool) error
}

// PostService encapsulates career post use-cases.
type PostService struct {
	base
	posts    PostRepository
	comments CommentRepository
}

func NewPostService(posts PostRepository, comments CommentRepository, opts ...Option) *PostService {
	return &PostService{base: newBase(opts), posts: posts, comments: comments}
}

// PostInput carries the author-writable fields. Nil means unchanged unless Replace
// is set, in which case every writable field starts out empty.
type PostInput struct {
	Replace bool

	Name           *string
	Email          *string
	Role           *string
	Category       *types.Category
	Company        *string
	Experience     *string
	Skills         *string
	GraduationYear *int
	LinkedInURL    *string
}

// List returns visible posts newest first. category "all" or "" disables the filter.
func (s *PostService) List(ctx context.Context, category string, viewer *types.User) ([]types.PostView, error) {
	filter := types.PostFilter{}
	if category = strings.TrimSpace(category); category != "" && category != "all" {
		filter.Category = types.Category(category)
	}

	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, apperror.NewInternal("failed to list posts", err)
	}

	ids := make([]int, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
	}
	grouped, err := s.comments.ListByPosts(ctx, ids)
	if err != nil {
		return nil, apperror.NewInternal("failed to list comments", err)
	}

	views := make([]types.PostView, len(posts))
	for i, post := range posts {
		views[i] = postView(post, grouped[post.ID], viewer)
	}
	return views, nil
}

func (s *PostService) Get(ctx context.Context, id int, viewer *types.User) (types.PostView, error) {
	post, err := s.visible(ctx, id)
	if err != nil {
		return types.PostView{}, err
	}
	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return types.PostView{}, apperror.NewInternal("failed to list comments", err)
	}
	return postView(post, comments, viewer), nil
}

// visible loads a post and hides unapproved ones behind NotFound.
func (s *PostService) visible(ctx context.Context, id int) (types.Post, error) {
	return loadVisiblePost(ctx, s.posts, id)
}

func loadVisiblePost(ctx context.Context, posts PostRepository, id int) (types.Post, error) {
	post, err := posts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !policy.Visible(post)) {
		return types.Post{}, apperror.NewNotFound("post not found")
	}
	if err != nil {
		return types.Post{}, apperror.NewInternal("failed to load post", err)
	}
	return post, nil
}

func (s *PostService) Create(ctx context.Context, caller types.User, in PostInput) (types.PostView, error) {
	if !policy.CanCreatePost(caller) {
		return types.PostView{}, apperror.NewPermission("Students cannot create career posts.")
	}

	post := types.Post{UserID: &caller.ID, IsApproved: true}
	if err := applyPostInput(&post, in, s.now); err != nil {
		return types.PostView{}, err
	}

	created, err := s.posts.Create(ctx, post)
	if err != nil {
		return types.PostView{}, apperror.NewInternal("failed to create post", err)
	}

	event := events.New(events.PostCreated, &caller.ID)
	event.PostID = created.ID
	s.publish(ctx, event)
	return postView(created, nil, &caller), nil
}

// Update applies in to a visible post owned by the caller, or any post for staff.
func (s *PostService) Update(ctx context.Context, caller types.User, id int, in PostInput) (types.PostView, error) {
	post, err := s.visible(ctx, id)
	if err != nil {
		return types.PostView{}, err
	}
	if !policy.CanModifyPost(caller, post) {
		return types.PostView{}, apperror.NewPermission("You can only modify your own posts.")
	}
	if err := applyPostInput(&post, in, s.now); err != nil {
		return types.PostView{}, err
	}

	updated, err := s.posts.Update(ctx, post)
	if err != nil {
		return types.PostView{}, translateLookup(err, "post not found")
	}
	comments, err := s.comments.ListByPost(ctx, updated.ID)
	if err != nil {
		return types.PostView{}, apperror.NewInternal("failed to list comments", err)
	}
	return postView(updated, comments, &caller), nil
}

func (s *PostService) Delete(ctx context.Context, caller types.User, id int) error {
	post, err := s.visible(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanModifyPost(caller, post) {
		return apperror.NewPermission("You can only modify your own posts.")
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return translateLookup(err, "post not found")
	}
	return nil
}

// Like adds one to the post's counter and returns the new total. Anyone may like, repeatedly.
func (s *PostService) Like(ctx context.Context, id int, viewer *types.User) (int, error) {
	var likerID *int
	if viewer != nil {
		likerID = &viewer.ID
	}
	likes, err := s.posts.IncrementLikes(ctx, id, likerID)
	if err != nil {
		return 0, translateLookup(err, "post not found")
	}

	event := events.New(events.PostLiked, likerID)
	event.PostID = id
	event.Likes = likes
	s.publish(ctx, event)
	return likes, nil
}

// SetApproval shows or hides any post, visible or not.
func (s *PostService) SetApproval(ctx context.Context, id int, approved bool) error {
	if err := s.posts.SetApproval(ctx, id, approved); err != nil {
		return translateLookup(err, "post not found")
	}
	return nil
}

func applyPostInput(post *types.Post, in PostInput, now func() time.Time) error {
	if in.Replace {
		post.Name, post.Role, post.Experience, post.Skills, post.Category = "", "", "", "", ""
		post.Email, post.Company, post.LinkedInURL, post.GraduationYear = nil, nil, nil, nil
	}

	fields := fieldErrors{}
	if in.Name != nil {
		post.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		post.Role = strings.TrimSpace(*in.Role)
	}
	if in.Experience != nil {
		post.Experience = strings.TrimSpace(*in.Experience)
	}
	if in.Skills != nil {
		post.Skills = strings.TrimSpace(*in.Skills)
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			fields.add("category", "\""+string(*in.Category)+"\" is not a valid choice.")
		}
		post.Category = *in.Category
	}
	if in.Email != nil {
		post.Email = optional(*in.Email)
	}
	if in.Company != nil {
		post.Company = optional(*in.Company)
	}
	if in.LinkedInURL != nil {
		post.LinkedInURL = optional(*in.LinkedInURL)
	}
	if in.GraduationYear != nil {
		checkGraduationYear(fields, in.GraduationYear, now())
		post.GraduationYear = in.GraduationYear
	}

	for field, value := range map[string]string{"name": post.Name, "role": post.Role, "experience": post.Experience} {
		if value == "" {
			fields.add(field, "This field may not be blank.")
		}
	}
	if post.Category == "" {
		fields.add("category", "This field is required.")
	}
	return fields.err()
}

// optional trims s and maps the empty string to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
