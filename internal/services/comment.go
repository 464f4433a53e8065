package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/alumnijourney/apiserver/internal/apperror"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/policy"
	"github.com/alumnijourney/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByPost(ctx context.Context, postID int) ([]types.Comment, error)
	ListByPosts(ctx context.Context, postIDs []int) (map[int][]types.Comment, error)
	Get(ctx context.Context, postID, commentID int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, postID, commentID int) error
	ListByUser(ctx context.Context, userID int) ([]types.UserComment, error)
}

// CommentService encapsulates comment use-cases. Comments live under visible posts only.
type CommentService struct {
	base
	posts    PostRepository
	comments CommentRepository
}

func NewCommentService(posts PostRepository, comments CommentRepository, opts ...Option) *CommentService {
	return &CommentService{base: newBase(opts), posts: posts, comments: comments}
}

// CommentInput is a new comment or, with nil fields left unchanged, an edit.
type CommentInput struct {
	AuthorRole *types.Role
	Content    *string
}

func (s *CommentService) List(ctx context.Context, postID int, viewer *types.User) ([]types.CommentView, error) {
	if _, err := loadVisiblePost(ctx, s.posts, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, apperror.NewInternal("failed to list comments", err)
	}
	return commentViews(comments, viewer), nil
}

func (s *CommentService) Get(ctx context.Context, postID, commentID int, viewer *types.User) (types.CommentView, error) {
	comment, err := s.load(ctx, postID, commentID)
	if err != nil {
		return types.CommentView{}, err
	}
	return commentView(comment, viewer), nil
}

func (s *CommentService) load(ctx context.Context, postID, commentID int) (types.Comment, error) {
	if _, err := loadVisiblePost(ctx, s.posts, postID); err != nil {
		return types.Comment{}, err
	}
	comment, err := s.comments.Get(ctx, postID, commentID)
	if err != nil {
		return types.Comment{}, translateLookup(err, "comment not found")
	}
	return comment, nil
}

// Create adds a comment by caller. Without an explicit author role, students
// comment as students and everyone else as alumni.
func (s *CommentService) Create(ctx context.Context, caller types.User, postID int, in CommentInput) (types.CommentView, error) {
	post, err := loadVisiblePost(ctx, s.posts, postID)
	if err != nil {
		return types.CommentView{}, err
	}

	comment := types.Comment{PostID: post.ID, UserID: caller.ID, AuthorRole: defaultAuthorRole(caller)}
	if in.Content == nil {
		in.Content = new(string)
	}
	if err := applyCommentInput(&comment, in); err != nil {
		return types.CommentView{}, err
	}

	created, err := s.comments.Create(ctx, comment)
	if err != nil {
		return types.CommentView{}, translateLookup(err, "post not found")
	}

	event := events.New(events.CommentCreated, &caller.ID)
	event.PostID = post.ID
	event.PostOwnerID = post.UserID
	event.CommentID = created.ID
	s.publish(ctx, event)
	return commentView(created, &caller), nil
}

func (s *CommentService) Update(ctx context.Context, caller types.User, postID, commentID int, in CommentInput) (types.CommentView, error) {
	comment, err := s.load(ctx, postID, commentID)
	if err != nil {
		return types.CommentView{}, err
	}
	if !policy.CanEditComment(caller, comment) {
		return types.CommentView{}, apperror.NewPermission("You can only edit your own comments.")
	}
	if err := applyCommentInput(&comment, in); err != nil {
		return types.CommentView{}, err
	}

	updated, err := s.comments.Update(ctx, comment)
	if err != nil {
		return types.CommentView{}, translateLookup(err, "comment not found")
	}
	return commentView(updated, &caller), nil
}

func (s *CommentService) Delete(ctx context.Context, caller types.User, postID, commentID int) error {
	comment, err := s.load(ctx, postID, commentID)
	if err != nil {
		return err
	}
	if !policy.CanDeleteComment(caller, comment) {
		return apperror.NewPermission("You can only delete your own comments.")
	}
	if err := s.comments.Delete(ctx, postID, commentID); err != nil {
		return translateLookup(err, "comment not found")
	}
	return nil
}

// ListMine returns the caller's comments on approved posts, newest first.
func (s *CommentService) ListMine(ctx context.Context, caller types.User) ([]types.UserComment, error) {
	comments, err := s.comments.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, apperror.NewInternal("failed to list comments", err)
	}
	return comments, nil
}

func defaultAuthorRole(user types.User) types.Role {
	if user.Role == types.RoleStudent {
		return types.RoleStudent
	}
	return types.RoleAlumni
}

func applyCommentInput(comment *types.Comment, in CommentInput) error {
	fields := fieldErrors{}
	if in.AuthorRole != nil {
		switch *in.AuthorRole {
		case types.RoleStudent, types.RoleAlumni:
			comment.AuthorRole = *in.AuthorRole
		default:
			fields.add("author_role", fmt.Sprintf("%q is not a valid choice.", *in.AuthorRole))
		}
	}
	if in.Content != nil {
		comment.Content = strings.TrimSpace(*in.Content)
		if comment.Content == "" {
			fields.add("content", "This field may not be blank.")
		}
	}
	return fields.err()
}
