package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alumnijourney/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, u.username AS author_name, c.author_role, c.content,
		c.is_edited, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.user_id`

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByPost returns a post's comments oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int) ([]types.Comment, error) {
	comments := []types.Comment{}
	query := commentSelect + ` WHERE c.post_id = $1 ORDER BY c.created_at, c.id`
	if err := r.db.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, err
	}
	return comments, nil
}

// ListByPosts loads the comments of several posts in one query, keyed by post ID.
func (r *CommentRepository) ListByPosts(ctx context.Context, postIDs []int) (map[int][]types.Comment, error) {
	grouped := make(map[int][]types.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return grouped, nil
	}

	ids := make([]int64, len(postIDs))
	for i, id := range postIDs {
		ids[i] = int64(id)
	}

	var comments []types.Comment
	query := commentSelect + ` WHERE c.post_id = ANY($1) ORDER BY c.created_at, c.id`
	if err := r.db.SelectContext(ctx, &comments, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, comment := range comments {
		grouped[comment.PostID] = append(grouped[comment.PostID], comment)
	}
	return grouped, nil
}

func (r *CommentRepository) Get(ctx context.Context, postID, commentID int) (types.Comment, error) {
	var comment types.Comment
	query := commentSelect + ` WHERE c.post_id = $1 AND c.id = $2`
	if err := r.db.GetContext(ctx, &comment, query, postID, commentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now()

	var id int
	const query = `
		INSERT INTO comments (post_id, user_id, author_role, content, is_edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		comment.PostID, comment.UserID, comment.AuthorRole, comment.Content, now,
	).Scan(&id); err != nil {
		return types.Comment{}, err
	}
	return r.Get(ctx, comment.PostID, id)
}

// Update rewrites the content and role and marks the comment as edited.
func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET author_role = $1, content = $2, is_edited = TRUE, updated_at = $3
		WHERE post_id = $4 AND id = $5`
	result, err := r.db.ExecContext(ctx, query,
		comment.AuthorRole, comment.Content, time.Now(), comment.PostID, comment.ID)
	if err != nil {
		return types.Comment{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Comment{}, err
	}
	return r.Get(ctx, comment.PostID, comment.ID)
}

func (r *CommentRepository) Delete(ctx context.Context, postID, commentID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE post_id = $1 AND id = $2`, postID, commentID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ListByUser returns a user's comments on approved posts, newest first, with a summary of each post.
func (r *CommentRepository) ListByUser(ctx context.Context, userID int) ([]types.UserComment, error) {
	const query = `
		SELECT c.id, c.post_id, c.user_id, u.username AS author_name, c.author_role, c.content,
			c.is_edited, c.created_at, c.updated_at, p.role AS post_title, p.name AS post_author
		FROM comments c
		JOIN users u ON u.id = c.user_id
		JOIN posts p ON p.id = c.post_id AND p.is_approved = TRUE
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id DESC`
	comments := []types.UserComment{}
	if err := r.db.SelectContext(ctx, &comments, query, userID); err != nil {
		return nil, err
	}
	return comments, nil
}
