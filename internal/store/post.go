package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/alumnijourney/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const postColumns = `id, user_id, name, email, role, category, company, experience, skills,
	graduation_year, linkedin_url, likes, is_approved, created_at, updated_at`

// PostRepository handles persistence for career posts.
type PostRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns posts newest first.
func (r *PostRepository) List(ctx context.Context, filter types.PostFilter) ([]types.Post, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.IncludeHidden {
		conditions = append(conditions, "is_approved = TRUE")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, "category = "+placeholder(len(args)))
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	posts := []types.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, err
	}
	return posts, nil
}

// Get returns a post regardless of its approval state.
func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	var post types.Post
	if err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (user_id, name, email, role, category, company, experience, skills,
			graduation_year, linkedin_url, likes, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.UserID,
		post.Name,
		post.Email,
		post.Role,
		post.Category,
		post.Company,
		post.Experience,
		post.Skills,
		post.GraduationYear,
		post.LinkedInURL,
		post.Likes,
		post.IsApproved,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// Update writes the author-editable fields. Likes, ownership and approval are left alone.
func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	post.UpdatedAt = time.Now()

	const query = `
		UPDATE posts
		SET name = $1,
			email = $2,
			role = $3,
			category = $4,
			company = $5,
			experience = $6,
			skills = $7,
			graduation_year = $8,
			linkedin_url = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		post.Name,
		post.Email,
		post.Role,
		post.Category,
		post.Company,
		post.Experience,
		post.Skills,
		post.GraduationYear,
		post.LinkedInURL,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return types.Post{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// Delete removes a post. Its comments and likes go with it.
func (r *PostRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// IncrementLikes atomically bumps the like counter of a visible post and returns the new value.
// When likerID is set, a like record is kept for that user; repeat likes still count.
func (r *PostRepository) IncrementLikes(ctx context.Context, id int, likerID *int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var likes int
	const bump = `UPDATE posts SET likes = likes + 1 WHERE id = $1 AND is_approved = TRUE RETURNING likes`
	if err := tx.QueryRowContext(ctx, bump, id).Scan(&likes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	if likerID != nil {
		const record = `
			INSERT INTO likes (user_id, post_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, post_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, record, *likerID, id, time.Now()); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return likes, nil
}

// SetApproval shows or hides a post.
func (r *PostRepository) SetApproval(ctx context.Context, id int, approved bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET is_approved = $1, updated_at = $2 WHERE id = $3`,
		approved, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
