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

const userColumns = `id, username, email, first_name, last_name, role, graduation_year, department, bio,
	avatar_key, avatar_content_type, is_staff, is_active, password_hash, date_joined, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByEmail looks a user up by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.DateJoined = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (username, email, first_name, last_name, role, graduation_year, department, bio,
			is_staff, is_active, password_hash, date_joined, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.GraduationYear,
		user.Department,
		user.Bio,
		user.IsStaff,
		user.IsActive,
		user.PasswordHash,
		user.DateJoined,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translateUnique(err)
	}
	return user, nil
}

// Update writes every mutable column except the password hash.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			first_name = $2,
			last_name = $3,
			role = $4,
			graduation_year = $5,
			department = $6,
			bio = $7,
			avatar_key = $8,
			avatar_content_type = $9,
			is_staff = $10,
			is_active = $11,
			updated_at = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Role,
		user.GraduationYear,
		user.Department,
		user.Bio,
		user.AvatarKey,
		user.AvatarContentType,
		user.IsStaff,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translateUnique(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// List returns users newest first, optionally narrowed by role and a search term.
func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, "role = $1")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		p := placeholder(len(args))
		conditions = append(conditions,
			"(username ILIKE "+p+" OR email ILIKE "+p+" OR first_name ILIKE "+p+" OR last_name ILIKE "+p+")")
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_joined DESC, id DESC"

	users := []types.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// ChangePassword stores a new password hash and replaces the user's token in one transaction,
// so the old token is gone before the new one becomes visible.
func (r *UserRepository) ChangePassword(ctx context.Context, userID int, passwordHash string, token types.Token) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tokens (key, user_id, created_at) VALUES ($1, $2, $3)`,
		token.Key, userID, token.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
