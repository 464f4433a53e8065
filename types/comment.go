package types

import "time"

// Comment is a reply to a post written by a registered user.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int `json:"id" db:"id"`

	// PostID is the post this comment replies to.
	PostID int `json:"post" db:"post_id"`

	// UserID is the author of the comment.
	UserID int `json:"user" db:"user_id"`

	// AuthorName is the author's username, joined from the users table.
	AuthorName string `json:"author_name" db:"author_name"`

	// AuthorRole is the role the author had when posting.
	AuthorRole Role `json:"author_role" db:"author_role"`

	// Content is the comment body.
	Content string `json:"content" db:"content"`

	// IsEdited is set once the content has been changed after creation.
	IsEdited bool `json:"is_edited" db:"is_edited"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommentView adds caller-specific flags to a comment.
type CommentView struct {
	Comment
	IsOwner   bool `json:"is_owner"`
	CanDelete bool `json:"can_delete"`
}

// UserComment is a comment with a summary of the post it belongs to.
type UserComment struct {
	Comment
	PostTitle  string `json:"post_title" db:"post_title"`
	PostAuthor string `json:"post_author" db:"post_author"`
}
