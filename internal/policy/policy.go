// Package policy holds the role and ownership rules consulted before content is mutated.
// Every predicate is a pure function of the caller and the target.
package policy

import "github.com/alumnijourney/apiserver/types"

// CanCreatePost reports whether user may author career posts.
// Students may only comment unless they are staff.
func CanCreatePost(user types.User) bool {
	switch user.Role {
	case types.RoleStudent:
		return user.IsStaff
	case types.RoleAlumni, types.RoleAdmin:
		return true
	default:
		return user.IsStaff
	}
}

// CanModifyPost reports whether user may update or delete post.
func CanModifyPost(user types.User, post types.Post) bool {
	if user.IsStaff {
		return true
	}
	return post.UserID != nil && *post.UserID == user.ID
}

// CanEditComment reports whether user may change comment.
func CanEditComment(user types.User, comment types.Comment) bool {
	return user.ID != 0 && user.ID == comment.UserID
}

// CanDeleteComment reports whether user may remove comment.
func CanDeleteComment(user types.User, comment types.Comment) bool {
	return CanEditComment(user, comment) || user.IsStaff
}

// CanListUsers reports whether user may browse the user directory.
func CanListUsers(user types.User) bool {
	return user.IsStaff
}

// Visible reports whether post may be shown to anyone.
func Visible(post types.Post) bool {
	return post.IsApproved
}
