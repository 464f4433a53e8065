package services

import (
	"github.com/alumnijourney/apiserver/internal/policy"
	"github.com/alumnijourney/apiserver/types"
)

// viewer is nil for anonymous requests.
func commentView(comment types.Comment, viewer *types.User) types.CommentView {
	view := types.CommentView{Comment: comment}
	if viewer != nil {
		view.IsOwner = policy.CanEditComment(*viewer, comment)
		view.CanDelete = policy.CanDeleteComment(*viewer, comment)
	}
	return view
}

func commentViews(comments []types.Comment, viewer *types.User) []types.CommentView {
	views := make([]types.CommentView, len(comments))
	for i, comment := range comments {
		views[i] = commentView(comment, viewer)
	}
	return views
}

func postView(post types.Post, comments []types.Comment, viewer *types.User) types.PostView {
	return types.PostView{
		Post:            post,
		CategoryDisplay: post.Category.Display(),
		SkillsList:      post.SkillsList(),
		Comments:        commentViews(comments, viewer),
		CommentsCount:   len(comments),
	}
}
