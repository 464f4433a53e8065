package handlers

import (
	"net/http"

	"github.com/alumnijourney/apiserver/internal/monitoring"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/types"
	"github.com/sirupsen/logrus"
)

// CommentHandler provides HTTP handlers for comments nested under posts.
type CommentHandler struct {
	comments *services.CommentService
	log      logrus.FieldLogger
}

func NewCommentHandler(comments *services.CommentService, log logrus.FieldLogger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	comments, err := h.comments.List(r.Context(), postID, viewerFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, commentID, ok := h.ids(w, r)
	if !ok {
		return
	}
	comment, err := h.comments.Get(r.Context(), postID, commentID, viewerFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	in, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	caller, _ := UserFromContext(r.Context())
	comment, err := h.comments.Create(r.Context(), caller, postID, in)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	monitoring.CommentsCreated.Inc()
	writeJSON(w, http.StatusCreated, comment)
}

// Update serves both PUT and PATCH; only the author may edit.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	postID, commentID, ok := h.ids(w, r)
	if !ok {
		return
	}
	in, ok := h.decodeComment(w, r)
	if !ok {
		return
	}

	caller, _ := UserFromContext(r.Context())
	comment, err := h.comments.Update(r.Context(), caller, postID, commentID, in)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	postID, commentID, ok := h.ids(w, r)
	if !ok {
		return
	}

	caller, _ := UserFromContext(r.Context())
	if err := h.comments.Delete(r.Context(), caller, postID, commentID); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMine returns the caller's comments across all posts.
func (h *CommentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	comments, err := h.comments.ListMine(r.Context(), caller)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) ids(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	postID, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return 0, 0, false
	}
	commentID, err := parseID(r, "commentID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return 0, 0, false
	}
	return postID, commentID, true
}

func (h *CommentHandler) decodeComment(w http.ResponseWriter, r *http.Request) (services.CommentInput, bool) {
	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return services.CommentInput{}, false
	}
	return services.CommentInput{AuthorRole: req.AuthorRole, Content: req.Content}, true
}

type CommentRequest struct {
	AuthorRole *types.Role `json:"author_role"`
	Content    *string     `json:"content"`
}
