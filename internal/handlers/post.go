package handlers

import (
	"net/http"

	"github.com/alumnijourney/apiserver/internal/monitoring"
	"github.com/alumnijourney/apiserver/internal/services"
	"github.com/alumnijourney/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// PostHandler provides HTTP handlers for career posts.
type PostHandler struct {
	posts *services.PostService
	log   logrus.FieldLogger
}

func NewPostHandler(posts *services.PostService, log logrus.FieldLogger) *PostHandler {
	return &PostHandler{posts: posts, log: log}
}

// PostRouter registers post and comment routes on the given router.
func PostRouter(r chi.Router, posts *services.PostService, comments *services.CommentService, log logrus.FieldLogger) {
	handler := NewPostHandler(posts, log)
	commentHandler := NewCommentHandler(comments, log)

	r.Get("/", handler.List)
	r.With(RequireAuth).Post("/", handler.Create)
	r.With(RequireAuth).Get("/my-comments", commentHandler.ListMine)

	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Post("/like", handler.Like)
		r.Get("/comments", commentHandler.List)
		r.Get("/comments/{commentID}", commentHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Put("/", handler.Replace)
			r.Patch("/", handler.Update)
			r.Delete("/", handler.Delete)
			r.Post("/comments", commentHandler.Create)
			r.Put("/comments/{commentID}", commentHandler.Update)
			r.Patch("/comments/{commentID}", commentHandler.Update)
			r.Delete("/comments/{commentID}", commentHandler.Delete)
		})
	})
}

// List returns approved posts, optionally filtered by ?category=.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context(), r.URL.Query().Get("category"), viewerFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	post, err := h.posts.Get(r.Context(), id, viewerFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePost(w, r, true)
	if !ok {
		return
	}

	caller, _ := UserFromContext(r.Context())
	post, err := h.posts.Create(r.Context(), caller, in)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	monitoring.PostsCreated.Inc()
	writeJSON(w, http.StatusCreated, post)
}

// Replace handles PUT: every writable field is taken from the body.
func (h *PostHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// Update handles PATCH: absent fields keep their value.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *PostHandler) update(w http.ResponseWriter, r *http.Request, replace bool) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	in, ok := h.decodePost(w, r, replace)
	if !ok {
		return
	}

	caller, _ := UserFromContext(r.Context())
	post, err := h.posts.Update(r.Context(), caller, id, in)
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	caller, _ := UserFromContext(r.Context())
	if err := h.posts.Delete(r.Context(), caller, id); err != nil {
		writeAppError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like is open to anonymous callers and may be repeated.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "postID")
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	likes, err := h.posts.Like(r.Context(), id, viewerFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, h.log, err)
		return
	}

	monitoring.PostLikes.Inc()
	writeJSON(w, http.StatusOK, LikeResponse{Likes: likes})
}

func (h *PostHandler) decodePost(w http.ResponseWriter, r *http.Request, replace bool) (services.PostInput, bool) {
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.log, err)
		return services.PostInput{}, false
	}
	if err := validateRequest(req); err != nil {
		writeAppError(w, r, h.log, err)
		return services.PostInput{}, false
	}
	return services.PostInput{
		Replace:        replace,
		Name:           req.Name,
		Email:          req.Email,
		Role:           req.Role,
		Category:       req.Category,
		Company:        req.Company,
		Experience:     req.Experience,
		Skills:         req.Skills,
		GraduationYear: req.GraduationYear,
		LinkedInURL:    req.LinkedInURL,
	}, true
}

// PostRequest is shared by create, PUT and PATCH. Required fields are checked by the service
// so that PATCH can omit them.
type PostRequest struct {
	Name           *string         `json:"name" validate:"omitempty,max=200"`
	Email          *string         `json:"email" validate:"omitempty,email,max=254"`
	Role           *string         `json:"role" validate:"omitempty,max=200"`
	Category       *types.Category `json:"category"`
	Company        *string         `json:"company" validate:"omitempty,max=200"`
	Experience     *string         `json:"experience"`
	Skills         *string         `json:"skills"`
	GraduationYear *int            `json:"graduation_year"`
	LinkedInURL    *string         `json:"linkedin_url" validate:"omitempty,url"`
}

type LikeResponse struct {
	Likes int `json:"likes"`
}
