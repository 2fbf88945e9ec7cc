package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladay23/blogicum/internal/auth"
	"github.com/vladay23/blogicum/internal/telemetry/metrics"
	"github.com/vladay23/blogicum/internal/users"
	"github.com/vladay23/blogicum/pkg"
)

type PostsPageResponse struct {
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

type CategoryPageResponse struct {
	Category   *Category  `json:"category"`
	Posts      []*Post    `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

type ProfilePageResponse struct {
	Profile    *users.User `json:"profile"`
	Posts      []*Post     `json:"posts"`
	Pagination Pagination  `json:"pagination"`
}

type PostDetailResponse struct {
	Post     *Post      `json:"post"`
	Comments []*Comment `json:"comments"`
}

type newCommentRequest struct {
	Body string `json:"body"`
}

type Handler struct {
	service *Service
	metrics *metrics.Manager
}

func NewHandler(service *Service, metrics *metrics.Manager) *Handler {
	return &Handler{
		service: service,
		metrics: metrics,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/posts", handler.handleNewPost).Methods("POST", "OPTIONS").Name("new-post")
	router.HandleFunc("/posts/page/{page}", handler.handleIndexPage).Methods("GET").Name("posts-page")
	router.HandleFunc("/posts/{id}", handler.handleGetPost).Methods("GET").Name("post-detail")
	router.HandleFunc("/posts/{id}", handler.handleUpdatePost).Methods("PUT", "OPTIONS").Name("update-post")
	router.HandleFunc("/posts/{id}", handler.handleDeletePost).Methods("DELETE", "OPTIONS").Name("delete-post")
	router.HandleFunc("/posts/{id}/comments", handler.handleNewComment).Methods("POST", "OPTIONS").Name("new-comment")
	router.HandleFunc("/comments/{id}", handler.handleUpdateComment).Methods("PUT", "OPTIONS").Name("update-comment")
	router.HandleFunc("/comments/{id}", handler.handleDeleteComment).Methods("DELETE", "OPTIONS").Name("delete-comment")
	router.HandleFunc("/category/{slug}/page/{page}", handler.handleCategoryPage).Methods("GET").Name("category-page")
	router.HandleFunc("/profile/{username}/page/{page}", handler.handleProfilePage).Methods("GET").Name("profile-page")
}

func (handler *Handler) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	page, err := intVar(r, "page")
	if err != nil {
		http.Error(w, "error, page NaN", http.StatusBadRequest)
		return
	}

	posts, pagination, err := handler.service.ListIndex(r.Context(), page)
	if err != nil {
		log.Errorf("get posts page %d: %s", page, err)
		http.Error(w, "failed to get posts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, PostsPageResponse{Posts: posts, Pagination: pagination})
}

func (handler *Handler) handleCategoryPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]
	page, err := intVar(r, "page")
	if err != nil {
		http.Error(w, "error, page NaN", http.StatusBadRequest)
		return
	}

	category, posts, pagination, err := handler.service.ListCategory(r.Context(), slug, page)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Errorf("get category [%s] page %d: %s", slug, page, err)
		http.Error(w, "failed to get category posts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, CategoryPageResponse{Category: category, Posts: posts, Pagination: pagination})
}

func (handler *Handler) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	username := vars["username"]
	page, err := intVar(r, "page")
	if err != nil {
		http.Error(w, "error, page NaN", http.StatusBadRequest)
		return
	}

	viewerID := auth.ViewerIDFromContext(r.Context())
	profile, posts, pagination, err := handler.service.ListProfile(r.Context(), username, viewerID, page)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Errorf("get profile [%s] page %d: %s", username, page, err)
		http.Error(w, "failed to get profile posts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, ProfilePageResponse{Profile: profile, Posts: posts, Pagination: pagination})
}

func (handler *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	viewerID := auth.ViewerIDFromContext(r.Context())
	post, comments, err := handler.service.GetPostDetail(r.Context(), id, viewerID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Errorf("get post %d: %s", id, err)
		http.Error(w, "failed to get post", http.StatusInternalServerError)
		return
	}

	writeJSON(w, PostDetailResponse{Post: post, Comments: comments})
}

func (handler *Handler) handleNewPost(w http.ResponseWriter, r *http.Request) {
	fields, err := postFieldsFromRequest(r)
	if err != nil {
		log.Errorf("new post, read params: %s", err)
		http.Error(w, "add post failed", http.StatusBadRequest)
		return
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	post, err := handler.service.CreatePost(r.Context(), actorID, fields)
	if err != nil {
		handler.writeMutationError(w, r, err, 0, "add new post")
		return
	}

	handler.metrics.CounterPosts.Inc()
	log.Tracef("new post %d: [%s] added", post.ID, post.Title)

	writeJSONStatus(w, post, http.StatusCreated)
}

func (handler *Handler) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	fields, err := postFieldsFromRequest(r)
	if err != nil {
		log.Errorf("update post, read params: %s", err)
		http.Error(w, "update post failed", http.StatusBadRequest)
		return
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	post, err := handler.service.UpdatePost(r.Context(), id, actorID, fields)
	if err != nil {
		handler.writeMutationError(w, r, err, id, "update post")
		return
	}

	writeJSON(w, post)
}

func (handler *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	if err := handler.service.DeletePost(r.Context(), id, actorID); err != nil {
		handler.writeMutationError(w, r, err, id, "delete post")
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}

func (handler *Handler) handleNewComment(w http.ResponseWriter, r *http.Request) {
	postID, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	var newCommentReq newCommentRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&newCommentReq); err != nil {
			log.Errorf("new comment, unmarshal json params: %s", err)
			http.Error(w, "add comment failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("add new comment failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		newCommentReq.Body = r.Form.Get("body")
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	comment, err := handler.service.CreateComment(r.Context(), postID, actorID, newCommentReq.Body)
	if err != nil {
		handler.writeMutationError(w, r, err, postID, "add new comment")
		return
	}

	handler.metrics.CounterComments.Inc()

	writeJSONStatus(w, comment, http.StatusCreated)
}

func (handler *Handler) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	var updateReq newCommentRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&updateReq); err != nil {
			log.Errorf("update comment, unmarshal json params: %s", err)
			http.Error(w, "update comment failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("update comment failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		updateReq.Body = r.Form.Get("body")
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	comment, err := handler.service.UpdateComment(r.Context(), id, actorID, updateReq.Body)
	if err != nil {
		postID := 0
		if comment != nil {
			postID = comment.PostID
		}
		handler.writeMutationError(w, r, err, postID, "update comment")
		return
	}

	writeJSON(w, comment)
}

func (handler *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	actorID := auth.ViewerIDFromContext(r.Context())
	postID, err := handler.service.DeleteComment(r.Context(), id, actorID)
	if err != nil {
		handler.writeMutationError(w, r, err, postID, "delete comment")
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}

// writeMutationError maps service errors of post/comment mutations to HTTP.
// A non-owner is redirected to the post's read view instead of getting an
// error, an anonymous actor gets 401, a hidden or missing entity a plain 404.
func (handler *Handler) writeMutationError(w http.ResponseWriter, r *http.Request, err error, postID int, action string) {
	switch {
	case errors.Is(err, ErrAuthRequired):
		http.Error(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, ErrNotOwner):
		http.Redirect(w, r, fmt.Sprintf("/posts/%d", postID), http.StatusSeeOther)
	case errors.Is(err, ErrPostNotFound), errors.Is(err, ErrCommentNotFound):
		http.NotFound(w, r)
	case errors.Is(err, ErrPostInvalid), errors.Is(err, ErrCommentInvalid), errors.Is(err, ErrUnknownCategory):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", action, err)
		http.Error(w, action+" failed", http.StatusInternalServerError)
	}
}

func postFieldsFromRequest(r *http.Request) (PostFields, error) {
	var fields PostFields
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return PostFields{}, fmt.Errorf("unmarshal json params: %w", err)
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return PostFields{}, fmt.Errorf("parse form: %w", err)
	}
	fields = PostFields{
		Title:     r.Form.Get("title"),
		Body:      r.Form.Get("body"),
		Published: r.Form.Get("published") == "true",
	}
	if categoryIDStr := r.Form.Get("category_id"); categoryIDStr != "" {
		categoryID, err := strconv.Atoi(categoryIDStr)
		if err != nil {
			return PostFields{}, fmt.Errorf("category id NaN: %w", err)
		}
		fields.CategoryID = categoryID
	}
	if pubDateStr := r.Form.Get("pub_date"); pubDateStr != "" {
		pubDate, err := time.Parse(time.RFC3339, pubDateStr)
		if err != nil {
			return PostFields{}, fmt.Errorf("malformed pub date: %w", err)
		}
		fields.PubDate = &pubDate
	}
	return fields, nil
}

func intVar(r *http.Request, name string) (int, error) {
	return strconv.Atoi(mux.Vars(r)[name])
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, payload, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, payload any, statusCode int) {
	respJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, statusCode)
}
