package blog

import (
	"errors"
	"time"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrAuthRequired     = errors.New("authentication required")
	ErrNotOwner         = errors.New("actor is not the owner")
	ErrPostInvalid      = errors.New("post title or body empty")
	ErrCommentInvalid   = errors.New("comment body empty")
	ErrUnknownCategory  = errors.New("unknown category")
)

// PageSize is the fixed number of posts per listing page.
const PageSize = 10

type Category struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
}

type Post struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	PubDate        time.Time `json:"pub_date"`
	Published      bool      `json:"published"`
	AuthorID       int       `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	CategoryID     int       `json:"category_id"`
	CategorySlug   string    `json:"category_slug"`
	// CategoryPublished rides along from the category join; it is an input
	// to the visibility check, not part of the post payload itself
	CategoryPublished bool      `json:"-"`
	CommentCount      int       `json:"comment_count"`
	CreatedAt         time.Time `json:"created_at"`
}

type Comment struct {
	ID             int       `json:"id"`
	PostID         int       `json:"post_id"`
	AuthorID       int       `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
