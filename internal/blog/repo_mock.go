package blog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ blogRepo = (*repoMock)(nil)

// same error shape the real repo gets from postgres on a bad category id
var errMockForeignKey = &pgconn.PgError{Code: "23503", Message: "foreign key violation"}

type repoMock struct {
	mutex      sync.Mutex
	Posts      map[int]*Post
	Categories map[int]*Category
	Comments   map[int]*Comment
	nextPostID int
	nextCommID int
}

func newRepoMock() *repoMock {
	return &repoMock{
		Posts:      make(map[int]*Post),
		Categories: make(map[int]*Category),
		Comments:   make(map[int]*Comment),
		nextPostID: 1,
		nextCommID: 1,
	}
}

func (r *repoMock) AddCategory(c *Category) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Categories[c.ID] = c
}

func (r *repoMock) AddPost(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Categories[post.CategoryID]; !ok {
		return errMockForeignKey
	}
	if post.ID == 0 {
		post.ID = r.nextPostID
		r.nextPostID++
	} else if post.ID >= r.nextPostID {
		r.nextPostID = post.ID + 1
	}
	if post.PubDate.IsZero() {
		post.PubDate = time.Now()
	}
	r.Posts[post.ID] = post
	return nil
}

func (r *repoMock) GetPost(_ context.Context, id int) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	p := r.annotated(post)
	return &p, nil
}

func (r *repoMock) UpdatePost(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.Posts[post.ID]
	if !ok {
		return ErrPostNotFound
	}
	if _, ok := r.Categories[post.CategoryID]; !ok {
		return errMockForeignKey
	}
	stored.Title = post.Title
	stored.Body = post.Body
	stored.PubDate = post.PubDate
	stored.Published = post.Published
	stored.CategoryID = post.CategoryID
	return nil
}

func (r *repoMock) DeletePost(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.Posts, id)
	for cid, c := range r.Comments {
		if c.PostID == id {
			delete(r.Comments, cid)
		}
	}
	return nil
}

func (r *repoMock) ListPosts(_ context.Context, params ListPostsParams) ([]*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	matched := r.match(params.PostsParams)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PubDate.After(matched[j].PubDate)
	})

	if params.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[params.Offset:]
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	return matched, nil
}

func (r *repoMock) CountPosts(_ context.Context, params PostsParams) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.match(params)), nil
}

func (r *repoMock) GetCategory(_ context.Context, slug string) (*Category, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, c := range r.Categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (r *repoMock) AddComment(_ context.Context, comment *Comment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if comment.ID == 0 {
		comment.ID = r.nextCommID
		r.nextCommID++
	} else if comment.ID >= r.nextCommID {
		r.nextCommID = comment.ID + 1
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	r.Comments[comment.ID] = comment
	return nil
}

func (r *repoMock) GetComment(_ context.Context, id int) (*Comment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	comment, ok := r.Comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	return comment, nil
}

func (r *repoMock) UpdateComment(_ context.Context, id int, body string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	comment, ok := r.Comments[id]
	if !ok {
		return ErrCommentNotFound
	}
	comment.Body = body
	return nil
}

func (r *repoMock) DeleteComment(_ context.Context, id int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Comments[id]; !ok {
		return ErrCommentNotFound
	}
	delete(r.Comments, id)
	return nil
}

func (r *repoMock) ListComments(_ context.Context, postID int) ([]*Comment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var comments []*Comment
	for _, c := range r.Comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// match mirrors the SQL filtering of the real repo, comment counts included.
func (r *repoMock) match(params PostsParams) []*Post {
	var matched []*Post
	for _, post := range r.Posts {
		if params.CategoryID != 0 && post.CategoryID != params.CategoryID {
			continue
		}
		if params.AuthorID != 0 && post.AuthorID != params.AuthorID {
			continue
		}
		if params.VisibleOnly {
			category, ok := r.Categories[post.CategoryID]
			if !ok || !post.Published || !category.Published || post.PubDate.After(params.Now) {
				continue
			}
		}
		p := r.annotated(post)
		matched = append(matched, &p)
	}
	return matched
}

func (r *repoMock) annotated(post *Post) Post {
	p := *post
	if category, ok := r.Categories[post.CategoryID]; ok {
		p.CategorySlug = category.Slug
		p.CategoryPublished = category.Published
	}
	p.CommentCount = 0
	for _, c := range r.Comments {
		if c.PostID == post.ID {
			p.CommentCount++
		}
	}
	return p
}
