package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/vladay23/blogicum/internal/telemetry/tracing"
	"github.com/vladay23/blogicum/internal/users"
	"github.com/vladay23/blogicum/pkg"
)

type blogRepo interface {
	AddPost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id int) (*Post, error)
	UpdatePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id int) error
	ListPosts(ctx context.Context, params ListPostsParams) ([]*Post, error)
	CountPosts(ctx context.Context, params PostsParams) (int, error)
	GetCategory(ctx context.Context, slug string) (*Category, error)
	AddComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id int) (*Comment, error)
	UpdateComment(ctx context.Context, id int, body string) error
	DeleteComment(ctx context.Context, id int) error
	ListComments(ctx context.Context, postID int) ([]*Comment, error)
}

type profileSource interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

// PostFields are the author-editable parts of a post. The author itself is
// never taken from the client, it always comes from the acting identity.
type PostFields struct {
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	CategoryID int        `json:"category_id"`
	PubDate    *time.Time `json:"pub_date,omitempty"`
	Published  bool       `json:"published"`
}

type Service struct {
	repo     blogRepo
	profiles profileSource
	now      func() time.Time
}

func NewService(repo blogRepo, profiles profileSource) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		now:      time.Now,
	}
}

// ListIndex returns one page of the global listing: posts visible to any
// non-author viewer, newest publication first.
func (s *Service) ListIndex(ctx context.Context, page int) (_ []*Post, _ Pagination, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.listIndex")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	params := PostsParams{VisibleOnly: true, Now: s.now()}
	return s.listPage(ctx, params, page)
}

// ListCategory returns the category resolved by slug and one page of its
// visible posts. An unknown slug and an unpublished category both yield
// ErrCategoryNotFound, hidden categories do not leak their existence.
func (s *Service) ListCategory(ctx context.Context, slug string, page int) (_ *Category, _ []*Post, _ Pagination, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.listCategory")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	category, err := s.repo.GetCategory(ctx, slug)
	if err != nil {
		return nil, nil, Pagination{}, err
	}
	if !category.Published {
		return nil, nil, Pagination{}, ErrCategoryNotFound
	}

	params := PostsParams{CategoryID: category.ID, VisibleOnly: true, Now: s.now()}
	posts, pagination, err := s.listPage(ctx, params, page)
	if err != nil {
		return nil, nil, Pagination{}, err
	}
	return category, posts, pagination, nil
}

// ListProfile returns the profile of the named user and one page of their
// posts. The visibility filter is skipped when the viewer is the profile
// owner, so the owner sees unpublished and future-dated posts too.
func (s *Service) ListProfile(ctx context.Context, username string, viewerID, page int) (_ *users.User, _ []*Post, _ Pagination, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.listProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, Pagination{}, err
	}

	params := PostsParams{
		AuthorID:    profile.ID,
		VisibleOnly: viewerID != profile.ID,
		Now:         s.now(),
	}
	posts, pagination, err := s.listPage(ctx, params, page)
	if err != nil {
		return nil, nil, Pagination{}, err
	}
	return profile, posts, pagination, nil
}

// GetPostDetail returns a post and its comments. A post hidden from the
// viewer is indistinguishable from a non-existent one.
func (s *Service) GetPostDetail(ctx context.Context, id, viewerID int) (_ *Post, _ []*Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.getPostDetail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !post.VisibleTo(viewerID, s.now()) {
		return nil, nil, ErrPostNotFound
	}

	comments, err := s.repo.ListComments(ctx, post.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list comments: %w", err)
	}
	return post, comments, nil
}

func (s *Service) CreatePost(ctx context.Context, actorID int, fields PostFields) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.createPost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if actorID == 0 {
		return nil, ErrAuthRequired
	}
	if fields.Title == "" || fields.Body == "" {
		return nil, ErrPostInvalid
	}

	post := &Post{
		Title:      fields.Title,
		Body:       fields.Body,
		Published:  fields.Published,
		AuthorID:   actorID,
		CategoryID: fields.CategoryID,
	}
	if fields.PubDate != nil {
		post.PubDate = *fields.PubDate
	}

	if err := s.repo.AddPost(ctx, post); err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrUnknownCategory
		}
		return nil, fmt.Errorf("add post: %w", err)
	}
	return post, nil
}

// UpdatePost lets the author change a post. Non-authors get ErrNotOwner so
// that callers can fall back to the post's read view instead of an error.
func (s *Service) UpdatePost(ctx context.Context, id, actorID int, fields PostFields) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.updatePost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	post, err := s.guardPost(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if fields.Title == "" || fields.Body == "" {
		return nil, ErrPostInvalid
	}

	post.Title = fields.Title
	post.Body = fields.Body
	post.Published = fields.Published
	if fields.CategoryID != 0 {
		post.CategoryID = fields.CategoryID
	}
	if fields.PubDate != nil {
		post.PubDate = *fields.PubDate
	}

	if err := s.repo.UpdatePost(ctx, post); err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrUnknownCategory
		}
		return nil, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, id, actorID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.deletePost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := s.guardPost(ctx, id, actorID); err != nil {
		return err
	}
	return s.repo.DeletePost(ctx, id)
}

func (s *Service) CreateComment(ctx context.Context, postID, actorID int, body string) (_ *Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.createComment")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if actorID == 0 {
		return nil, ErrAuthRequired
	}
	if body == "" {
		return nil, ErrCommentInvalid
	}

	// unlike listings, commenting only needs the post to exist
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	comment := &Comment{
		PostID:   postID,
		AuthorID: actorID,
		Body:     body,
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}

// UpdateComment lets the comment author change it. On ErrNotOwner the
// existing comment is returned too, so that callers can redirect to its post.
func (s *Service) UpdateComment(ctx context.Context, id, actorID int, body string) (_ *Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.updateComment")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	comment, err := s.guardComment(ctx, id, actorID)
	if err != nil {
		return comment, err
	}
	if body == "" {
		return nil, ErrCommentInvalid
	}

	if err := s.repo.UpdateComment(ctx, id, body); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	comment.Body = body
	return comment, nil
}

// DeleteComment removes the comment and returns the id of its post, also on
// ErrNotOwner, so that callers can redirect to the post detail view.
func (s *Service) DeleteComment(ctx context.Context, id, actorID int) (postID int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.deleteComment")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	comment, err := s.guardComment(ctx, id, actorID)
	if err != nil {
		if comment != nil {
			return comment.PostID, err
		}
		return 0, err
	}
	if err := s.repo.DeleteComment(ctx, id); err != nil {
		return 0, err
	}
	return comment.PostID, nil
}

// guardPost is the ownership check shared by post mutations: the post must
// exist, the actor must be authenticated and must be the author.
func (s *Service) guardPost(ctx context.Context, id, actorID int) (*Post, error) {
	if actorID == 0 {
		return nil, ErrAuthRequired
	}
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, ErrNotOwner
	}
	return post, nil
}

func (s *Service) guardComment(ctx context.Context, id, actorID int) (*Comment, error) {
	if actorID == 0 {
		return nil, ErrAuthRequired
	}
	comment, err := s.repo.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actorID {
		return comment, ErrNotOwner
	}
	return comment, nil
}

func (s *Service) listPage(ctx context.Context, params PostsParams, page int) ([]*Post, Pagination, error) {
	total, err := s.repo.CountPosts(ctx, params)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("count posts: %w", err)
	}

	totalPages := (total + PageSize - 1) / PageSize
	page = clampPage(page, totalPages)

	posts, err := s.repo.ListPosts(ctx, ListPostsParams{
		PostsParams: params,
		Limit:       PageSize,
		Offset:      (page - 1) * PageSize,
	})
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list posts: %w", err)
	}

	return posts, Pagination{
		Page:       page,
		Size:       PageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// clampPage snaps an out-of-range page to the nearest valid one instead of
// failing the request.
func clampPage(page, totalPages int) int {
	// an empty listing still has a first page
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
