package blog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladay23/blogicum/internal/telemetry/tracing"
)

// PostsParams narrows a posts query. Zero values mean "no constraint".
// VisibleOnly applies the non-owner visibility filter: published post,
// published category, publication date not after Now.
type PostsParams struct {
	CategoryID  int
	AuthorID    int
	VisibleOnly bool
	Now         time.Time
}

type ListPostsParams struct {
	PostsParams
	Limit  int
	Offset int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

const postSelect = `
	SELECT
		p.id, p.title, p.body, p.pub_date, p.published,
		p.author_id, u.username, p.category_id, c.slug, c.published,
		(SELECT COUNT(*) FROM comment cm WHERE cm.post_id = p.id),
		p.created_at
	FROM post p
	JOIN category c ON p.category_id = c.id
	JOIN blog_user u ON p.author_id = u.id`

func (r *Repo) AddPost(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.addPost")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if post.PubDate.IsZero() {
		post.PubDate = time.Now()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO post (title, body, pub_date, published, author_id, category_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		post.Title, post.Body, post.PubDate, post.Published, post.AuthorID, post.CategoryID, post.CreatedAt,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return err
	}

	if !rows.Next() {
		return errors.New("unexpected error, failed to insert post")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("post.id", id))
	post.ID = id
	return nil
}

func (r *Repo) GetPost(ctx context.Context, id int) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.getPost")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, postSelect+` WHERE p.id = $1;`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrPostNotFound
	}

	return scanPost(rows)
}

// UpdatePost changes the editable fields of a post. The author and the
// creation timestamp are never updated.
func (r *Repo) UpdatePost(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.updatePost")
	span.SetAttributes(attribute.Int("id", post.ID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE post SET title = $1, body = $2, pub_date = $3, published = $4, category_id = $5 WHERE id = $6;`,
		post.Title, post.Body, post.PubDate, post.Published, post.CategoryID, post.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) DeletePost(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.deletePost")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM post WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *Repo) ListPosts(ctx context.Context, params ListPostsParams) (_ []*Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.listPosts")
	span.SetAttributes(attribute.Int("limit", params.Limit))
	span.SetAttributes(attribute.Int("offset", params.Offset))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		postSelect+`
			WHERE ($1 = 0 OR p.category_id = $1)
				AND ($2 = 0 OR p.author_id = $2)
				AND (NOT $3 OR (p.published AND c.published AND p.pub_date <= $4))
			ORDER BY p.pub_date DESC
			LIMIT $5
			OFFSET $6;`,
		params.CategoryID, params.AuthorID, params.VisibleOnly, params.Now,
		params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (r *Repo) CountPosts(ctx context.Context, params PostsParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.countPosts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*)
			FROM post p
			JOIN category c ON p.category_id = c.id
			WHERE ($1 = 0 OR p.category_id = $1)
				AND ($2 = 0 OR p.author_id = $2)
				AND (NOT $3 OR (p.published AND c.published AND p.pub_date <= $4));`,
		params.CategoryID, params.AuthorID, params.VisibleOnly, params.Now,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to count posts")
}

func (r *Repo) GetCategory(ctx context.Context, slug string) (_ *Category, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.getCategory")
	span.SetAttributes(attribute.String("slug", slug))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, title, description, slug, published, created_at FROM category WHERE slug = $1;`,
		slug,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrCategoryNotFound
	}

	var c Category
	if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Slug, &c.Published, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) AddComment(ctx context.Context, comment *Comment) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.addComment")
	span.SetAttributes(attribute.Int("post.id", comment.PostID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO comment (body, post_id, author_id, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id;`,
		comment.Body, comment.PostID, comment.AuthorID, comment.CreatedAt,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return err
	}

	if !rows.Next() {
		return errors.New("unexpected error, failed to insert comment")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return err
	}
	comment.ID = id
	return nil
}

func (r *Repo) GetComment(ctx context.Context, id int) (_ *Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.getComment")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT cm.id, cm.post_id, cm.author_id, u.username, cm.body, cm.created_at
			FROM comment cm
			JOIN blog_user u ON cm.author_id = u.id
			WHERE cm.id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrCommentNotFound
	}

	var c Comment
	if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorUsername, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) UpdateComment(ctx context.Context, id int, body string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.updateComment")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `UPDATE comment SET body = $1 WHERE id = $2;`, body, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *Repo) DeleteComment(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.deleteComment")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM comment WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// ListComments returns all comments of a post, oldest first.
func (r *Repo) ListComments(ctx context.Context, postID int) (_ []*Comment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.listComments")
	span.SetAttributes(attribute.Int("post.id", postID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT cm.id, cm.post_id, cm.author_id, u.username, cm.body, cm.created_at
			FROM comment cm
			JOIN blog_user u ON cm.author_id = u.id
			WHERE cm.post_id = $1
			ORDER BY cm.created_at ASC;`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var comments []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorUsername, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, nil
}

func scanPost(rows pgx.Rows) (*Post, error) {
	var p Post
	if err := rows.Scan(
		&p.ID, &p.Title, &p.Body, &p.PubDate, &p.Published,
		&p.AuthorID, &p.AuthorUsername, &p.CategoryID, &p.CategorySlug, &p.CategoryPublished,
		&p.CommentCount, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
