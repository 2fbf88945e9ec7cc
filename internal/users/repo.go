package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladay23/blogicum/internal/auth"
	"github.com/vladay23/blogicum/internal/telemetry/tracing"
	"github.com/vladay23/blogicum/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) AddUser(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO blog_user (username, email, first_name, last_name, password_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUsernameTaken
		}
		return err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUsernameTaken
		}
		return err
	}

	if !rows.Next() {
		return errors.New("unexpected error, failed to insert user")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("user.id", id))
	user.ID = id
	return nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByUsername")
	span.SetAttributes(attribute.String("username", username))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getUser(ctx, `WHERE username = $1`, username)
}

func (r *Repo) GetByID(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByID")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return r.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserAuth exposes the credential slice of a user to the auth service.
func (r *Repo) GetUserAuth(ctx context.Context, username string) (*auth.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, auth.ErrUnknownUser
		}
		return nil, err
	}
	return &auth.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
	}, nil
}

// UpdateProfile changes the user-editable profile fields. The password hash
// and the creation timestamp are untouched.
func (r *Repo) UpdateProfile(ctx context.Context, id int, fields ProfileFields) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateProfile")
	span.SetAttributes(attribute.Int("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`UPDATE blog_user SET username = $1, email = $2, first_name = $3, last_name = $4 WHERE id = $5;`,
		fields.Username, fields.Email, fields.FirstName, fields.LastName, id,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUsernameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) getUser(ctx context.Context, where string, arg any) (*User, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, username, email, first_name, last_name, password_hash, created_at FROM blog_user `+where+`;`,
		arg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrUserNotFound
	}

	var u User
	if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
