package users

import (
	"context"
	"sync"

	"github.com/vladay23/blogicum/internal/auth"
)

var _ usersRepo = (*repoMock)(nil)

type repoMock struct {
	mutex      sync.Mutex
	Users      map[int]*User
	nextUserID int
}

func newRepoMock() *repoMock {
	return &repoMock{
		Users:      make(map[int]*User),
		nextUserID: 1,
	}
}

func (r *repoMock) AddUser(_ context.Context, user *User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	if user.ID == 0 {
		user.ID = r.nextUserID
		r.nextUserID++
	} else if user.ID >= r.nextUserID {
		r.nextUserID = user.ID + 1
	}
	r.Users[user.ID] = user
	return nil
}

func (r *repoMock) GetByUsername(_ context.Context, username string) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *repoMock) GetByID(_ context.Context, id int) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *repoMock) GetUserAuth(ctx context.Context, username string) (*auth.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, auth.ErrUnknownUser
	}
	return &auth.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
	}, nil
}

func (r *repoMock) UpdateProfile(_ context.Context, id int, fields ProfileFields) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, ok := r.Users[id]
	if !ok {
		return ErrUserNotFound
	}
	for _, u := range r.Users {
		if u.ID != id && u.Username == fields.Username {
			return ErrUsernameTaken
		}
	}
	user.Username = fields.Username
	user.Email = fields.Email
	user.FirstName = fields.FirstName
	user.LastName = fields.LastName
	return nil
}
