package middleware

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladay23/blogicum/internal/auth"
)

// AuthTokenHeader carries the session token. A non-standard request header,
// so browsers will send a preflight/OPTIONS request first:
//	https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS#preflighted_requests
const AuthTokenHeader = "X-Blogicum-Token"

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

// loginChecker resolves a session token to the id of the logged-in user.
// auth.ErrNotLoggedIn is returned for unknown or expired tokens.
type loginChecker interface {
	UserID(ctx context.Context, token string) (int, error)
}

type ViewerMiddlewareHandler struct {
	loginChecker loginChecker
}

func NewViewerMiddlewareHandler(loginChecker loginChecker) *ViewerMiddlewareHandler {
	return &ViewerMiddlewareHandler{
		loginChecker: loginChecker,
	}
}

// InjectViewer resolves the session token to a user id and stores it in the
// request context. Requests without a valid token stay anonymous; whether an
// operation needs authentication is decided further down, per operation.
func (h *ViewerMiddlewareHandler) InjectViewer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AuthTokenHeader)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := h.loginChecker.UserID(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrNotLoggedIn) {
					log.Errorf("[viewer middleware] check token => %s: %s", r.URL.Path, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithViewerID(r.Context(), userID)))
		})
	}
}
