package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladay23/blogicum/internal/auth"
	"github.com/vladay23/blogicum/internal/middleware"
	"github.com/vladay23/blogicum/internal/telemetry/metrics"
	"github.com/vladay23/blogicum/pkg"
)

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID int    `json:"user_id"`
}

type usersRepo interface {
	AddUser(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int) (*User, error)
	UpdateProfile(ctx context.Context, id int, fields ProfileFields) error
}

type Handler struct {
	repo        usersRepo
	authService *auth.Service
	metrics     *metrics.Manager
}

func NewHandler(
	repo usersRepo,
	authService *auth.Service,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:        repo,
		authService: authService,
		metrics:     metrics,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
) {
	router.HandleFunc("/register", handler.handleRegister).Methods("POST", "OPTIONS").Name("register")
	router.Handle(
		"/a/login",
		middleware.RateLimit(rateLimiter, "login", loginAllowedPerMin)(http.HandlerFunc(handler.handleLogin)),
	).Methods("POST", "OPTIONS").Name("login")
	router.HandleFunc("/a/logout", handler.handleLogout).Methods("GET", "OPTIONS").Name("logout")
	router.HandleFunc("/profile", handler.handleUpdateProfile).Methods("PUT", "OPTIONS").Name("update-profile")
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var registerReq registerRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
			log.Errorf("register, unmarshal json params: %s", err)
			http.Error(w, "register failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("register failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		registerReq = registerRequest{
			Username:  r.Form.Get("username"),
			Password:  r.Form.Get("password"),
			Email:     r.Form.Get("email"),
			FirstName: r.Form.Get("first_name"),
			LastName:  r.Form.Get("last_name"),
		}
	}

	if registerReq.Username == "" || registerReq.Password == "" {
		http.Error(w, ErrUserInvalid.Error(), http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	user := &User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		FirstName:    registerReq.FirstName,
		LastName:     registerReq.LastName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	if err := handler.repo.AddUser(r.Context(), user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			http.Error(w, ErrUsernameTaken.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("register failed: %s", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterUsersRegistered.Inc()
	log.Tracef("new user %d: [%s] registered", user.ID, user.Username)

	writeJSONStatus(w, user, http.StatusCreated)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var credentials auth.Credentials
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			http.Error(w, "login failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		credentials = auth.Credentials{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	token, userID, err := handler.authService.Login(r.Context(), credentials, time.Now())
	if err != nil {
		if errors.Is(err, auth.ErrWrongCredentials) {
			http.Error(w, "wrong username or password", http.StatusUnauthorized)
			return
		}
		log.Errorf("login failed: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, loginResponse{Token: token, UserID: userID}, http.StatusOK)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(middleware.AuthTokenHeader)
	if token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(r.Context(), token)
	if err != nil {
		log.Errorf("logout failed: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID := auth.ViewerIDFromContext(r.Context())
	if actorID == 0 {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var fields ProfileFields
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			log.Errorf("update profile, unmarshal json params: %s", err)
			http.Error(w, "update profile failed", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("update profile failed, parse form error: %s", err)
			http.Error(w, "parse form error", http.StatusInternalServerError)
			return
		}
		fields = ProfileFields{
			Username:  r.Form.Get("username"),
			Email:     r.Form.Get("email"),
			FirstName: r.Form.Get("first_name"),
			LastName:  r.Form.Get("last_name"),
		}
	}

	if fields.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.UpdateProfile(r.Context(), actorID, fields); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			http.Error(w, ErrUsernameTaken.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("update profile failed: %s", err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	user, err := handler.repo.GetByID(r.Context(), actorID)
	if err != nil {
		log.Errorf("update profile, get user %d: %s", actorID, err)
		http.Error(w, "update profile failed", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, user, http.StatusOK)
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
