package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hasker/hasker/internal/db"
	"github.com/hasker/hasker/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type ctxKey int

const (
	UserHCtxKey ctxKey = iota
	UserCtxKey
	QuestionCtxKey
)

const tokenCookie = "token"

func GetUserH(r *http.Request) *db.UserH {
	userH, _ := r.Context().Value(UserHCtxKey).(*db.UserH)
	return userH
}
func (routes *Routes) currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserCtxKey).(*models.User)
	return user
}
func GetQuestion(r *http.Request) *models.QuestionView {
	q, _ := r.Context().Value(QuestionCtxKey).(*models.QuestionView)
	return q
}

// UserCtx loads the logged user, if any, from the session cookie.
func (routes *Routes) UserCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		userH, err := routes.db.GetUserH(r.Context(), cookie.Value)
		if errors.Is(err, models.ErrNotFound) {
			// Stale session
			clearTokenCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			routes.HandleErr(w, r, err)
			return
		}
		user, err := userH.Read(r.Context())
		if err != nil {
			routes.HandleErr(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Int("user_id", user.ID)
		})
		ctx := context.WithValue(r.Context(), UserHCtxKey, userH)
		ctx = context.WithValue(ctx, UserCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnforceCtx fails the request with ErrMustLogin (or not found for other
// keys) when ctxKey is missing from the context.
func (routes *Routes) EnforceCtx(key ctxKey) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Value(key) != nil {
				next.ServeHTTP(w, r)
				return
			}
			if key == UserHCtxKey {
				routes.HandleErr(w, r, &ErrMustLogin{})
				return
			}
			routes.HandleErr(w, r, &ErrNotFound{})
		})
	}
}

// QuestionCtx loads the question named by the {questionID} url param.
func (routes *Routes) QuestionCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		id, err := strconv.Atoi(chi.URLParam(r, "questionID"))
		if err != nil {
			return &ErrNotFound{Cause: err, Thing: "question"}
		}
		q, err := routes.db.ReadQuestion(r.Context(), id)
		if errors.Is(err, models.ErrNotFound) {
			return &ErrNotFound{Cause: err, Thing: "question"}
		}
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		ctx := context.WithValue(r.Context(), QuestionCtxKey, q)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func setTokenCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
