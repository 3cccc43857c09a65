package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hasker/hasker/internal/models"
	"github.com/rs/zerolog/hlog"
)

// AppError is an error that knows how it should be shown to the user.
type AppError interface {
	error
	Status() int
	UserMessage() string
}

type ErrInternal struct {
	Message string
	Cause   error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %s: %v", e.UserMessage(), e.Cause)
}
func (e *ErrInternal) Unwrap() error { return e.Cause }
func (e *ErrInternal) Status() int   { return http.StatusInternalServerError }
func (e *ErrInternal) UserMessage() string {
	if e.Message == "" {
		return "Internal server error"
	}
	return e.Message
}

type ErrNotFound struct {
	Cause error
	Thing string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("not found: %s: %v", e.Thing, e.Cause)
}
func (e *ErrNotFound) Unwrap() error { return e.Cause }
func (e *ErrNotFound) Status() int   { return http.StatusNotFound }
func (e *ErrNotFound) UserMessage() string {
	if e.Thing == "" {
		return "Not found"
	}
	return fmt.Sprintf("Can't find %s", e.Thing)
}

type ErrBadRequest struct {
	Cause      error
	Motivation string
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("bad request: %s: %v", e.Motivation, e.Cause)
}
func (e *ErrBadRequest) Unwrap() error { return e.Cause }
func (e *ErrBadRequest) Status() int   { return http.StatusBadRequest }
func (e *ErrBadRequest) UserMessage() string {
	if e.Motivation == "" {
		return "Bad request"
	}
	return e.Motivation
}

type ErrMustLogin struct {
	Cause error
}

func (e *ErrMustLogin) Error() string       { return fmt.Sprintf("login required: %v", e.Cause) }
func (e *ErrMustLogin) Unwrap() error       { return e.Cause }
func (e *ErrMustLogin) Status() int         { return http.StatusUnauthorized }
func (e *ErrMustLogin) UserMessage() string { return models.ErrUnauthorized.Error() }

type ErrForbidden struct {
	Cause error
}

func (e *ErrForbidden) Error() string       { return fmt.Sprintf("forbidden: %v", e.Cause) }
func (e *ErrForbidden) Unwrap() error       { return e.Cause }
func (e *ErrForbidden) Status() int         { return http.StatusForbidden }
func (e *ErrForbidden) UserMessage() string { return "You can't do this" }

type ErrTooManyRequests struct{}

func (e *ErrTooManyRequests) Error() string { return "too many requests" }
func (e *ErrTooManyRequests) Status() int   { return http.StatusTooManyRequests }
func (e *ErrTooManyRequests) UserMessage() string {
	return "You are posting too fast. Wait a minute and try again."
}

// toAppError maps domain errors to their http representation.
func toAppError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fieldErrs models.FieldErrors
	switch {
	case errors.Is(err, models.ErrNotFound):
		return &ErrNotFound{Cause: err}
	case errors.Is(err, models.ErrUnauthorized):
		return &ErrMustLogin{Cause: err}
	case errors.Is(err, models.ErrPermDenied):
		return &ErrForbidden{Cause: err}
	case errors.As(err, &fieldErrs),
		errors.Is(err, models.ErrTooManyTags),
		errors.Is(err, models.ErrBadDirection),
		errors.Is(err, models.ErrBadVotableKind),
		errors.Is(err, models.ErrInvalidFormat),
		errors.Is(err, models.ErrInvalidReference):
		return &ErrBadRequest{Cause: err, Motivation: err.Error()}
	}
	return &ErrInternal{Cause: err}
}

func (routes *Routes) HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)

	logger := hlog.FromRequest(r)
	event := logger.Debug()
	if appErr.Status() >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", appErr.Status()).Msg(appErr.UserMessage())

	if _, ok := appErr.(*ErrMustLogin); ok && r.Method == http.MethodGet {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	routes.tmpls.RenderHTMLStatus(w, appErr.Status(), "error", struct {
		Page    Page
		Status  int
		Message string
	}{
		Page:    Page{User: routes.currentUser(r)},
		Status:  appErr.Status(),
		Message: appErr.UserMessage(),
	})
}

// AppHandler adapts a handler returning an AppError to an http.HandlerFunc.
func (routes *Routes) AppHandler(handler func(w http.ResponseWriter, r *http.Request) AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			routes.HandleErr(w, r, err)
		}
	}
}
