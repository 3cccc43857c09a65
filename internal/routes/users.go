package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/utils"
	"github.com/rs/zerolog/hlog"
)

const (
	maxAvatarSize = 2 << 20
	avatarsDir    = "avatars"
)

var avatarExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type authForm struct {
	Page     Page
	Username string
	Email    string
	Next     string
	Errors   models.FieldErrors
}

func (routes *Routes) GetSignup(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.tmpls.RenderHTML(w, "signup", authForm{Page: page})
	return nil
}

func (routes *Routes) PostSignup(w http.ResponseWriter, r *http.Request) AppError {
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return &ErrBadRequest{Cause: err, Motivation: "Can't read the form"}
	}
	req := &models.SignupReq{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Passwd:   r.FormValue("password1"),
		Passwd2:  r.FormValue("password2"),
	}

	renderErrs := func(errs models.FieldErrors) AppError {
		page, err := routes.page(r)
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		routes.tmpls.RenderHTMLStatus(w, http.StatusBadRequest, "signup", authForm{
			Page:     page,
			Username: req.Username,
			Email:    req.Email,
			Errors:   errs,
		})
		return nil
	}

	userH, err := routes.db.CreateUser(r.Context(), req)
	var fieldErrs models.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		return renderErrs(fieldErrs)
	case errors.Is(err, models.ErrUsernameAlreadyUsed):
		return renderErrs(models.FieldErrors{"username": {err.Error()}})
	case errors.Is(err, models.ErrEmailAlreadyUsed):
		return renderErrs(models.FieldErrors{"email": {err.Error()}})
	case err != nil:
		return &ErrInternal{Cause: err, Message: "Error signing up"}
	}

	avatar, err := routes.saveAvatar(r)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Saving avatar at sign up")
	} else if avatar != "" {
		_, err = userH.UpdateSettings(r.Context(), &models.SettingsReq{Email: req.Email}, avatar)
		if err != nil {
			routes.removeMedia(r, avatar)
			hlog.FromRequest(r).Warn().Err(err).Msg("Setting avatar at sign up")
		}
	}

	token, err := routes.db.Login(r.Context(), req.Username, req.Passwd)
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Error logging in"}
	}
	setTokenCookie(w, token, !routes.envConfig.Debug)
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

func (routes *Routes) GetLogin(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.tmpls.RenderHTML(w, "login", authForm{Page: page, Next: r.URL.Query().Get("next")})
	return nil
}

func (routes *Routes) PostLogin(w http.ResponseWriter, r *http.Request) AppError {
	username := r.FormValue("username")
	next := r.FormValue("next")

	token, err := routes.db.Login(r.Context(), username, r.FormValue("password"))
	if errors.Is(err, models.ErrBadCredentials) {
		page, err := routes.page(r)
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		routes.tmpls.RenderHTMLStatus(w, http.StatusBadRequest, "login", authForm{
			Page:     page,
			Username: username,
			Next:     next,
			Errors:   models.FieldErrors{"__all__": {err.Error()}},
		})
		return nil
	}
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Error logging in"}
	}

	setTokenCookie(w, token, !routes.envConfig.Debug)
	http.Redirect(w, r, safeRedirect(next), http.StatusSeeOther)
	return nil
}

// safeRedirect keeps redirects on this site.
func safeRedirect(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (routes *Routes) PostLogout(w http.ResponseWriter, r *http.Request) AppError {
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		if err := routes.db.Signout(r.Context(), cookie.Value); err != nil {
			return &ErrInternal{Cause: err, Message: "Error logging out"}
		}
	}
	clearTokenCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

type settingsForm struct {
	Page   Page
	Email  string
	Errors models.FieldErrors
}

func (routes *Routes) GetSettings(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.tmpls.RenderHTML(w, "settings", settingsForm{Page: page, Email: page.User.Email})
	return nil
}

func (routes *Routes) PostSettings(w http.ResponseWriter, r *http.Request) AppError {
	userH := GetUserH(r)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return &ErrBadRequest{Cause: err, Motivation: "Can't read the form"}
	}
	req := &models.SettingsReq{
		Email:       r.FormValue("email"),
		ClearAvatar: r.FormValue("avatar-clear") != "",
	}

	renderErrs := func(errs models.FieldErrors) AppError {
		page, err := routes.page(r)
		if err != nil {
			return &ErrInternal{Cause: err}
		}
		routes.tmpls.RenderHTMLStatus(w, http.StatusBadRequest, "settings", settingsForm{
			Page:   page,
			Email:  req.Email,
			Errors: errs,
		})
		return nil
	}

	avatar, err := routes.saveAvatar(r)
	if err != nil {
		return renderErrs(models.FieldErrors{"avatar": {err.Error()}})
	}
	old, err := userH.UpdateSettings(r.Context(), req, avatar)
	if err != nil {
		routes.removeMedia(r, avatar)
	}
	var fieldErrs models.FieldErrors
	if errors.As(err, &fieldErrs) {
		return renderErrs(fieldErrs)
	}
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Error saving settings"}
	}
	routes.removeMedia(r, old)
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

// saveAvatar stores the uploaded "avatar" file under the media directory
// and returns its path relative to it, or "" when nothing was uploaded.
func (routes *Routes) saveAvatar(r *http.Request) (string, error) {
	file, header, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	if header.Size > maxAvatarSize {
		return "", fmt.Errorf("Avatar must be smaller than %d MB", maxAvatarSize>>20)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("Can't read avatar: %w", err)
	}
	ext, ok := avatarExts[http.DetectContentType(sniff[:n])]
	if !ok {
		return "", errors.New("Upload a valid image: png, jpeg, gif or webp")
	}

	dir := filepath.Join(routes.envConfig.MediaDir, avatarsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := utils.GenToken(16) + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := dst.Write(sniff[:n]); err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return path.Join(avatarsDir, name), nil
}

func (routes *Routes) removeMedia(r *http.Request, rel string) {
	if rel == "" {
		return
	}
	err := os.Remove(filepath.Join(routes.envConfig.MediaDir, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		hlog.FromRequest(r).Warn().Err(err).Str("file", rel).Msg("Removing media file")
	}
}

type notificationsPage struct {
	Page   Page
	Notifs []models.NotifView
}

func (routes *Routes) GetNotifications(w http.ResponseWriter, r *http.Request) AppError {
	page, err := routes.page(r)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	notifs, err := GetUserH(r).ListNotifs(r.Context())
	if err != nil {
		return &ErrInternal{Cause: err, Message: "Can't list notifications"}
	}
	routes.tmpls.RenderHTML(w, "notifications", notificationsPage{Page: page, Notifs: notifs})
	return nil
}

func (routes *Routes) DeleteNotification(w http.ResponseWriter, r *http.Request) AppError {
	notifID, err := strconv.Atoi(chi.URLParam(r, "notifID"))
	if err != nil {
		return &ErrNotFound{Cause: err, Thing: "notification"}
	}
	err = GetUserH(r).DeleteNotif(r.Context(), notifID)
	if errors.Is(err, models.ErrNotFound) {
		return &ErrNotFound{Cause: err, Thing: "notification"}
	}
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
	return nil
}
