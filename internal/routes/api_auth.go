package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hasker/hasker/internal/models"
	"github.com/rs/zerolog/hlog"
)

const apiTokenTTL = 24 * time.Hour

var errBadToken = errors.New("invalid token")

// IssueToken signs a bearer token for userID.
func IssueToken(secret []byte, userID int, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(apiTokenTTL)),
	})
	return token.SignedString(secret)
}

// ParseToken checks a bearer token and returns the user id it was issued for.
func ParseToken(secret []byte, tokenStr string) (int, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadToken, err)
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", errBadToken, claims.Subject)
	}
	return userID, nil
}

type apiDetail struct {
	Detail string `json:"detail"`
}

func apiUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSON(w, http.StatusUnauthorized, apiDetail{detail})
}

// APIAuth requires either a bearer token or basic credentials.
func (routes *Routes) APIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		auth := r.Header.Get("Authorization")

		var userID int
		switch {
		case strings.HasPrefix(auth, "Bearer "):
			id, err := ParseToken(routes.envConfig.SecretKey, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Rejected api token")
				apiUnauthorized(w, "Invalid token.")
				return
			}
			userID = id
		case strings.HasPrefix(auth, "Basic "):
			username, passwd, ok := r.BasicAuth()
			if !ok {
				apiUnauthorized(w, "Invalid basic header.")
				return
			}
			userH, err := routes.db.Authenticate(ctx, username, passwd)
			if errors.Is(err, models.ErrBadCredentials) {
				apiUnauthorized(w, "Invalid username/password.")
				return
			}
			if err != nil {
				routes.apiInternal(w, r, err)
				return
			}
			userID = userH.ID()
		default:
			apiUnauthorized(w, "Authentication credentials were not provided.")
			return
		}

		userH, err := routes.db.GetUserHByID(ctx, userID)
		if errors.Is(err, models.ErrNotFound) {
			apiUnauthorized(w, "User not found.")
			return
		}
		if err != nil {
			routes.apiInternal(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, UserHCtxKey, userH)))
	})
}

type tokenReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PostToken exchanges username and password, as form or json, for a bearer token.
func (routes *Routes) PostToken(w http.ResponseWriter, r *http.Request) {
	req := tokenReq{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiDetail{"Malformed json."})
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	userH, err := routes.db.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, models.ErrBadCredentials) {
		writeJSON(w, http.StatusBadRequest, apiDetail{"Unable to log in with provided credentials."})
		return
	}
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}

	token, err := IssueToken(routes.envConfig.SecretKey, userH.ID(), time.Now())
	if err != nil {
		routes.apiInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{token})
}

func (routes *Routes) apiInternal(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("API error")
	writeJSON(w, http.StatusInternalServerError, apiDetail{"Internal server error."})
}
