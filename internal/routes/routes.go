package routes

import (
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hasker/hasker/internal/db"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/render"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Routes struct {
	envConfig *models.EnvConfig
	db        *db.SharedDB
	log       zerolog.Logger
	tmpls     *render.Templates
	metrics   *Metrics
	limiter   *PostLimiter
	static    fs.FS
}

// Page is the data every html page receives for the layout.
type Page struct {
	User     *models.User
	Trending []models.QuestionView
	Search   string
}

func NewRouter(config *models.EnvConfig, sdb *db.SharedDB, log zerolog.Logger, tmpls *render.Templates, metrics *Metrics, static fs.FS) chi.Router {
	routes := &Routes{
		envConfig: config,
		db:        sdb,
		log:       log,
		tmpls:     tmpls,
		metrics:   metrics,
		limiter:   NewPostLimiter(config.PostsPerMinute),
		static:    static,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("")
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(config.MediaDir))))
	r.Route("/api", routes.APIRouter)

	r.Group(func(r chi.Router) {
		r.Use(routes.UserCtx)

		r.Get("/", routes.AppHandler(routes.GetIndex))
		r.Get("/tag/{slug}", routes.AppHandler(routes.GetTag))
		r.Get("/search", routes.AppHandler(routes.GetSearch))
		r.Get("/tag-typeahead", routes.AppHandler(routes.GetTagTypeahead))
		r.Route("/question/{questionID}", func(r chi.Router) {
			r.Use(routes.QuestionCtx)
			r.Get("/", routes.AppHandler(routes.GetQuestion))
			r.With(routes.EnforceCtx(UserHCtxKey), routes.LimitPosts).
				Post("/", routes.AppHandler(routes.PostAnswer))
		})
		r.Post("/vote/{questionID}", routes.PostVote)
		r.Post("/accept-answer/{questionID}/{answerID}", routes.PostAcceptAnswer)

		r.Group(func(r chi.Router) {
			r.Use(routes.EnforceCtx(UserHCtxKey))
			r.Get("/ask", routes.AppHandler(routes.GetAsk))
			r.With(routes.LimitPosts).Post("/ask", routes.AppHandler(routes.PostAsk))
			r.Get("/settings", routes.AppHandler(routes.GetSettings))
			r.Post("/settings", routes.AppHandler(routes.PostSettings))
			r.Get("/notifications", routes.AppHandler(routes.GetNotifications))
			r.Post("/notifications/{notifID}/delete", routes.AppHandler(routes.DeleteNotification))
		})

		r.Get("/sign-up", routes.AppHandler(routes.GetSignup))
		r.Post("/sign-up", routes.AppHandler(routes.PostSignup))
		r.Get("/login", routes.AppHandler(routes.GetLogin))
		r.Post("/login", routes.AppHandler(routes.PostLogin))
		r.Post("/logout", routes.AppHandler(routes.PostLogout))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		routes.HandleErr(w, r, &ErrNotFound{Thing: "this page"})
	})
	return r
}

// page builds the layout data, including the trending sidebar.
func (routes *Routes) page(r *http.Request) (Page, error) {
	trending, err := routes.db.Trending(r.Context())
	if err != nil {
		return Page{}, err
	}
	return Page{
		User:     routes.currentUser(r),
		Trending: trending,
		Search:   r.URL.Query().Get("q"),
	}, nil
}

// pageParam reads ?page=, defaulting to the first page.
func pageParam(r *http.Request, size int) models.Page {
	n, _ := strconv.Atoi(r.URL.Query().Get("page"))
	return models.NewPage(n, size)
}
