package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hasker/hasker/internal/db"
	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/notify"
	"github.com/hasker/hasker/internal/render"
	"github.com/hasker/hasker/internal/routes"
	"github.com/hasker/hasker/internal/utils"
	"github.com/hasker/hasker/web"
	"github.com/rs/zerolog"
)

const usage = `Usage:
	- start
	- migrate [up/down/drop]
`

func main() {
	if len(os.Args) == 1 {
		fmt.Println(usage)
		return
	}
	envConfig := models.ReadEnvConfig()
	switch os.Args[1] {
	case "start":
		server := HaskerServer{EnvConfig: envConfig}
		server.Setup()
		server.Run()
	case "migrate":
		if len(os.Args) < 3 {
			fmt.Println(usage)
			return
		}
		if envConfig.DatabaseURL == "" {
			fmt.Println("HASKER_DATABASE_URL is not set")
			os.Exit(1)
		}
		var err error
		switch os.Args[2] {
		case "up":
			err = db.MigrateUp(envConfig.DatabaseURL, envConfig.MigrationsDir)
		case "down":
			err = db.MigrateDown(envConfig.DatabaseURL, envConfig.MigrationsDir)
		case "drop":
			err = db.Drop(envConfig.DatabaseURL, envConfig.MigrationsDir)
		default:
			fmt.Println(usage)
			return
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("Done")
	default:
		fmt.Println(usage)
	}
}

type HaskerServer struct {
	models.EnvConfig
	addr       string
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	database   db.SharedDB
	templates  render.Templates
	metrics    *routes.Metrics
}

func (server *HaskerServer) setupLogger() {
	var writer io.Writer
	if server.Debug {
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	} else {
		writer = os.Stdout
	}
	log := zerolog.New(writer).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if server.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	server.logger = log
}
func (server *HaskerServer) checkConfig() {
	if err := server.EnvConfig.Validate(); err != nil {
		server.logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if len(server.SecretKey) == 0 {
		server.SecretKey = []byte(utils.GenToken(32))
		server.logger.Warn().Msg("HASKER_SECRET_KEY not set, api tokens won't survive a restart")
	}
}
func (server *HaskerServer) setupTemplates() {
	server.templates = render.GetTemplates(&server.EnvConfig, web.FS)
}
func (server *HaskerServer) setupDB() {
	err := db.MigrateUp(server.DatabaseURL, server.MigrationsDir)
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	database, err := db.Connect(context.Background(), &server.EnvConfig)
	if err != nil {
		server.logger.Fatal().AnErr("Connecting to db", err).Send()
	}

	var mailer notify.Mailer
	if m := notify.NewSMTPMailer(&server.EnvConfig); m != nil {
		mailer = m
	} else {
		server.logger.Info().Msg("HASKER_SMTP_ADDR not set, answer emails are disabled")
	}
	database.SetAnswerHook(notify.NewHook(db.NewNotificationService(database.Pool()), mailer))
	server.database = database
}
func (server *HaskerServer) setupRouter() {
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	server.metrics = routes.NewMetrics(server.database.Pool())
	server.router = routes.NewRouter(&server.EnvConfig, &server.database, server.logger, &server.templates, server.metrics, static)
}
func (server *HaskerServer) setupHttpServer() {
	server.addr = fmt.Sprintf(":%s", server.EnvConfig.Port)
	server.httpServer = &http.Server{
		Addr:         server.addr,
		Handler:      server.router,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 1 * time.Minute,
	}
}
func (server *HaskerServer) Setup() {
	server.setupLogger()
	server.checkConfig()
	server.setupTemplates()
	server.setupDB()
	server.setupRouter()
	server.setupHttpServer()
}
func (server *HaskerServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.httpServer.Shutdown(ctx); err != nil {
		server.logger.Error().
			Err(err).
			Msg("Error shutting down")
	}
	server.database.Close()
}
func (server *HaskerServer) Run() {
	server.logger.Info().Str("server_address", server.addr).Msg("Server is starting")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		err := server.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.logger.Fatal().Err(err).Msg("Server failed")
		}
	}()
	server.logger.Info().Msg("Ready")

	<-ctx.Done()
	stop() // Stop listening for signals
	server.logger.Info().Msg("Shutting down gracefully")
	server.Shutdown()
}
