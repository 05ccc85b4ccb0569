package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"eltimer/internal/config"
	"eltimer/internal/gateway"
	apphttp "eltimer/internal/http"
	"eltimer/internal/log"
	"eltimer/internal/metrics"
	"eltimer/internal/notify"
	"eltimer/internal/remote"
	"eltimer/internal/session"
	"eltimer/internal/storage"
	"eltimer/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(logLevel())
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("opening local database failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer repo.Close()

	sess := session.Local()
	var remoteBlob gateway.RemoteBlob
	if cfg.RemoteEnabled() {
		client, err := remote.NewClient(ctx, cfg.RemoteDatabaseURL)
		if err != nil {
			logger.Error("connecting to remote database failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()

		if err := client.EnsureSchema(ctx); err != nil {
			logger.Error("preparing remote schema failed", log.FieldError, err.Error())
			os.Exit(1)
		}

		sess, err = signIn(ctx, client, cfg, logger)
		if err != nil {
			os.Exit(1)
		}
		remoteBlob = remote.NewBlobStore(client)
		logger.Info("remote tier connected",
			log.FieldCompanyID, sess.CompanyID,
			log.FieldUserID, sess.UserID,
			"role", sess.Role)
	}

	var notifier gateway.Notifier
	if cfg.AMQPURL != "" {
		n, err := notify.NewNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("connecting to message broker failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer n.Close()
		notifier = n
	}

	gw := gateway.New(repo, remoteBlob, notifier, sess.RemoteScope(),
		cfg.MirrorQueueSize, logger, metrics.New())

	state, err := gw.Load(ctx)
	if err != nil {
		logger.Error("loading state failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("state loaded",
		log.FieldScope, sess.RemoteScope(),
		log.FieldRevision, state.Revision)

	srv := apphttp.NewServer(":"+cfg.Port, store.New(state), gw, sess, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("starting server", "port", cfg.Port, "remote", cfg.RemoteEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-shutdownCtx.Done()
	// Drain the remote mirror only after the server stopped saving.
	gw.Close()
	logger.Info("server stopped gracefully")
}

// signIn authenticates against the remote tier and resolves the
// company scope for this process.
func signIn(ctx context.Context, client *remote.Client, cfg *config.Config, logger *log.Logger) (session.Session, error) {
	auth := remote.NewAuth(client)
	userID, _, err := auth.SignIn(ctx, cfg.RemoteEmail, cfg.RemotePassword)
	if err != nil {
		logger.Error("remote sign-in failed", log.FieldError, err.Error())
		return session.Session{}, err
	}

	sess, err := session.Resolve(ctx, remote.NewDirectory(client), userID, cfg.RemoteCompanyID)
	if err != nil {
		var choice *session.ChoiceError
		switch {
		case errors.As(err, &choice):
			for _, c := range choice.Choices {
				logger.Info("available company",
					log.FieldCompanyID, c.CompanyID, "name", c.Name, "role", c.Role)
			}
			logger.Error("multiple companies available, set REMOTE_COMPANY_ID")
		case errors.Is(err, session.ErrNoMembership):
			logger.Error("user belongs to no company, create one with eltimer-setup")
		default:
			logger.Error("resolving company failed", log.FieldError, err.Error())
		}
		return session.Session{}, err
	}
	return sess, nil
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
