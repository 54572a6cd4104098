package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/avatar"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-auth-go", "store", cfg.StoreDriver, "addr", cfg.Addr)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("store: %v", err)
	}
	defer closeStore()

	notifier, closeNotifier, err := openNotifier(cfg, sugar)
	if err != nil {
		sugar.Fatalf("mail: %v", err)
	}
	defer closeNotifier()
	dispatcher := mail.NewDispatcher(notifier, sugar.Named("mail"), cfg.Dispatcher)

	codec, err := token.NewCodec(cfg.JWTSecret,
		token.WithIssuer(cfg.JWTIssuer),
		token.WithStrictPurpose(cfg.StrictPurpose),
	)
	if err != nil {
		sugar.Fatalf("token codec: %v", err)
	}
	hasher, err := user.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		sugar.Fatalf("hasher: %v", err)
	}

	svc := user.NewUserService(store, hasher, codec, dispatcher,
		mail.Templates{ClientURL: cfg.ClientURL},
		avatar.NewGravatar(),
		sugar.Named("user"),
		user.ServiceConfig{SessionTTL: cfg.SessionTTL, ActionTTL: cfg.ActionTTL},
	)

	// mount http server
	handler := router.RegisterRoutes(sugar, router.Options{
		BasePath: cfg.BasePath,
		Users:    user.NewHandler(svc, sugar.Named("http")),
		Guard:    token.NewGuard(codec),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Info("service is running; press Ctrl+C to stop")
	<-ctx.Done()
	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	mailCtx, cancelMail := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelMail()
	if err := dispatcher.Close(mailCtx); err != nil {
		sugar.Warnf("mail dispatcher shutdown: %v", err)
	}

	sugar.Info("goodbye")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (user.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; accounts are lost on restart")
		return userrepo.NewMemoryUserRepo(), func() {}, nil

	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		repo := userrepo.NewMongoUserRepo(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		closer := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Warnf("mongo disconnect: %v", err)
			}
		}
		return repo, closer, nil

	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, db, "up", logger.Named("migrate")); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		closer := func() {
			if err := db.Close(); err != nil {
				logger.Warnf("db close: %v", err)
			}
		}
		return userrepo.NewUserRepo(db), closer, nil
	}
}

func openNotifier(cfg config.Config, logger *zap.SugaredLogger) (mail.Notifier, func(), error) {
	if !cfg.SMTP.Enabled() {
		logger.Warn("MAIL_HOST/MAIL_FROM not set; mails are written to the log")
		return mail.NewLogNotifier(logger.Named("mail")), func() {}, nil
	}
	n, err := mail.NewSMTPNotifier(cfg.SMTP)
	if err != nil {
		return nil, nil, err
	}
	return n, func() { _ = n.Close() }, nil
}
