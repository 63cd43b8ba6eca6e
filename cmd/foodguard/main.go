package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/vbonduro/foodguard/internal/config"
	"github.com/vbonduro/foodguard/internal/db"
	"github.com/vbonduro/foodguard/internal/foodapi"
	"github.com/vbonduro/foodguard/internal/history"
	"github.com/vbonduro/foodguard/internal/logging"
	"github.com/vbonduro/foodguard/internal/photostore/local"
	"github.com/vbonduro/foodguard/internal/predict"
	claudepredict "github.com/vbonduro/foodguard/internal/predict/claude"
	ollamapredict "github.com/vbonduro/foodguard/internal/predict/ollama"
	"github.com/vbonduro/foodguard/internal/seal"
	"github.com/vbonduro/foodguard/internal/service"
	"github.com/vbonduro/foodguard/internal/session"
	"github.com/vbonduro/foodguard/internal/store"
	"github.com/vbonduro/foodguard/internal/web"
	"github.com/vbonduro/foodguard/internal/web/templates"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	sealer, err := seal.New(cfg.TokenSecret)
	if err != nil {
		logger.Error("failed to initialize token sealing", "error", err)
		return
	}

	sess := session.New(store.NewCredentialStore(database, sealer))
	if err := sess.Hydrate(context.Background()); err != nil {
		logger.Error("failed to restore session", "error", err)
		return
	}
	logger.Info("session restored", "authenticated", sess.Authenticated())

	loc, err := history.LoadLocation(cfg.DisplayTZ)
	if err != nil {
		logger.Error("failed to load display time zone", "error", err)
		return
	}

	photoStg, err := local.NewLibrary(cfg.PhotoPath)
	if err != nil {
		logger.Error("failed to initialize photo library", "error", err)
		return
	}

	client := foodapi.NewClient(cfg.APIURL, cfg.HTTPTimeout, sess)
	predictor := newPredictor(cfg, client, logger)
	if predictor == nil {
		return
	}

	server := web.NewServer(web.Deps{
		Auth:         service.NewAuthService(client, sess, logger),
		Scans:        service.NewScanService(store.NewScanStore(database), predictor, photoStg, logger),
		History:      history.New(client, loc),
		Session:      sess,
		Photos:       photoStg,
		Templates:    templates.FS,
		SugarLimit:   cfg.SugarLimit,
		CookieSecret: cfg.SessionSecret,
	}, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

// newPredictor picks the prediction backend. It returns nil when the
// selected backend is misconfigured.
func newPredictor(cfg *config.Config, client *foodapi.Client, logger *slog.Logger) predict.Predictor {
	switch cfg.PredictBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Error("CLAUDE_API_KEY is required when PREDICT_BACKEND=claude")
			return nil
		}
		logger.Info("using Claude prediction backend", "model", cfg.ClaudeModel)
		return claudepredict.NewPredictor(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	case "ollama":
		logger.Info("using Ollama prediction backend", "model", cfg.OllamaModel)
		return ollamapredict.NewPredictor(cfg.OllamaHost, cfg.OllamaModel)
	default:
		logger.Info("using FoodGuard prediction service", "url", cfg.APIURL)
		return client
	}
}
