// Package app wires configuration into the services shared by the HTTP
// server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/application"
	appanalysis "github.com/bryanwahyu/retailsight/internal/application/analysis"
	appchat "github.com/bryanwahyu/retailsight/internal/application/chat"
	"github.com/bryanwahyu/retailsight/internal/application/controller"
	appcreative "github.com/bryanwahyu/retailsight/internal/application/creative"
	"github.com/bryanwahyu/retailsight/internal/config"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
	"github.com/bryanwahyu/retailsight/internal/infra/ai/gemini"
	"github.com/bryanwahyu/retailsight/internal/infra/ai/openai"
	"github.com/bryanwahyu/retailsight/internal/infra/db/memory"
	"github.com/bryanwahyu/retailsight/internal/infra/db/mysql"
	"github.com/bryanwahyu/retailsight/internal/infra/db/postgres"
	"github.com/bryanwahyu/retailsight/internal/infra/media"
	"github.com/bryanwahyu/retailsight/internal/middleware"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger

	Model     analysis.Model
	Analysis  *appanalysis.Service
	Metrics   *middleware.Metrics
	Catalog   catalog.Repository
	Encoder   *media.Encoder
	Objects   *media.ObjectSource // nil without minio.endpoint
	Views     *controller.Registry
	Navigator *controller.Navigator
	Chat      *appchat.Controller
	Creative  *appcreative.Service

	db *sql.DB
}

// New builds every service from cfg. cfg must have passed Validate.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: middleware.NewMetrics()}

	model, err := NewModel(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Model = model
	a.Analysis = appanalysis.NewService(model, log, appanalysis.Options{
		Timeout:  cfg.AI.Timeout,
		Retry:    retryPolicy(cfg),
		Observer: a.Metrics,
	})

	if err := a.openCatalog(ctx); err != nil {
		return nil, err
	}

	a.Encoder = media.NewEncoder(cfg.Media.MaxBytes)
	if cfg.ObjectStoreEnabled() {
		objects, err := media.NewObjectSource(ctx, media.ObjectStoreConfig{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Prefix:    cfg.Minio.Prefix,
		}, a.Encoder, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Objects = objects
	}

	clock := application.SystemClock{}
	a.Views = controller.NewRegistry(a.Analysis, log, controller.Options{
		MaxFindings: cfg.Controller.MaxFindings,
		Clock:       clock,
	})
	a.Navigator = controller.NewNavigator(a.Views, log)
	a.Chat = appchat.NewController(a.Analysis, clock, log, appchat.WithMaxSessions(cfg.Controller.MaxSessions))
	a.Creative = appcreative.NewService(a.Analysis, clock, log, cfg.Controller.MaxCampaigns)
	return a, nil
}

// NewModel picks the provider adapter named by ai.provider.
func NewModel(ctx context.Context, cfg *config.Config, log *zap.Logger) (analysis.Model, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.AI.Gemini.APIKey,
			Model:       cfg.AI.Gemini.Model,
			ImageModel:  cfg.AI.Gemini.ImageModel,
			Temperature: cfg.AI.Gemini.Temperature,
		}, log)
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:     cfg.AI.OpenAI.APIKey,
			BaseURL:    cfg.AI.OpenAI.BaseURL,
			Model:      cfg.AI.OpenAI.Model,
			ImageModel: cfg.AI.OpenAI.ImageModel,
		}, log)
	}
	return nil, analysis.Errorf(analysis.ErrConfiguration, "model", "unknown provider %q", cfg.AI.Provider)
}

func retryPolicy(cfg *config.Config) appanalysis.RetryPolicy {
	p := appanalysis.DefaultRetryPolicy()
	r := cfg.AI.Retry
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoff > 0 {
		p.InitialBackoff = r.InitialBackoff
	}
	if r.MaxBackoff > 0 {
		p.MaxBackoff = r.MaxBackoff
	}
	return p
}

func (a *App) openCatalog(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Catalog.Driver {
	case config.DriverMySQL:
		db, err := mysql.Connect(ctx, cfg.CatalogDSN())
		if err != nil {
			return err
		}
		a.db, a.Catalog = db, mysql.NewCatalogRepository(db)
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.CatalogDSN())
		if err != nil {
			return err
		}
		a.db, a.Catalog = db, postgres.NewCatalogRepository(db)
	default:
		a.Catalog = memory.NewCatalogRepo()
	}
	a.Log.Info("catalog ready", zap.String("driver", cfg.Catalog.Driver))
	return nil
}

// Health lists the dependencies probed by /health.
func (a *App) Health() map[string]middleware.HealthChecker {
	checks := map[string]middleware.HealthChecker{}
	if a.db != nil {
		checks["catalog"] = &middleware.DatabaseHealthChecker{DB: a.db}
	}
	if a.Objects != nil {
		checks["objects"] = middleware.CheckerFunc(a.Objects.Check)
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
