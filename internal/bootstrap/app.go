package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"retinascan/internal/cache"
	"retinascan/internal/config"
	"retinascan/internal/logger"
	redisClient "retinascan/internal/platform/redis"
	"retinascan/internal/retina"
	"retinascan/internal/vision"
)

// App holds the long-lived collaborators. It is built once before the server
// accepts connections and is read-only afterwards.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Model     *vision.ONNXModel
	Redis     *redis.Client
	Predictor *retina.Service

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	log.Info("loading model", zap.String("path", cfg.Model.Path))
	model, err := vision.LoadONNXModel(cfg.Model.Path, cfg.Model.ONNXSharedLibPath)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("load model failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		Log:       log,
		Model:     model,
		StartedAt: time.Now(),
	}

	var probCache retina.ProbabilityCache
	if cfg.CacheEnabled() {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Redis = redisCli
		probCache = cache.NewProbabilityCache(redisCli,
			time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, "")
		log.Info("probability cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	app.Predictor = retina.NewService(model, probCache, log,
		retina.WithMaxImagePixels(cfg.Model.MaxImagePixels))
	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Model != nil {
		if err := a.Model.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
