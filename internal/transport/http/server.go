package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"retinascan/internal/bootstrap"
	"retinascan/internal/transport/http/handler"
	"retinascan/internal/transport/http/middleware"
)

// NewRouter builds the gin engine serving /health and /predict/retina.
func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	return newRouter(app.Predictor, app.Log, app.Config.HTTP.MaxBodyBytes)
}

func newRouter(predictor handler.Predictor, log *zap.Logger, maxBodyBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.Recovery(log),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}),
	)

	healthHandler := handler.NewHealthHandler()
	retinaHandler := handler.NewRetinaHandler(predictor, log)

	router.GET("/health", healthHandler.Check)
	router.POST("/predict/retina", middleware.BodyLimit(maxBodyBytes), retinaHandler.Predict)

	return router
}
