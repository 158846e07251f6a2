package handler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"retinascan/internal/retina"
	"retinascan/internal/transport/http/middleware"
	"retinascan/internal/transport/http/response"
)

// Predictor classifies one base64 image payload.
type Predictor interface {
	Predict(ctx context.Context, payload string) (*retina.Prediction, error)
}

// RetinaHandler serves diabetic-retinopathy predictions.
type RetinaHandler struct {
	predictor Predictor
	log       *zap.Logger
}

func NewRetinaHandler(predictor Predictor, log *zap.Logger) *RetinaHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetinaHandler{predictor: predictor, log: log}
}

type predictRequest struct {
	Image *string `json:"image"`
}

// Predict accepts {"image": "<data-uri-or-base64>"} and returns the label,
// confidence, per-class breakdown and recommendations.
func (h *RetinaHandler) Predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = retina.ErrMissingField
		} else {
			err = fmt.Errorf("invalid request body: %w", err)
		}
		h.fail(c, err)
		return
	}
	if req.Image == nil || *req.Image == "" {
		h.fail(c, retina.ErrMissingField)
		return
	}

	result, err := h.predictor.Predict(c.Request.Context(), *req.Image)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.OK(c, result)
}

func (h *RetinaHandler) fail(c *gin.Context, err error) {
	h.log.Error("prediction failed",
		zap.String("kind", retina.Kind(err)),
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.Error(err),
	)
	response.Fail(c, err.Error())
}
