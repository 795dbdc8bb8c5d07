package bot

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Webhook struct {
	secret  string
	handler *Handler
}

func NewWebhook(secret string, handler *Handler) *Webhook {
	return &Webhook{secret: secret, handler: handler}
}

// Serve verifies the signature on the raw body before decoding anything.
// Once verified the answer is always 200 OK, whatever the events do.
func (w *Webhook) Serve(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	if !VerifySignature(w.secret, body, c.GetHeader(SignatureHeader)) {
		zap.L().Warn("[Bot] webhook signature mismatch")
		c.String(http.StatusBadRequest, "Invalid signature")
		return
	}

	events, err := ParseEvents(body)
	if err != nil {
		zap.L().Warn("[Bot] webhook body rejected", zap.Error(err))
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	ctx := c.Request.Context()
	for _, ev := range events {
		w.dispatch(ctx, ev)
	}
	c.String(http.StatusOK, "OK")
}

func (w *Webhook) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("[Bot] event handler panicked", zap.String("kind", ev.Kind()), zap.Any("panic", r))
		}
	}()
	w.handler.Handle(ctx, ev)
}
