package monitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Laisky/zap"
	gocache "github.com/patrickmn/go-cache"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/logger"
)

const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// notifyDedup suppresses repeats of the same message within the window, so a
// flapping upstream does not flood the webhook.
var notifyDedup = gocache.New(5*time.Minute, 10*time.Minute)

var notifyClient = &http.Client{Timeout: 10 * time.Second}

type notification struct {
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Notify posts an alert to the configured webhook. Fire and forget: no webhook
// configured or a delivery failure only produces a log line.
func Notify(severity, message string) {
	if config.NotifyWebhookURL == "" {
		return
	}
	if _, dup := notifyDedup.Get(message); dup {
		return
	}
	notifyDedup.SetDefault(message, struct{}{})

	go func() {
		payload, err := json.Marshal(notification{
			Severity:  severity,
			Message:   message,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			return
		}
		resp, err := notifyClient.Post(config.NotifyWebhookURL, "application/json",
			bytes.NewReader(payload))
		if err != nil {
			logger.Logger.Warn("webhook notification failed", zap.Error(err))
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			logger.Logger.Warn("webhook notification rejected",
				zap.Int("status", resp.StatusCode))
		}
	}()
}
