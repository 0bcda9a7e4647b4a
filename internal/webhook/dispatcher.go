package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/config"
)

// TaskSubmitter schedules best-effort background work.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// Dispatcher posts signed JSON payloads to external endpoints. Delivery is
// fire-and-forget through the task runner so a slow receiver never holds up
// the workflow engine.
type Dispatcher struct {
	cfg    config.WebhookConfig
	client *http.Client
	tasks  TaskSubmitter
	logger *zap.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(cfg config.WebhookConfig, tasks TaskSubmitter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		tasks:  tasks,
		logger: logger,
	}
}

// Dispatch queues one webhook delivery. The envelope is serialized and
// signed up front; only the network call runs in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, url, event string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      payload,
	})
	if err != nil {
		return fmt.Errorf("webhook payload: %w", err)
	}

	submitted := d.tasks.Submit("webhook_dispatch", func(taskCtx context.Context) error {
		return d.post(taskCtx, url, body)
	})
	if !submitted {
		return fmt.Errorf("webhook queue full")
	}
	return nil
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.SigningSecret != "" {
		req.Header.Set("X-Relaydesk-Signature", d.sign(body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn("webhook rejected",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook endpoint returned %s", strconv.Itoa(resp.StatusCode))
	}
	d.logger.Debug("webhook delivered", zap.String("url", url))
	return nil
}

// sign computes the hex HMAC-SHA256 of the body so receivers can verify
// origin.
func (d *Dispatcher) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(d.cfg.SigningSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
