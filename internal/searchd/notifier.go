package searchd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/trial-harness/internal/metrics"
	"github.com/GoSim-25-26J-441/trial-harness/internal/policy"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/logger"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID     string           `json:"run_id"`
	Run       *models.Run      `json:"run"`
	Metrics   *metrics.Summary `json:"metrics,omitempty"`
	Timestamp int64            `json:"timestamp"` // unix ms when the notification was sent
}

// Notifier posts finished runs to a callback URL
type Notifier struct {
	httpClient *http.Client
	retry      policy.Retry
	log        *slog.Logger
	wg         sync.WaitGroup
}

// NewNotifier creates a new notification service
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: policy.NewRetry(3, policy.BackoffExponential, time.Second),
		log:   logger.Default,
	}
}

// Notify sends a notification to the callback URL asynchronously.
// {run_id} in the URL is replaced with the run's ID.
func (n *Notifier) Notify(callbackURL, callbackSecret string, run *models.Run, summary *metrics.Summary) {
	if callbackURL == "" {
		return
	}
	if run == nil {
		n.log.Warn("cannot notify: nil run", "callback_url", callbackURL)
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", run.ID)
	payload := NotificationPayload{
		RunID:     run.ID,
		Run:       run,
		Metrics:   summary,
		Timestamp: time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until every pending notification has been delivered or given up
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// sendNotification performs the HTTP POST, retrying per the notifier's policy
func (n *Notifier) sendNotification(callbackURL, callbackSecret string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("failed to marshal notification payload", "run_id", payload.RunID, "error", err)
		return
	}

	err = n.retry.Do(context.Background(), func(attempt int) error {
		if attempt > 0 {
			n.log.Debug("retrying notification", "run_id", payload.RunID, "attempt", attempt, "delay", n.retry.Delay(attempt))
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(payloadJSON))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "trial-harness/1.0")
		if callbackSecret != "" {
			req.Header.Set("X-Harness-Callback-Secret", callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn("notification attempt failed", "run_id", payload.RunID, "attempt", attempt+1, "error", err)
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		n.log.Warn("notification returned non-2xx status",
			"run_id", payload.RunID,
			"status_code", resp.StatusCode,
			"response_body", string(body),
			"attempt", attempt+1)
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	})
	if err == nil {
		n.log.Info("notification sent", "run_id", payload.RunID, "status", string(payload.Run.Status))
		return
	}

	n.log.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"max_retries", n.retry.MaxRetries,
		"last_error", err)
}
