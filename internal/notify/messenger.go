package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/acastellana/clawcondos/internal/errors"
	"github.com/acastellana/clawcondos/internal/metrics"
	"github.com/acastellana/clawcondos/internal/retry"
)

// Messenger posts messages into running agent sessions through the session
// gateway. With no gateway configured every send is logged and dropped.
type Messenger struct {
	baseURL string
	token   string
	client  *http.Client
	retry   retry.Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// statusError is a non-2xx gateway response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.code)
}

// NewMessenger creates a Messenger. An empty baseURL disables delivery.
func NewMessenger(baseURL, token string, m *metrics.Metrics, logger zerolog.Logger) *Messenger {
	cfg := retry.DefaultConfig()
	// Client errors will not improve on retry; network failures and 5xx may.
	cfg.Retryable = func(err error) bool {
		var se *statusError
		if errors.As(err, &se) {
			return se.code >= 500
		}
		return true
	}
	return &Messenger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   cfg,
		metrics: m,
		logger:  logger.With().Str("component", "messenger").Logger(),
	}
}

// SendToSession posts a JSON payload to the session's message endpoint,
// retrying transient failures. Callers treat failures as best-effort: the
// returned error is for logging and metrics, not for failing the operation
// that triggered the message.
func (m *Messenger) SendToSession(sessionKey string, payload map[string]any) error {
	if m.baseURL == "" {
		m.logger.Debug().Str("session", sessionKey).Msg("no session gateway configured, message dropped")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling session message: %w", err)
	}
	url := fmt.Sprintf("%s/sessions/%s/messages", m.baseURL, sessionKey)

	err = retry.Do(context.Background(), m.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if m.token != "" {
			req.Header.Set("Authorization", "Bearer "+m.token)
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	})
	if err != nil {
		m.recordFailure(sessionKey, err)
		return apperrors.NewDelivery(sessionKey, err)
	}

	m.logger.Debug().Str("session", sessionKey).Msg("session message delivered")
	return nil
}

func (m *Messenger) recordFailure(sessionKey string, err error) {
	m.logger.Warn().Err(err).Str("session", sessionKey).Msg("session message delivery failed")
	if m.metrics != nil {
		m.metrics.RecordDeliveryFailure("session")
	}
}
