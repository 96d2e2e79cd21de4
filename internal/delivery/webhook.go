package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/resilience"
)

// ErrHTMLResponse means the webhook answered with a web page instead of
// JSON, which is what an inactive workflow returns.
var ErrHTMLResponse = eris.New("delivery: webhook returned an error page")

const defaultWebhookTimeout = 120 * time.Second

// Upload is the payload posted to the CRM webhook.
type Upload struct {
	CSVContent   string    `json:"csvContent" validate:"required"`
	Filename     string    `json:"filename" validate:"required"`
	StateCode    string    `json:"stateCode" validate:"required"`
	County       string    `json:"county"`
	TotalRecords int       `json:"totalRealtors"`
	Timestamp    time.Time `json:"timestamp"`
}

// Webhook posts finished lists to a workflow endpoint.
type Webhook struct {
	url      string
	client   *http.Client
	validate *validator.Validate
}

// NewWebhook creates a Webhook. A non-positive timeout means 120s.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

// Configured reports whether a webhook URL is set.
func (w *Webhook) Configured() bool {
	return w != nil && w.url != ""
}

// Deliver posts up and returns the webhook's JSON reply, if any.
func (w *Webhook) Deliver(ctx context.Context, up Upload) (json.RawMessage, error) {
	if !w.Configured() {
		return nil, eris.New("delivery: webhook url not configured")
	}
	if err := w.validate.Struct(up); err != nil {
		return nil, eris.Wrap(err, "delivery: missing required fields")
	}
	if up.Timestamp.IsZero() {
		up.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(up)
	if err != nil {
		return nil, eris.Wrap(err, "delivery: marshal upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "delivery: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "delivery: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "delivery: read webhook response")
	}

	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "text/html" {
		return nil, ErrHTMLResponse
	}
	if resp.StatusCode >= 400 {
		return nil, resilience.StatusError("delivery", resp.StatusCode, body)
	}

	zap.L().Info("delivery: upload accepted",
		zap.String("filename", up.Filename),
		zap.String("state", up.StateCode),
		zap.Int("records", up.TotalRecords),
		zap.Int("csv_bytes", len(up.CSVContent)),
	)

	if !json.Valid(body) {
		return nil, nil
	}
	return body, nil
}
