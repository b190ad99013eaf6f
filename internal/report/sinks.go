package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/store"
)

// StoreSink persists reports in the primary store.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Emit(ctx context.Context, r *model.Report) error {
	return eris.Wrapf(store.Save(ctx, s.Store, r), "report: save %s", r.ID)
}

// LogSink writes each report as one log line.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, r *model.Report) error {
	fields := []zap.Field{
		zap.String("component", "report"),
		zap.String("source", r.Source),
		zap.String("status", r.Status),
		zap.String("id", r.ID),
	}
	switch r.Status {
	case StatusFailure:
		zap.L().Error(r.Message, fields...)
	case StatusWarning:
		zap.L().Warn(r.Message, fields...)
	default:
		zap.L().Info(r.Message, fields...)
	}
	return nil
}

// WebhookSink posts WARNING and FAILURE reports as JSON to a URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink returns a sink posting to url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSink) Emit(ctx context.Context, r *model.Report) error {
	if w.url == "" {
		return nil
	}
	if r.Status != StatusWarning && r.Status != StatusFailure {
		return nil
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "report: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "report: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "report: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("report: webhook returned status %d", resp.StatusCode)
	}
	zap.L().Info("report: webhook sent",
		zap.String("source", r.Source),
		zap.String("status", r.Status),
	)
	return nil
}

// Recent lists the newest stored reports, optionally for one source.
func Recent(ctx context.Context, s store.Store, source string, limit int) ([]*model.Report, error) {
	q := store.Query{OrderBy: "created_at", Desc: true, Limit: limit}
	if source != "" {
		q.Where = map[string]any{"source": source}
	}
	reports, err := store.FindRecords(ctx, s, model.KindReport, q,
		func() *model.Report { return &model.Report{} })
	return reports, eris.Wrap(err, "report: recent")
}
