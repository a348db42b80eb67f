// Package examfeed pulls the school-published exam list. The feed is a
// single JSON document, either {"exams":[...]} or {"ok":false,"error":"..."}.
package examfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/planwerk/stundenplan-api/internal/models"
	"github.com/planwerk/stundenplan-api/pkg/config"
	appErrors "github.com/planwerk/stundenplan-api/pkg/errors"
)

// Client fetches the remote exam feed.
type Client struct {
	cfg    config.ExamFeedConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewClient constructs a feed client. With an empty URL Fetch returns an
// empty list, so the feature degrades to local-only exams.
func NewClient(cfg config.ExamFeedConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   resty.New().SetTimeout(cfg.Timeout),
		logger: logger,
	}
}

// Fetch downloads and normalises the published exam entries. Records the
// feed cannot account for (missing name or period) are dropped, not errors.
func (c *Client) Fetch(ctx context.Context) ([]models.ExamEntry, error) {
	if c.cfg.URL == "" {
		return []models.ExamEntry{}, nil
	}

	var body []byte
	operation := func() error {
		resp, err := c.http.R().SetContext(ctx).Get(c.cfg.URL)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("exam feed: status %d", resp.StatusCode())
		}
		body = resp.Body()
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "exam feed unavailable")
	}

	if ok := gjson.GetBytes(body, "ok"); ok.Exists() && !ok.Bool() {
		msg := gjson.GetBytes(body, "error").String()
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("exam feed rejected request: %s", msg))
	}

	raw := gjson.GetBytes(body, "exams")
	if !raw.Exists() {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "exam feed response missing exams key")
	}

	var records []models.ExamRecord
	if err := json.Unmarshal([]byte(raw.Raw), &records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "exam feed payload malformed")
	}

	out := make([]models.ExamEntry, 0, len(records))
	for _, rec := range records {
		entry, ok := rec.Normalise(models.ExamSourceRemote)
		if !ok {
			c.logger.Debug("dropping malformed exam feed record", zap.String("name", rec.Name), zap.String("date", rec.Date))
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
