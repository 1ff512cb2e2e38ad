package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"factory-monitor/internal/activity/application"
	activity "factory-monitor/internal/activity/domain"
)

const (
	batchPath   = "/events/ingest/batch"
	workersPath = "/metrics/workers"
)

// ErrEmptyRoster is returned when the target server has no workers registered.
// Pushed events only show up in metrics for registered workers and workstations.
var ErrEmptyRoster = errors.New("seed: server has no workers registered, run POST /seed/init first")

// Client pushes generated events to a running server through the batch ingest endpoint.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

type batchRequest struct {
	Events []application.EventInput `json:"events"`
}

// NewClient constructs a Client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("seed: empty base url")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() == 503
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: rc, logger: logger}, nil
}

// CheckRoster fails with ErrEmptyRoster when the server lists no workers.
func (c *Client) CheckRoster(ctx context.Context) error {
	var workers []json.RawMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&workers).
		Get(workersPath)
	if err != nil {
		return fmt.Errorf("seed: list workers: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("seed: list workers: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(workers) == 0 {
		return ErrEmptyRoster
	}
	return nil
}

// Push sends events in batches of batchSize and returns the summed outcome.
func (c *Client) Push(ctx context.Context, events []activity.Event, batchSize int) (application.BatchResult, error) {
	total := application.BatchResult{ErrorsList: []application.BatchItemError{}}
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	for offset := 0; offset < len(events); offset += batchSize {
		end := min(offset+batchSize, len(events))
		req := batchRequest{Events: make([]application.EventInput, 0, end-offset)}
		for _, e := range events[offset:end] {
			req.Events = append(req.Events, toInput(e))
		}

		var result application.BatchResult
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post(batchPath)
		if err != nil {
			return total, fmt.Errorf("seed: post batch at %d: %w", offset, err)
		}
		if resp.IsError() {
			return total, fmt.Errorf("seed: post batch at %d: status %d: %s", offset, resp.StatusCode(), resp.String())
		}

		c.logger.Debug("batch pushed",
			zap.Int("offset", offset),
			zap.Int("success", result.Success),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("errors", result.Errors),
		)
		total.Success += result.Success
		total.Duplicates += result.Duplicates
		total.Errors += result.Errors
		for _, item := range result.ErrorsList {
			item.Index += offset
			total.ErrorsList = append(total.ErrorsList, item)
		}
	}
	return total, nil
}

func toInput(e activity.Event) application.EventInput {
	confidence, count := e.Confidence, e.Count
	return application.EventInput{
		Timestamp:     e.Timestamp.UTC().Format(time.RFC3339Nano),
		WorkerID:      e.WorkerID,
		WorkstationID: e.WorkstationID,
		EventType:     string(e.Type),
		Confidence:    &confidence,
		Count:         &count,
	}
}
