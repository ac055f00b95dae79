// Package clients provides HTTP clients for communicating with external microservices.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
)

// PositionServiceClient reads positions from a remote position service and
// exposes it as a tracking.PositionSource. Watches poll the service.
type PositionServiceClient struct {
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	nextID  tracking.WatchID
	watches map[tracking.WatchID]context.CancelFunc
}

// DefaultPollInterval is used when a non-positive poll interval is given.
const DefaultPollInterval = time.Second

// NewPositionServiceClient creates a new client for the position service.
func NewPositionServiceClient(baseURL string, pollInterval time.Duration, logger zerolog.Logger) *PositionServiceClient {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &PositionServiceClient{
		baseURL:      baseURL,
		httpClient:   &http.Client{},
		logger:       logger.With().Str("client", "position-service").Logger(),
		pollInterval: pollInterval,
		watches:      make(map[tracking.WatchID]context.CancelFunc),
	}
}

// FetchPosition performs one GET /position request. Failures are returned as
// *tracking.PositionError.
func (c *PositionServiceClient) FetchPosition(ctx context.Context, opts tracking.WatchOptions) (tracking.Sample, error) {
	q := url.Values{}
	q.Set("high_accuracy", strconv.FormatBool(opts.HighAccuracy))
	q.Set("maximum_age", strconv.FormatInt(opts.MaximumAge.Milliseconds(), 10))
	endpoint := c.baseURL + "/position?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tracking.Sample{}, fmt.Errorf("failed to create position request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tracking.Sample{}, &tracking.PositionError{Code: tracking.Timeout}
		}
		return tracking.Sample{}, &tracking.PositionError{
			Code:    tracking.PositionUnavailable,
			Message: fmt.Sprintf("failed to execute position request: %v", err),
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return tracking.Sample{}, &tracking.PositionError{Code: tracking.PermissionDenied}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return tracking.Sample{}, &tracking.PositionError{Code: tracking.Timeout}
	default:
		return tracking.Sample{}, &tracking.PositionError{
			Code:    tracking.PositionUnavailable,
			Message: fmt.Sprintf("position service returned unexpected status code: %d", resp.StatusCode),
		}
	}

	var sample tracking.Sample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		return tracking.Sample{}, &tracking.PositionError{
			Code:    tracking.PositionUnavailable,
			Message: fmt.Sprintf("failed to decode position response: %v", err),
		}
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	return sample, nil
}

// GetCurrentPosition fetches once, bounded by tracking.GeoTimeout.
func (c *PositionServiceClient) GetCurrentPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracking.GeoTimeout)
		defer cancel()
		sample, err := c.FetchPosition(ctx, tracking.WatchOptions{})
		if err != nil {
			onError(err)
			return
		}
		onSuccess(sample)
	}()
}

// WatchPosition fetches immediately and then every poll interval, each
// request bounded by opts.Timeout.
func (c *PositionServiceClient) WatchPosition(onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc, opts tracking.WatchOptions) tracking.WatchID {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watches[id] = cancel
	c.mu.Unlock()

	go c.poll(ctx, onSuccess, onError, opts)

	c.logger.Info().Int64("watch_id", int64(id)).Dur("interval", c.pollInterval).Msg("Started polling position service")
	return id
}

func (c *PositionServiceClient) poll(ctx context.Context, onSuccess tracking.SuccessFunc, onError tracking.ErrorFunc, opts tracking.WatchOptions) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		reqCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		sample, err := c.FetchPosition(reqCtx, opts)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			onError(err)
		} else {
			onSuccess(sample)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *PositionServiceClient) ClearWatch(id tracking.WatchID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.watches[id]; ok {
		cancel()
		delete(c.watches, id)
	}
}
