// Package integration handles external service interactions
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// TimeAPIClient fetches the authoritative current time of a civil time zone
type TimeAPIClient struct {
	endpoint   string
	location   *time.Location
	httpClient *http.Client
	maxElapsed time.Duration
}

// NewTimeAPIClient creates a client for a timeapi.io style endpoint reporting times in loc.
// Failed requests are retried with exponential backoff for at most maxElapsed.
func NewTimeAPIClient(endpoint string, loc *time.Location, maxElapsed time.Duration) *TimeAPIClient {
	if maxElapsed <= 0 {
		maxElapsed = 10 * time.Second
	}
	return &TimeAPIClient{
		endpoint:   endpoint,
		location:   loc,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		maxElapsed: maxElapsed,
	}
}

// timeAPIResponse is the subset of the timeapi.io payload we rely on
type timeAPIResponse struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Day          int    `json:"day"`
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	Seconds      int    `json:"seconds"`
	MilliSeconds int    `json:"milliSeconds"`
	TimeZone     string `json:"timeZone"`
}

// Now returns the current time reported by the time service
func (c *TimeAPIClient) Now(ctx context.Context) (time.Time, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	var result time.Time
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		t, err := c.fetch(ctx)
		if err != nil {
			log.Printf("Time service attempt %d failed: %v", attempt, err)
			return err
		}
		result = t
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch current time after %d attempts: %w", attempt, err)
	}

	log.Printf("Successfully fetched current time: %s", result.Format(time.RFC3339))
	return result, nil
}

func (c *TimeAPIClient) fetch(ctx context.Context) (time.Time, error) {
	if c.endpoint == "" {
		return time.Time{}, backoff.Permanent(errors.New("no time service URL configured"))
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return time.Time{}, backoff.Permanent(fmt.Errorf("invalid time service URL: %w", err))
	}
	q := u.Query()
	q.Set("timeZone", c.location.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return time.Time{}, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to reach time service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload timeAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if payload.Year == 0 || payload.Month == 0 || payload.Day == 0 {
		return time.Time{}, fmt.Errorf("time service returned an incomplete date: %s", body)
	}

	return time.Date(payload.Year, time.Month(payload.Month), payload.Day,
		payload.Hour, payload.Minute, payload.Seconds,
		payload.MilliSeconds*int(time.Millisecond), c.location), nil
}
