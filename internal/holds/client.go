package holds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"barbuddy/internal/reservation"
	"barbuddy/internal/schedule"
	"barbuddy/pkg/logger"
)

// Client talks to the reservation service. It never retries and never
// fabricates success: every hold and release is a remote mutation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer session token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a client for the service at baseURL (including the API base path)
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.GetDefault(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer session token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// OpenSession obtains a session token for customerID and uses it for later calls
func (c *Client) OpenSession(ctx context.Context, customerID string) (*Session, error) {
	status, env, err := c.do(ctx, http.MethodPost, "/sessions", sessionRequest{CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, unexpected(status, env)
	}

	var session Session
	if err := json.Unmarshal(env.Data, &session); err != nil {
		return nil, fmt.Errorf("%w: failed to decode session: %v", reservation.ErrTransient, err)
	}
	c.SetToken(session.Token)
	return &session, nil
}

// Hold requests an exclusive claim on tableID for key
func (c *Client) Hold(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	path := "/bars/" + url.PathEscape(key.BarID) + "/holds"
	status, env, err := c.do(ctx, http.MethodPost, path, holdRequest{TableID: tableID, Date: key.Date, Time: key.Time})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return reservation.ErrAlreadyHeld
	case http.StatusGone, http.StatusNotFound:
		return reservation.ErrNotAvailable
	default:
		return unexpected(status, env)
	}
}

// Release gives up the claim on tableID for key. Releasing a table that is
// not held, or held by someone else, is not an error.
func (c *Client) Release(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	path := "/bars/" + url.PathEscape(key.BarID) + "/holds/release"
	status, env, err := c.do(ctx, http.MethodPost, path, holdRequest{TableID: tableID, Date: key.Date, Time: key.Time})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusConflict, http.StatusGone:
		return nil
	default:
		return unexpected(status, env)
	}
}

// QueryHeld returns every table currently held for key
func (c *Client) QueryHeld(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error) {
	q := url.Values{}
	q.Set("date", key.Date)
	q.Set("time", key.Time)
	path := "/bars/" + url.PathEscape(key.BarID) + "/holds?" + q.Encode()

	status, env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(status, env)
	}

	held := make([]reservation.HeldTable, 0)
	if err := decodeData(env, &held); err != nil {
		return nil, err
	}
	return held, nil
}

// FindAvailable returns the bar's tables of tableTypeID with their booked
// status for key. Transient holds are not included.
func (c *Client) FindAvailable(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error) {
	q := url.Values{}
	q.Set("table_type_id", tableTypeID)
	q.Set("date", key.Date)
	q.Set("time", key.Time)
	path := "/bars/" + url.PathEscape(key.BarID) + "/tables?" + q.Encode()

	status, env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(status, env)
	}

	tables := make([]reservation.Table, 0)
	if err := decodeData(env, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// GetSchedule returns the weekly opening hours of barID
func (c *Client) GetSchedule(ctx context.Context, barID string) (*schedule.BarSchedule, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/bars/"+url.PathEscape(barID)+"/schedule", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpected(status, env)
	}

	var resp scheduleResponse
	if err := decodeData(env, &resp); err != nil {
		return nil, err
	}

	sched := &schedule.BarSchedule{
		BarID:        resp.BarID,
		Days:         make(map[time.Weekday]schedule.DaySchedule, len(resp.Days)),
		SlotInterval: time.Duration(resp.SlotIntervalMinutes) * time.Minute,
	}
	for _, d := range resp.Days {
		sched.Days[time.Weekday(d.Weekday)] = schedule.DaySchedule{Open: d.Open, Close: d.Close}
	}
	return sched, nil
}

// SubmitBooking sends the final booking. Failures are returned as
// *reservation.SubmissionError; Retryable is false when the tables were
// lost or booked and the search has to start over.
func (c *Client) SubmitBooking(ctx context.Context, draft reservation.BookingDraft) (*reservation.BookingConfirmation, error) {
	status, env, err := c.do(ctx, http.MethodPost, "/bookings", draft)
	if err != nil {
		return nil, &reservation.SubmissionError{Retryable: true, Reason: err.Error()}
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var confirmation reservation.BookingConfirmation
		if err := decodeData(env, &confirmation); err != nil {
			return nil, &reservation.SubmissionError{Retryable: true, Status: status, Reason: err.Error()}
		}
		return &confirmation, nil
	case status == http.StatusConflict || status == http.StatusGone:
		return nil, &reservation.SubmissionError{Retryable: false, Status: status, Reason: env.Message}
	default:
		return nil, &reservation.SubmissionError{Retryable: true, Status: status, Reason: env.Message}
	}
}

// do executes one request and decodes the response envelope. Transport
// failures are reported as reservation.ErrTransient.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to create request: %v", reservation.ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", reservation.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	env := &envelope{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", reservation.ErrTransient, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			env.Message = strings.TrimSpace(string(raw))
		}
	}

	c.log.DebugWithContext(ctx, "reservation service call", map[string]interface{}{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	})

	return resp.StatusCode, env, nil
}

func decodeData(env *envelope, out interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", reservation.ErrTransient, err)
	}
	return nil
}

func unexpected(status int, env *envelope) error {
	return fmt.Errorf("%w: unexpected status code %d: %s", reservation.ErrTransient, status, env.Message)
}
