// Package client is a Go client for the standup HTTP API.
//
// A Client acts for one user: every request carries the service key as a
// bearer token and the user's identifier in the X-User-ID header.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/types"
	"github.com/sethvargo/go-retry"
)

// Config holds the client configuration.
type Config struct {
	BaseURL    string        // Standup service URL, without the /api/v1 prefix
	APIKey     string        // Service key
	UserID     string        // User the client acts for
	Timeout    time.Duration // Per-request timeout (default: 30 seconds)
	MaxRetries uint64        // Retries for transient failures on reads (default: 2)
}

// Client calls the standup API.
type Client struct {
	config Config
	http   *http.Client
}

// New creates a client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}
	if config.UserID == "" {
		return nil, errors.New("UserID is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}, nil
}

// ForUser returns a copy of the client acting for another user.
func (c *Client) ForUser(userID string) *Client {
	cfg := c.config
	cfg.UserID = userID
	return &Client{config: cfg, http: c.http}
}

// Ping checks that the service is healthy.
func (c *Client) Ping(ctx context.Context) (*types.HealthResponse, error) {
	var out types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the user's profile.
func (c *Client) Profile(ctx context.Context) (*types.Profile, error) {
	var out types.Profile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDisplayName sets or clears the user's display name.
func (c *Client) SetDisplayName(ctx context.Context, name *string) (*types.Profile, error) {
	var out types.Profile
	body := map[string]*string{"display_name": name}
	if err := c.do(ctx, http.MethodPut, "/profile", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns per-day summaries for [from, to].
func (c *Client) History(ctx context.Context, from, to dates.Date) ([]types.PlanSummary, error) {
	q := url.Values{"from": {from.String()}, "to": {to.String()}}
	var out []types.PlanSummary
	if err := c.do(ctx, http.MethodGet, "/days", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenDay returns the plan for date, creating it if needed. today is the
// caller's local date; the zero Date defers to the server clock.
func (c *Client) OpenDay(ctx context.Context, date, today dates.Date) (*lifecycle.PlanView, error) {
	var out lifecycle.PlanView
	if err := c.do(ctx, http.MethodGet, "/days/"+date.String(), todayQuery(today), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Gate reports whether date may be planned.
func (c *Client) Gate(ctx context.Context, date dates.Date) (*lifecycle.GateStatus, error) {
	var out lifecycle.GateStatus
	if err := c.do(ctx, http.MethodGet, "/days/"+date.String()+"/gate", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveGoals writes the plan's goal slots without submitting.
func (c *Client) SaveGoals(ctx context.Context, planID string, goals []types.GoalInput, today dates.Date) ([]types.Goal, error) {
	var out []types.Goal
	body := map[string][]types.GoalInput{"goals": goals}
	if err := c.do(ctx, http.MethodPut, "/plans/"+planID+"/goals", todayQuery(today), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit submits the plan. A nil goals slice submits the stored goals.
func (c *Client) Submit(ctx context.Context, planID string, goals []types.GoalInput, today dates.Date) (*lifecycle.PlanView, error) {
	var body any
	if goals != nil {
		body = map[string][]types.GoalInput{"goals": goals}
	}
	var out lifecycle.PlanView
	if err := c.do(ctx, http.MethodPost, "/plans/"+planID+"/submit", todayQuery(today), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetStatus records progress on a goal.
func (c *Client) SetStatus(ctx context.Context, goalID string, status types.GoalStatus) (*types.Goal, error) {
	var out types.Goal
	body := map[string]types.GoalStatus{"status": status}
	if err := c.do(ctx, http.MethodPut, "/goals/"+goalID+"/status", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPriority changes a goal's priority.
func (c *Client) SetPriority(ctx context.Context, goalID string, priority int) (*types.Goal, error) {
	var out types.Goal
	body := map[string]int{"priority": priority}
	if err := c.do(ctx, http.MethodPut, "/goals/"+goalID+"/priority", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleReview flips a goal's reviewed mark.
func (c *Client) ToggleReview(ctx context.Context, goalID string) (*lifecycle.ReviewResult, error) {
	var out lifecycle.ReviewResult
	if err := c.do(ctx, http.MethodPost, "/goals/"+goalID+"/review", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGoal removes a goal. Deleting a missing goal succeeds.
func (c *Client) DeleteGoal(ctx context.Context, goalID string) error {
	return c.do(ctx, http.MethodDelete, "/goals/"+goalID, nil, nil, nil)
}

// AwardAwareness requests the awareness bonus for a plan.
func (c *Client) AwardAwareness(ctx context.Context, planID string) (*types.AwardResult, error) {
	var out types.AwardResult
	if err := c.do(ctx, http.MethodPost, "/plans/"+planID+"/awards/awareness", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseDay requests closure of a plan.
func (c *Client) CloseDay(ctx context.Context, planID string) (*types.AwardResult, error) {
	var out types.AwardResult
	if err := c.do(ctx, http.MethodPost, "/plans/"+planID+"/awards/closure", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reschedule carries a reviewed goal to toDate.
func (c *Client) Reschedule(ctx context.Context, goalID string, toDate dates.Date, reason *string, today dates.Date) (*types.RescheduleRecord, error) {
	body := struct {
		ToDate string  `json:"to_date"`
		Reason *string `json:"reason,omitempty"`
	}{ToDate: toDate.String(), Reason: reason}
	var out types.RescheduleRecord
	if err := c.do(ctx, http.MethodPost, "/goals/"+goalID+"/reschedule", todayQuery(today), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddNote attaches a note to a goal.
func (c *Client) AddNote(ctx context.Context, goalID, note string) (*types.GoalNote, error) {
	var out types.GoalNote
	body := map[string]string{"note": note}
	if err := c.do(ctx, http.MethodPost, "/goals/"+goalID+"/notes", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func todayQuery(today dates.Date) url.Values {
	if today.IsZero() {
		return nil
	}
	return url.Values{"today": {today.String()}}
}

// do sends one request and decodes a JSON response into out. GET requests
// are retried with backoff on transport errors and 5xx responses.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = data
	}

	target := c.config.BaseURL + "/api/v1" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if method != http.MethodGet {
		_, err := c.send(ctx, method, target, payload, out)
		return err
	}

	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		transient, err := c.send(ctx, method, target, payload, out)
		if transient {
			return retry.RetryableError(err)
		}
		return err
	})
}

// send performs a single attempt. transient reports whether the failure
// may succeed on retry.
func (c *Client) send(ctx context.Context, method, target string, payload []byte, out any) (transient bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("X-User-ID", c.config.UserID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode >= 500, decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Title == "" {
		apiErr.Title = http.StatusText(resp.StatusCode)
		apiErr.Detail = string(bytes.TrimSpace(data))
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
