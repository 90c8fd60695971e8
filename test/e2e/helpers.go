package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/standup/internal/api"
	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/types"
)

const testAPIKey = "e2e-test-api-key"

// inProcessServer runs the full router over a file-backed store with a
// frozen clock.
type inProcessServer struct {
	srv   *httptest.Server
	clock *dates.FixedClock
	store *store.SQLiteStore
}

func startInProcess(t *testing.T, mutate ...func(*lifecycle.Settings)) *inProcessServer {
	t.Helper()
	clock := dates.NewFixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "standup.db"), store.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}

	settings := lifecycle.DefaultSettings()
	for _, m := range mutate {
		m(&settings)
	}
	engine := lifecycle.NewEngine(s, settings, lifecycle.WithClock(clock))
	h := api.NewHandler(engine, s, nil, "", testAPIKey, "e2e")
	srv := httptest.NewServer(api.NewRouter(h))

	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return &inProcessServer{srv: srv, clock: clock, store: s}
}

func (s *inProcessServer) client(t *testing.T, userID string) *apiClient {
	return &apiClient{t: t, baseURL: s.srv.URL, apiKey: testAPIKey, userID: userID}
}

// apiClient issues authenticated requests on behalf of one user.
type apiClient struct {
	t       *testing.T
	baseURL string
	apiKey  string
	userID  string
}

// send performs a request without failing the test, so it is safe to call
// from goroutines.
func (c *apiClient) send(method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(api.UserIDHeader, c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// call performs a request, requires wantStatus, and decodes the body into out
// when out is non-nil.
func (c *apiClient) call(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	status, data, err := c.send(method, path, body)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	if status != wantStatus {
		c.t.Fatalf("%s %s: status = %d, want %d, body %s", method, path, status, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("%s %s: decode: %v (body %s)", method, path, err, data)
		}
	}
}

// openDay opens date with today set to the same date.
func (c *apiClient) openDay(date string) lifecycle.PlanView {
	c.t.Helper()
	var view lifecycle.PlanView
	c.call(http.MethodGet, fmt.Sprintf("/days/%s?today=%s", date, date), nil, http.StatusOK, &view)
	return view
}

// submitDay opens date and submits titles as its goals.
func (c *apiClient) submitDay(date string, titles ...string) lifecycle.PlanView {
	c.t.Helper()
	view := c.openDay(date)
	inputs := make([]types.GoalInput, len(titles))
	for i, title := range titles {
		inputs[i] = types.GoalInput{Title: title, SortOrder: i}
	}
	var submitted lifecycle.PlanView
	c.call(http.MethodPost, fmt.Sprintf("/plans/%s/submit?today=%s", view.Plan.ID, date),
		api.GoalsRequest{Goals: inputs}, http.StatusOK, &submitted)
	return submitted
}

func (c *apiClient) setStatus(goalID string, status types.GoalStatus) {
	c.t.Helper()
	c.call(http.MethodPut, "/goals/"+goalID+"/status", api.StatusRequest{Status: status}, http.StatusOK, nil)
}

func (c *apiClient) review(goalID string) lifecycle.ReviewResult {
	c.t.Helper()
	var res lifecycle.ReviewResult
	c.call(http.MethodPost, "/goals/"+goalID+"/review", nil, http.StatusOK, &res)
	return res
}

func (c *apiClient) gate(date string) lifecycle.GateStatus {
	c.t.Helper()
	var gate lifecycle.GateStatus
	c.call(http.MethodGet, "/days/"+date+"/gate", nil, http.StatusOK, &gate)
	return gate
}

func (c *apiClient) goals(planID string) []types.Goal {
	c.t.Helper()
	var goals []types.Goal
	c.call(http.MethodGet, "/plans/"+planID+"/goals", nil, http.StatusOK, &goals)
	return goals
}

func (c *apiClient) profile() types.Profile {
	c.t.Helper()
	var p types.Profile
	c.call(http.MethodGet, "/profile", nil, http.StatusOK, &p)
	return p
}
