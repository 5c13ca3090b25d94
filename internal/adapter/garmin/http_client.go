package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/timecube"
)

const (
	defaultBaseURL = "https://connectapi.garmin.com"
	activitiesPath = "/activitylist-service/activities/search/activities"
	summaryPath    = "/usersummary-service/usersummary/daily"
	readinessPath  = "/metrics-service/metrics/trainingreadiness/"
	statusPath     = "/metrics-service/metrics/trainingstatus/aggregated/"
	maxActivities  = 25
)

// Client implements ports.GarminClient against the Connect API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, token string, httpc *http.Client, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpc, log: log}
}

// ListActivities fetches the most recent activities started on the local
// dates spanned by [from, to].
// GET /activitylist-service/activities/search/activities?startDate=...&endDate=...
func (c *Client) ListActivities(ctx context.Context, from, to timecube.Instant) ([]mapper.GarminActivity, error) {
	q := url.Values{}
	q.Set("start", "0")
	q.Set("limit", strconv.Itoa(maxActivities))
	q.Set("startDate", from.Date())
	q.Set("endDate", to.Date())

	var out []mapper.GarminActivity
	if err := c.get(ctx, "list activities", activitiesPath, q, &out); err != nil {
		return nil, err
	}
	c.log.Debug("garmin activities", slog.Int("count", len(out)))
	return out, nil
}

// DailySummary fetches the totals, training readiness and training status
// of the local date of day.
// GET /usersummary-service/usersummary/daily?calendarDate=...
// GET /metrics-service/metrics/trainingreadiness/{date}
// GET /metrics-service/metrics/trainingstatus/aggregated/{date}
func (c *Client) DailySummary(ctx context.Context, day timecube.Instant) (mapper.GarminDaily, error) {
	var out mapper.GarminDaily
	date := day.Date()

	q := url.Values{}
	q.Set("calendarDate", date)
	if err := c.get(ctx, "daily summary", summaryPath, q, &out.Summary); err != nil {
		return out, err
	}
	if err := c.get(ctx, "training readiness", readinessPath+date, nil, &out.Readiness); err != nil {
		return out, err
	}
	var status struct {
		MostRecent struct {
			Latest map[string]struct {
				Phrase string `json:"trainingStatusFeedbackPhrase"`
			} `json:"latestTrainingStatusData"`
		} `json:"mostRecentTrainingStatus"`
	}
	if err := c.get(ctx, "training status", statusPath+date, nil, &status); err != nil {
		return out, err
	}
	// One entry per device, taken in id order.
	devices := make([]string, 0, len(status.MostRecent.Latest))
	for id := range status.MostRecent.Latest {
		devices = append(devices, id)
	}
	sort.Strings(devices)
	for _, id := range devices {
		if p := status.MostRecent.Latest[id].Phrase; p != "" {
			out.TrainingStatusPhrase = p
			break
		}
	}
	c.log.Debug("garmin daily summary", slog.String("date", date), slog.Int("steps", out.Summary.TotalSteps))
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.token == "" {
		return errors.New("missing garmin token")
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteCallError{System: domain.Garmin, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.RemoteCallError{
			System: domain.Garmin,
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("garmin: unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("garmin: decode %s: %w", op, err)
	}
	return nil
}
