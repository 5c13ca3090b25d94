package marvin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/timecube"
)

const defaultAPIURL = "https://serv.amazingmarvin.com/api"

// Config holds the two endpoints of the task manager: its REST API and the
// CouchDB sync database behind it.
type Config struct {
	APIURL   string
	APIToken string // full access token
	CouchURL string
	Database string
	User     string
	Password string
}

// Client implements ports.MarvinClient.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient returns a Client. httpc may be nil; callers normally pass a
// throttled client.
func NewClient(cfg Config, httpc *http.Client, log *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.CouchURL = strings.TrimRight(cfg.CouchURL, "/")
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, http: httpc, log: log}
}

// FindDocs runs a Mango query against the sync database.
// CouchDB: POST /{db}/_find {"selector": {...}}
func (c *Client) FindDocs(ctx context.Context, q ports.Query) ([]mapper.MarvinDoc, error) {
	return find[mapper.MarvinDoc](ctx, c, Selector(q))
}

// Trackers lists the tracker documents.
func (c *Client) Trackers(ctx context.Context) ([]mapper.MarvinTracker, error) {
	return find[mapper.MarvinTracker](ctx, c, map[string]any{"db": mapper.MarvinTrackers})
}

// SaveTracker writes a tracker document back and stamps updatedAt.
// CouchDB: PUT /{db}/{id}
func (c *Client) SaveTracker(ctx context.Context, t mapper.MarvinTracker) error {
	if t.ID == "" {
		return errors.New("marvin: tracker has no _id")
	}
	t.UpdatedAt = time.Now().UnixMilli()
	u := c.cfg.CouchURL + "/" + url.PathEscape(c.cfg.Database) + "/" + url.PathEscape(t.ID)
	_, err := c.couch(ctx, http.MethodPut, u, t, nil)
	return err
}

func find[T any](ctx context.Context, c *Client, sel map[string]any) ([]T, error) {
	if c.cfg.CouchURL == "" || c.cfg.Database == "" {
		return nil, errors.New("marvin: missing sync database")
	}
	body := map[string]any{"selector": sel, "limit": 1000}
	u := c.cfg.CouchURL + "/" + url.PathEscape(c.cfg.Database) + "/_find"

	var out struct {
		Docs    []T    `json:"docs"`
		Warning string `json:"warning"`
	}
	if _, err := c.couch(ctx, http.MethodPost, u, body, &out); err != nil {
		return nil, err
	}
	if out.Warning != "" {
		c.log.Debug("marvin find warning", slog.String("warning", out.Warning))
	}
	c.log.Debug("marvin find", slog.Int("docs", len(out.Docs)))
	return out.Docs, nil
}

// GetDoc fetches one document by id. A missing document is NotFound.
func (c *Client) GetDoc(ctx context.Context, id string) (domain.Lookup[mapper.MarvinDoc], error) {
	u := c.cfg.CouchURL + "/" + url.PathEscape(c.cfg.Database) + "/" + url.PathEscape(id)
	var doc mapper.MarvinDoc
	status, err := c.couch(ctx, http.MethodGet, u, nil, &doc)
	if status == http.StatusNotFound {
		return domain.NotFound[mapper.MarvinDoc](), nil
	}
	if err != nil {
		return domain.NotFound[mapper.MarvinDoc](), err
	}
	return domain.Found(doc), nil
}

// CreateTask adds a task through the API and returns the stored document.
// API: POST /addTask
func (c *Client) CreateTask(ctx context.Context, doc mapper.MarvinDoc) (mapper.MarvinDoc, error) {
	var created mapper.MarvinDoc
	if err := c.api(ctx, http.MethodPost, "/addTask", doc, &created); err != nil {
		return mapper.MarvinDoc{}, err
	}
	if created.ID == "" {
		return mapper.MarvinDoc{}, &domain.RemoteCallError{System: domain.Marvin, Op: "addTask", Err: errors.New("response has no _id")}
	}
	return created, nil
}

type setter struct {
	Key string `json:"key"`
	Val any    `json:"val"`
}

// UpdateDoc sets fields on a document and stamps updatedAt.
// API: POST /doc/update {"itemId": ..., "setters": [...]}
func (c *Client) UpdateDoc(ctx context.Context, id string, patch map[string]any) error {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	setters := make([]setter, 0, len(keys)+1)
	for _, k := range keys {
		setters = append(setters, setter{Key: k, Val: patch[k]})
	}
	setters = append(setters, setter{Key: "fieldUpdates.updatedAt", Val: time.Now().UnixMilli()})
	body := map[string]any{"itemId": id, "setters": setters}
	return c.api(ctx, http.MethodPost, "/doc/update", body, nil)
}

// DeleteDoc removes a document.
// API: POST /doc/delete {"itemId": ...}
func (c *Client) DeleteDoc(ctx context.Context, id string) error {
	return c.api(ctx, http.MethodPost, "/doc/delete", map[string]string{"itemId": id}, nil)
}

// Labels lists every label.
// API: GET /labels
func (c *Client) Labels(ctx context.Context) ([]mapper.MarvinLabel, error) {
	var out []mapper.MarvinLabel
	if err := c.api(ctx, http.MethodGet, "/labels", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) api(ctx context.Context, method, path string, in, out any) error {
	if c.cfg.APIToken == "" {
		return errors.New("marvin: missing api token")
	}
	req, err := newJSONRequest(ctx, method, c.cfg.APIURL+path, in)
	if err != nil {
		return err
	}
	req.Header.Set("X-Full-Access-Token", c.cfg.APIToken)
	_, err = c.do(req, path, out)
	return err
}

func (c *Client) couch(ctx context.Context, method, u string, in, out any) (int, error) {
	req, err := newJSONRequest(ctx, method, u, in)
	if err != nil {
		return 0, err
	}
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	return c.do(req, "couch "+method, out)
}

func (c *Client) do(req *http.Request, op string, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &domain.RemoteCallError{System: domain.Marvin, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &domain.RemoteCallError{
			System: domain.Marvin,
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("marvin: unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("marvin: decode %s: %w", op, err)
	}
	return resp.StatusCode, nil
}

func newJSONRequest(ctx context.Context, method, u string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Selector translates a Query into a Mango selector. Filters on the same
// field merge into one operator object.
func Selector(q ports.Query) map[string]any {
	sel := make(map[string]any, len(q.Filters))
	for _, f := range q.Filters {
		op := mangoOp(f.Op)
		v := mangoValue(f)
		if f.Op == ports.OpContains {
			v = "(?i)" + regexp.QuoteMeta(fmt.Sprint(v))
		}
		if f.Op == ports.OpEq {
			if _, taken := sel[f.Field]; !taken {
				sel[f.Field] = v
				continue
			}
		}
		ops, ok := sel[f.Field].(map[string]any)
		if !ok {
			ops = map[string]any{}
			if prev, exists := sel[f.Field]; exists {
				ops["$eq"] = prev
			}
			sel[f.Field] = ops
		}
		ops[op] = v
	}
	return sel
}

func mangoOp(op ports.Op) string {
	switch op {
	case ports.OpLTE:
		return "$lte"
	case ports.OpGTE:
		return "$gte"
	case ports.OpContains:
		return "$regex"
	}
	return "$eq"
}

// mangoValue renders instants the way the database stores them: day fields
// as YYYY-MM-DD, edit stamps as epoch milliseconds.
func mangoValue(f ports.Filter) any {
	i, ok := f.Value.(timecube.Instant)
	if !ok {
		return f.Value
	}
	if f.Kind == ports.KindLastEdited {
		return i.EpochMillis()
	}
	return i.Date()
}
