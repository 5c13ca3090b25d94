package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/timecube"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
	pageSize       = 100
)

// Client implements ports.NotionClient using the Notion REST API v1.
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

type queryResponse struct {
	Results    []mapper.Page `json:"results"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor"`
}

// QueryDatabase returns every page of dbID matching q, following cursors.
// Notion: POST /v1/databases/{id}/query
func (c *Client) QueryDatabase(ctx context.Context, dbID string, q ports.Query) ([]mapper.Page, error) {
	if dbID == "" {
		return nil, errors.New("notion: missing database id")
	}
	body := map[string]any{"page_size": pageSize}
	if f := Filter(q); f != nil {
		body["filter"] = f
	}
	var out []mapper.Page
	for {
		var resp queryResponse
		if err := c.call(ctx, http.MethodPost, "/v1/databases/"+dbID+"/query", body, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		body["start_cursor"] = resp.NextCursor
	}
	c.log.Debug("notion query", slog.String("database", dbID), slog.Int("pages", len(out)))
	return out, nil
}

// GetPage fetches a page. A missing page is NotFound.
// Notion: GET /v1/pages/{id}
func (c *Client) GetPage(ctx context.Context, id string) (domain.Lookup[mapper.Page], error) {
	var pg mapper.Page
	err := c.call(ctx, http.MethodGet, "/v1/pages/"+id, nil, &pg)
	var rc *domain.RemoteCallError
	if errors.As(err, &rc) && rc.Status == http.StatusNotFound {
		return domain.NotFound[mapper.Page](), nil
	}
	if err != nil {
		return domain.NotFound[mapper.Page](), err
	}
	return domain.Found(pg), nil
}

// CreatePage adds pg to dbID unless pg already names a parent.
// Notion: POST /v1/pages
func (c *Client) CreatePage(ctx context.Context, dbID string, pg mapper.Page) (mapper.Page, error) {
	parent := pg.Parent
	if parent == nil {
		parent = &mapper.Parent{DatabaseID: dbID}
	}
	body := map[string]any{"parent": parent, "properties": pg.Properties}
	var created mapper.Page
	if err := c.call(ctx, http.MethodPost, "/v1/pages", body, &created); err != nil {
		return mapper.Page{}, err
	}
	return created, nil
}

// UpdatePage overwrites the properties present on pg.
// Notion: PATCH /v1/pages/{id}
func (c *Client) UpdatePage(ctx context.Context, pg mapper.Page) error {
	if pg.ID == "" {
		return errors.New("notion: update without page id")
	}
	return c.call(ctx, http.MethodPatch, "/v1/pages/"+pg.ID, map[string]any{"properties": pg.Properties}, nil)
}

// ArchivePage moves a page to the trash.
func (c *Client) ArchivePage(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPatch, "/v1/pages/"+id, map[string]any{"archived": true}, nil)
}

// FindByTitle returns the first page of dbID whose title field equals text.
func (c *Client) FindByTitle(ctx context.Context, dbID, field, text string) (domain.Lookup[mapper.Page], error) {
	pages, err := c.QueryDatabase(ctx, dbID, ports.Where(
		ports.Filter{Field: field, Kind: ports.KindTitle, Op: ports.OpEq, Value: text},
	))
	if err != nil {
		return domain.NotFound[mapper.Page](), err
	}
	if len(pages) == 0 {
		return domain.NotFound[mapper.Page](), nil
	}
	return domain.Found(pages[0]), nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	if c.token == "" {
		return errors.New("notion: missing api token")
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteCallError{System: domain.Notion, Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.RemoteCallError{
			System: domain.Notion,
			Op:     method + " " + path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("notion: unexpected status %d: %s", resp.StatusCode, string(b)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("notion: decode %s: %w", path, err)
	}
	return nil
}

// Filter translates a Query into a database query filter. It returns nil
// for an empty query and wraps several conditions in "and".
func Filter(q ports.Query) map[string]any {
	conds := make([]map[string]any, 0, len(q.Filters))
	for _, f := range q.Filters {
		conds = append(conds, condition(f))
	}
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	}
	return map[string]any{"and": conds}
}

func condition(f ports.Filter) map[string]any {
	switch f.Kind {
	case ports.KindLastEdited:
		return map[string]any{
			"timestamp":        "last_edited_time",
			"last_edited_time": map[string]any{dateOp(f.Op): instantValue(f.Value, true)},
		}
	case ports.KindDate:
		return map[string]any{"property": f.Field, "date": map[string]any{dateOp(f.Op): instantValue(f.Value, false)}}
	case ports.KindCheckbox:
		return map[string]any{"property": f.Field, "checkbox": map[string]any{"equals": f.Value}}
	case ports.KindNumber:
		return map[string]any{"property": f.Field, "number": map[string]any{numberOp(f.Op): f.Value}}
	case ports.KindRelation:
		return map[string]any{"property": f.Field, "relation": map[string]any{"contains": f.Value}}
	case ports.KindTitle:
		return map[string]any{"property": f.Field, "title": map[string]any{textOp(f.Op): f.Value}}
	}
	return map[string]any{"property": f.Field, "rich_text": map[string]any{textOp(f.Op): f.Value}}
}

func textOp(op ports.Op) string {
	if op == ports.OpContains {
		return "contains"
	}
	return "equals"
}

func dateOp(op ports.Op) string {
	switch op {
	case ports.OpLTE:
		return "on_or_before"
	case ports.OpGTE:
		return "on_or_after"
	}
	return "equals"
}

func numberOp(op ports.Op) string {
	switch op {
	case ports.OpLTE:
		return "less_than_or_equal_to"
	case ports.OpGTE:
		return "greater_than_or_equal_to"
	}
	return "equals"
}

func instantValue(v any, stamp bool) any {
	i, ok := v.(timecube.Instant)
	if !ok {
		return v
	}
	if stamp {
		return i.Timestamp()
	}
	return i.Date()
}
