package wxcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"regadmin/internal/registration"
)

// queryLimit is the upstream hard cap per databasequery call.
const queryLimit = 1000

// DefaultCacheTTL bounds how long a full-collection read is reused.
const DefaultCacheTTL = 5 * time.Minute

// Client talks to the WeChat Mini-Program cloud database over the tcb
// HTTP API. Full-collection reads are cached for cacheTTL; nothing
// invalidates the cache on write, it only ages out.
type Client struct {
	baseURL string
	appID   string
	secret  string
	env     string
	http    *http.Client

	tokenMu        sync.Mutex
	token          string
	tokenExpiresAt time.Time

	cacheMu  sync.Mutex
	cacheTTL time.Duration
	cached   []registration.Record
	cachedAt time.Time
}

// New creates a cloud client for the given credentials and environment.
func New(baseURL, appID, secret, env string, cacheTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.weixin.qq.com"
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Client{
		baseURL:  baseURL,
		appID:    appID,
		secret:   secret,
		env:      env,
		cacheTTL: cacheTTL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// cloudResponse is the common envelope of every tcb endpoint.
type cloudResponse struct {
	Errcode int             `json:"errcode"`
	Errmsg  string          `json:"errmsg"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Matched int             `json:"matched"`
	Deleted int             `json:"deleted"`
}

// call posts a pseudo-query string to one tcb endpoint.
func (c *Client) call(ctx context.Context, endpoint, query string) (*cloudResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]string{
		"env":   c.env,
		"query": query,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tcb/"+endpoint+"?access_token="+token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &registration.ProviderError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &registration.ProviderError{Op: endpoint, Err: fmt.Errorf("cloud api %s: %s", resp.Status, string(raw))}
	}

	var out cloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &registration.ProviderError{Op: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Errcode != 0 {
		return nil, &registration.ProviderError{Op: endpoint, Err: fmt.Errorf("cloud api errcode %d: %s", out.Errcode, out.Errmsg)}
	}
	return &out, nil
}

// buildQuery renders a filter set as a cloud pseudo-query. Search maps
// to a case-insensitive regexp over name, status to an exact match.
func buildQuery(collection string, filters registration.Filters) string {
	where := "where({})"
	if filters.Search != "" {
		where = fmt.Sprintf(`where({name: db.RegExp({regexp: ".*%s.*", options: "i"})})`, filters.Search)
	}
	if filters.Status != "" {
		where = fmt.Sprintf(`where({status: %q})`, string(filters.Status))
	}
	return fmt.Sprintf(`db.collection(%q).%s.orderBy("createTime", "desc").limit(%d).get()`, collection, where, queryLimit)
}

// Query fetches matching records, sorts newest first and paginates
// client-side. Unfiltered reads are served from the time-boxed cache
// when fresh.
func (c *Client) Query(ctx context.Context, collection string, filters registration.Filters, opts registration.Options) ([]registration.Record, error) {
	records, err := c.fetch(ctx, collection, filters)
	if err != nil {
		return nil, err
	}
	registration.SortRecords(records, opts)
	return registration.Page(records, opts), nil
}

func (c *Client) fetch(ctx context.Context, collection string, filters registration.Filters) ([]registration.Record, error) {
	unfiltered := filters.Search == "" && filters.Status == ""
	if unfiltered {
		c.cacheMu.Lock()
		if c.cached != nil && time.Since(c.cachedAt) < c.cacheTTL {
			records := append([]registration.Record(nil), c.cached...)
			c.cacheMu.Unlock()
			return records, nil
		}
		c.cacheMu.Unlock()
	}

	resp, err := c.call(ctx, "databasequery", buildQuery(collection, filters))
	if err != nil {
		return nil, err
	}
	records := decodeRecords(resp.Data)

	if unfiltered {
		c.cacheMu.Lock()
		c.cached = append([]registration.Record(nil), records...)
		c.cachedAt = time.Now()
		c.cacheMu.Unlock()
	}
	return records, nil
}

// Count returns the number of documents matching filters.
func (c *Client) Count(ctx context.Context, collection string, filters registration.Filters) (int, error) {
	where := "where({})"
	if filters.Status != "" {
		where = fmt.Sprintf(`where({status: %q})`, string(filters.Status))
	}
	query := fmt.Sprintf(`db.collection(%q).%s.count()`, collection, where)

	resp, err := c.call(ctx, "databasecount", query)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Update patches a single document by id.
func (c *Client) Update(ctx context.Context, collection, id string, patch registration.Patch) error {
	data, _ := json.Marshal(patch)
	query := fmt.Sprintf(`db.collection(%q).doc(%q).update({data: %s})`, collection, id, string(data))

	resp, err := c.call(ctx, "databaseupdate", query)
	if err != nil {
		return err
	}
	if resp.Matched == 0 {
		return registration.ErrNotFound
	}
	return nil
}

// Delete removes a single document by id.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf(`db.collection(%q).doc(%q).remove()`, collection, id)

	resp, err := c.call(ctx, "databasedelete", query)
	if err != nil {
		return err
	}
	if resp.Deleted == 0 {
		return registration.ErrNotFound
	}
	return nil
}

// MajorDistribution groups registrations by declared major.
func (c *Client) MajorDistribution(ctx context.Context, collection string) (map[string]int, error) {
	query := fmt.Sprintf(`db.collection(%q).aggregate().group({_id: "$major", count: $.sum(1)}).end()`, collection)

	resp, err := c.call(ctx, "databaseaggregate", query)
	if err != nil {
		return nil, err
	}

	dist := make(map[string]int)
	for _, raw := range rawElements(resp.Data) {
		if len(raw) > 0 && raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			raw = json.RawMessage(s)
		}
		var g struct {
			ID    string `json:"_id"`
			Count int    `json:"count"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			continue
		}
		key := g.ID
		if key == "" {
			key = "unspecified"
		}
		dist[key] += g.Count
	}
	return dist, nil
}

// CheckConnection probes the environment with a one-document read.
func (c *Client) CheckConnection(ctx context.Context) registration.ConnectionStatus {
	query := fmt.Sprintf(`db.collection(%q).limit(1).get()`, registration.DefaultCollection)
	resp, err := c.call(ctx, "databasequery", query)
	if err != nil {
		return registration.ConnectionStatus{
			Connected: false,
			Message:   fmt.Sprintf("cloud database unreachable: %v", err),
			Env:       c.env,
		}
	}
	return registration.ConnectionStatus{
		Connected: true,
		Message:   "cloud database reachable",
		DataCount: len(rawElements(resp.Data)),
		Env:       c.env,
	}
}
