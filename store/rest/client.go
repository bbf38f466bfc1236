/*
Package rest implements engine.RecordStore against a PostgREST-style HTTP
gateway, the production record store.

WIRE FORMAT:
  GET   /{collection}?status=eq.open&work_id=in.(r1,r2)&order=created_at.desc&limit=1
  POST  /{collection}                 body: record        -> [record]
  PATCH /{collection}?id=eq.a1&...    body: patch         -> [changed records]

  Writes send "Prefer: return=representation" so the gateway echoes the
  affected rows; Update counts them to report conditional-update misses.

AUTH:
  The API key goes out both as "apikey" and as a bearer token.

ERRORS:
  Non-2xx responses become *StatusError. Transport errors and context
  deadlines are returned as-is for the engine to classify.
*/
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/warp/match-engine/engine"
)

// DefaultTimeout bounds a single HTTP round trip when no client is given.
const DefaultTimeout = 10 * time.Second

// ErrConflict is matched by a 409 response, e.g. a duplicate id on insert.
var ErrConflict = errors.New("conflict")

// StatusError is a non-2xx response from the gateway.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrConflict && e.StatusCode == http.StatusConflict
}

// Client implements engine.RecordStore.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (c *Client) Find(ctx context.Context, coll engine.Collection, q engine.Query) ([]engine.Record, error) {
	params, err := encodeFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	if q.OrderBy != "" {
		if !engine.ValidFieldName(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []engine.Record
	if err := c.do(ctx, http.MethodGet, coll, params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, coll engine.Collection, body engine.Record) (engine.Record, error) {
	if body.String("id") == "" {
		return nil, fmt.Errorf("insert into %s: missing id", coll)
	}
	var out []engine.Record
	if err := c.do(ctx, http.MethodPost, coll, nil, body, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return body.Clone(), nil
	}
	return out[0], nil
}

func (c *Client) Update(ctx context.Context, coll engine.Collection, filter engine.Filter, patch engine.Record) (int, error) {
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("update %s: id cannot be patched", coll)
	}
	params, err := encodeFilter(filter)
	if err != nil {
		return 0, err
	}
	var out []engine.Record
	if err := c.do(ctx, http.MethodPatch, coll, params, patch, &out); err != nil {
		return 0, err
	}
	return len(out), nil
}

// =============================================================================
// HTTP
// =============================================================================

func (c *Client) do(ctx context.Context, method string, coll engine.Collection, params url.Values, body any, out any) error {
	path := "/" + url.PathEscape(string(coll))
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// =============================================================================
// FILTER ENCODING
// =============================================================================

var restOps = map[engine.Op]string{
	engine.OpEq:  "eq",
	engine.OpNeq: "neq",
	engine.OpGt:  "gt",
	engine.OpGte: "gte",
	engine.OpLt:  "lt",
	engine.OpLte: "lte",
}

// encodeFilter renders predicates as field=op.value query parameters.
// Several predicates on one field become repeated parameters. A neq on a
// value also matches rows where the field is null, as the other stores do,
// so it is sent as or=(field.is.null,field.neq.value); several of them are
// joined under one and=(...).
func encodeFilter(f engine.Filter) (url.Values, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{}
	var nullable []string
	for _, p := range f {
		switch {
		case p.Op == engine.OpIn:
			values := p.Value.([]any)
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = quoteListItem(formatValue(v))
			}
			params.Add(p.Field, "in.("+strings.Join(parts, ",")+")")
		case p.Value == nil && p.Op == engine.OpEq:
			params.Add(p.Field, "is.null")
		case p.Value == nil && p.Op == engine.OpNeq:
			params.Add(p.Field, "not.is.null")
		case p.Op == engine.OpNeq:
			nullable = append(nullable, p.Field+".is.null,"+p.Field+".neq."+quoteListItem(formatValue(p.Value)))
		default:
			params.Add(p.Field, restOps[p.Op]+"."+formatValue(p.Value))
		}
	}
	switch len(nullable) {
	case 0:
	case 1:
		params.Set("or", "("+nullable[0]+")")
	default:
		groups := make([]string, len(nullable))
		for i, g := range nullable {
			groups[i] = "or(" + g + ")"
		}
		params.Set("and", "("+strings.Join(groups, ",")+")")
	}
	return params, nil
}

func formatValue(v any) string {
	switch n := engine.Normalize(v).(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// quoteListItem protects values that contain list syntax.
func quoteListItem(s string) string {
	if !strings.ContainsAny(s, `,()"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
