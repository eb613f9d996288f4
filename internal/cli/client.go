package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// apiClient talks to a running ratewarden server. Keys always travel
// base64-encoded so binary keys survive both JSON and URLs.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// apiError carries the server's error payload alongside the status.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// doJSON runs a request and decodes a success body into out. Error
// statuses are turned into apiError with the server's message.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	status, raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		return decodeAPIError(status, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}
	return &apiError{Status: status, Message: payload.Error}
}

type checkResult struct {
	Allowed   bool    `json:"allowed"`
	Bypass    bool    `json:"bypass"`
	Remaining *uint64 `json:"remaining"`
	Error     string  `json:"error"`
}

// check runs the admission check. A denial comes back as a result, not
// an error.
func (c *apiClient) check(ctx context.Context, id string, key []byte, amount uint64) (checkResult, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/v1/limiters/"+url.PathEscape(id)+"/check",
		map[string]any{"key_b64": base64.StdEncoding.EncodeToString(key), "amount": amount})
	if err != nil {
		return checkResult{}, err
	}
	if status != http.StatusOK && status != http.StatusTooManyRequests {
		return checkResult{}, decodeAPIError(status, raw)
	}
	var res checkResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return checkResult{}, fmt.Errorf("decoding response: %w", err)
	}
	return res, nil
}

func (c *apiClient) record(ctx context.Context, id string, key []byte, amount uint64) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/limiters/"+url.PathEscape(id)+"/record",
		map[string]any{"key_b64": base64.StdEncoding.EncodeToString(key), "amount": amount}, nil)
}

func (c *apiClient) bypass(ctx context.Context, id string, key []byte) (bool, error) {
	q := url.Values{"key_b64": []string{base64.StdEncoding.EncodeToString(key)}}
	var out struct {
		Bypass bool `json:"bypass"`
	}
	err := c.doJSON(ctx, http.MethodGet,
		"/v1/limiters/"+url.PathEscape(id)+"/bypass?"+q.Encode(), nil, &out)
	return out.Bypass, err
}

func (c *apiClient) rulePath(id string, key []byte) string {
	return "/v1/limiters/" + url.PathEscape(id) + "/rules/" + base64.RawURLEncoding.EncodeToString(key)
}

func (c *apiClient) ruleGet(ctx context.Context, id string, key []byte) (*limiter.Rule, error) {
	var rule limiter.Rule
	if err := c.doJSON(ctx, http.MethodGet, c.rulePath(id, key), nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *apiClient) rulePut(ctx context.Context, id string, key []byte, rule limiter.Rule) error {
	return c.doJSON(ctx, http.MethodPut, c.rulePath(id, key), rule, nil)
}

func (c *apiClient) ruleDelete(ctx context.Context, id string, key []byte) error {
	return c.doJSON(ctx, http.MethodDelete, c.rulePath(id, key), nil, nil)
}

type quotaResult struct {
	Tracked     bool   `json:"tracked"`
	LastUpdated uint64 `json:"last_updated"`
	Remaining   uint64 `json:"remaining"`
}

func (c *apiClient) quota(ctx context.Context, id string, key []byte) (quotaResult, error) {
	var out quotaResult
	err := c.doJSON(ctx, http.MethodGet,
		"/v1/limiters/"+url.PathEscape(id)+"/quota/"+base64.RawURLEncoding.EncodeToString(key), nil, &out)
	return out, err
}

func (c *apiClient) whitelist(ctx context.Context, id string) ([]limiter.KeyFilter, error) {
	var out struct {
		Filters []limiter.KeyFilter `json:"filters"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/v1/limiters/"+url.PathEscape(id)+"/whitelist", nil, &out)
	return out.Filters, err
}

func (c *apiClient) whitelistAdd(ctx context.Context, id string, f limiter.KeyFilter) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/limiters/"+url.PathEscape(id)+"/whitelist/filters", f, nil)
}

func (c *apiClient) whitelistRemove(ctx context.Context, id string, f limiter.KeyFilter) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/limiters/"+url.PathEscape(id)+"/whitelist/filters", f, nil)
}

func (c *apiClient) whitelistReset(ctx context.Context, id string, fs []limiter.KeyFilter) error {
	if fs == nil {
		fs = []limiter.KeyFilter{}
	}
	return c.doJSON(ctx, http.MethodPut, "/v1/limiters/"+url.PathEscape(id)+"/whitelist", fs, nil)
}

// clientOptions holds the flags shared by every command that talks to
// a running server.
type clientOptions struct {
	server  string
	limiter string
	token   string
}

func (o *clientOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.server, "server", "http://localhost:8080", "base URL of the ratewarden server")
	cmd.Flags().StringVar(&o.limiter, "limiter", "default", "limiter domain to operate on")
}

func (o *clientOptions) addTokenFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.token, "token", "", "admin bearer token")
}

func (o *clientOptions) client() *apiClient {
	return newAPIClient(o.server, o.token)
}

// parseKeyArg decodes a key argument, treating it as standard base64
// when b64 is set.
func parseKeyArg(arg string, b64 bool) ([]byte, error) {
	if !b64 {
		return []byte(arg), nil
	}
	raw, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
