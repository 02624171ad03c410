package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"listening/credential"
	"listening/log"
)

const (
	pathReissue = "/api/members/reissue"

	refreshTokenHeader = "refreshToken"
)

// Request describes one backend call. At most one of JSON and Form is set.
type Request struct {
	Method string
	Path   string
	JSON   any
	Form   *Form
	Header http.Header
}

// Client is the authenticated transport. Every call reads the bearer token from the
// session; a 401 triggers one shared reissue and one retry.
type Client struct {
	baseURL  string
	http     *tracedClient
	session  *credential.Session
	reissues singleflight.Group
	now      func() time.Time
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.client.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.client = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, session *credential.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newTracedClient(30 * time.Second),
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Session() *credential.Session { return c.session }

// AuthenticatedRequest sends req with the current bearer token. The response is
// returned as-is whatever its status; only network failures are errors. On 401 it
// reissues once and resends once; if reissue fails the original 401 is returned.
func (c *Client) AuthenticatedRequest(ctx context.Context, req Request) (*Response, error) {
	token := c.session.AccessToken()
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	fresh, ok := c.reissue(ctx, token)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return resp, nil
	}
	return c.send(ctx, req, fresh)
}

// reissue returns a usable access token after a 401 for staleToken. Concurrent
// callers share one in-flight reissue; a caller whose token was already replaced
// skips straight to the retry. The shared reissue is detached from any single
// caller's cancellation; a canceled caller stops waiting but the others still
// get the outcome.
func (c *Client) reissue(ctx context.Context, staleToken string) (string, bool) {
	shared := context.WithoutCancel(ctx)
	ch := c.reissues.DoChan("reissue", func() (any, error) {
		if cur := c.session.AccessToken(); cur != "" && cur != staleToken {
			return cur, nil
		}
		token, err := c.doReissue(shared)
		if err != nil {
			log.Reissue(false, err.Error())
			return "", err
		}
		log.Reissue(true, "")
		return token, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	case <-ctx.Done():
		return "", false
	}
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) doReissue(ctx context.Context) (string, error) {
	cred, err := c.session.Credential()
	if err != nil {
		return "", err
	}
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		return "", fmt.Errorf("no stored credential")
	}

	req := Request{
		Method: http.MethodPost,
		Path:   pathReissue,
		JSON:   map[string]string{"refreshToken": cred.RefreshToken},
		Header: http.Header{refreshTokenHeader: []string{cred.RefreshToken}},
	}
	resp, err := c.send(ctx, req, cred.AccessToken)
	if err != nil {
		return "", err
	}
	tokens, err := decode[tokenPair](resp)
	if err != nil {
		return "", err
	}
	if tokens.AccessToken == "" {
		return "", fmt.Errorf("%w: reissue returned no access token", ErrParse)
	}
	if err := c.session.Renew(credential.Credential{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}); err != nil {
		return "", fmt.Errorf("persist reissued token: %w", err)
	}
	return tokens.AccessToken, nil
}

// send performs exactly one HTTP exchange.
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	url := c.baseURL + req.Path

	var body io.Reader
	var contentType string
	switch {
	case req.Form != nil:
		var err error
		body, contentType, err = req.Form.build()
		if err != nil {
			return nil, err
		}
		name, mimeType, size := req.Form.describe()
		log.Upload(req.Path, name, mimeType, size)
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", req.Path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Errorf("%s %s failed: %v", req.Method, req.Path, err)
		return nil, &NetworkError{Op: req.Method, URL: url, Err: err}
	}

	m := resp.Metrics
	log.Request(req.Method, req.Path, resp.StatusCode, token != "", log.RequestMetrics{
		DNSMs:      float64(m.DNS.Milliseconds()),
		TLSMs:      float64(m.TLS.Milliseconds()),
		TTFBMs:     float64(m.TTFB.Milliseconds()),
		TotalMs:    float64(m.Total.Milliseconds()),
		PhasesMs:   float64(m.Sum().Milliseconds()),
		ConnReused: m.ConnReused,
	})
	return resp, nil
}
