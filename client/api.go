package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	sk "github.com/Krillle/SignalKKit"
)

// TokenManager is the token-store surface the REST client drives.
// *token.Store implements it.
type TokenManager interface {
	sk.TokenSource
	EnsureTokenAvailable(ctx context.Context)
	ClearToken()
	Denied() bool
	Request(ctx context.Context, description string) error
}

// APIClient issues GET and PUT requests against the REST control plane,
// attaching bearer credentials and driving token acquisition on
// authorization failures.
type APIClient struct {
	http    *http.Client
	baseURL string
	tokens  TokenManager
}

// NewAPIClient builds a client for the control plane rooted at baseURL.
// tokens may be nil; requests then always go out anonymous.
func NewAPIClient(baseURL string, tokens TokenManager, opts sk.Options) *APIClient {
	opts = opts.WithDefaults()
	return &APIClient{
		http:    &http.Client{Timeout: opts.RequestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// Get fetches path. On a 401 the stored credentials are cleared, one token
// acquisition pass runs and the call is retried exactly once with whatever
// that produced; a non-200 after that is the caller's to handle.
func (a *APIClient) Get(ctx context.Context, path string) ([]byte, error) {
	if a.baseURL == "" {
		return nil, sk.ErrNoServerConfigured
	}
	body, status, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && a.tokens != nil {
		a.tokens.ClearToken()
		a.tokens.EnsureTokenAvailable(ctx)
		glog.V(2).Infof("api: retrying GET %s after 401", path)
		body, status, err = a.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, &sk.HTTPError{StatusCode: status}
	}
	return body, nil
}

// Put writes body to path. Writes require authorization, so a token
// acquisition pass runs first and the call fails fast when none could be
// obtained. A 401 response clears the credentials and starts acquiring a
// fresh token for the next call; the current call still fails since the
// body already went out.
func (a *APIClient) Put(ctx context.Context, path string, body []byte) error {
	if a.baseURL == "" {
		return sk.ErrNoServerConfigured
	}
	if a.tokens == nil {
		return sk.ErrNoAccessToken
	}
	a.tokens.EnsureTokenAvailable(ctx)
	if _, ok := a.tokens.Token(); !ok {
		return sk.ErrNoAccessToken
	}
	_, status, err := a.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		a.tokens.ClearToken()
		a.tokens.EnsureTokenAvailable(ctx)
		return &sk.HTTPError{StatusCode: status}
	}
	if status < 200 || status > 299 {
		return &sk.HTTPError{StatusCode: status}
	}
	return nil
}

// RequestAccessToken starts the capability-token approval flow with an
// operator-facing description. It fails fast when the server already
// denied this client.
func (a *APIClient) RequestAccessToken(ctx context.Context, description string) error {
	if a.tokens == nil {
		return sk.ErrNoAccessToken
	}
	return a.tokens.Request(ctx, description)
}

func (a *APIClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+normalizePath(path), rd)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.tokens != nil {
		if tok, ok := a.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", sk.ErrInvalidResponse, err)
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", sk.ErrInvalidResponse, err)
	}
	return rb, resp.StatusCode, nil
}

func normalizePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/" + p
	}
	return p
}
