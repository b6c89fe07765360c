package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// HTTPOpts holds parameters for creating an HTTP transport.
type HTTPOpts struct {
	BaseURL        string        // e.g. "https://api.example.com/1"
	ConsumerKey    string        // OAuth 1.0a consumer credentials
	ConsumerSecret string        //
	Client         *http.Client  // optional; defaults to a 60s-timeout client
	Timeout        time.Duration // per-request timeout when Client is nil
}

// HTTP implements Transport over net/http. Requests are signed with
// OAuth 1.0a when an access credential has been set.
type HTTP struct {
	baseURL string
	config  *oauth1.Config
	client  *http.Client

	mu    sync.Mutex
	token *oauth1.Token
}

// NewHTTP creates an HTTP transport.
func NewHTTP(opts HTTPOpts) (*HTTP, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		config: &oauth1.Config{
			ConsumerKey:    opts.ConsumerKey,
			ConsumerSecret: opts.ConsumerSecret,
		},
		client: client,
	}, nil
}

// SetCredential installs the access token used to sign subsequent requests.
// A nil token disables signing.
func (h *HTTP) SetCredential(token *oauth1.Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Do issues the request and invokes cb from a new goroutine when the
// response (or a connection failure) arrives.
func (h *HTTP) Do(ctx context.Context, method, endpoint string, params Params, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("transport: callback is required")
	}
	req, err := h.buildRequest(ctx, method, endpoint, params)
	if err != nil {
		return err
	}

	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	client := h.client
	if token != nil {
		// The signing RoundTripper wraps the configured base client.
		signing := oauth1.NewClient(context.WithValue(ctx, oauth1.HTTPClient, h.client), h.config, token)
		signing.Timeout = h.client.Timeout
		client = signing
	}

	go func() {
		resp, err := client.Do(req)
		if err != nil {
			cb(0, nil)
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			cb(0, nil)
			return
		}
		cb(resp.StatusCode, body)
	}()
	return nil
}

// buildRequest assembles the URL and body. GET parameters go in the query
// string; POST parameters are form-encoded in the body, since id lists can
// run long.
func (h *HTTP) buildRequest(ctx context.Context, method, endpoint string, params Params) (*http.Request, error) {
	values := url.Values{}
	for _, p := range params {
		values.Add(p.Key, p.Value)
	}

	target := h.baseURL + endpoint
	var reqBody io.Reader
	switch method {
	case http.MethodGet:
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
	case http.MethodPost:
		reqBody = strings.NewReader(values.Encode())
	default:
		return nil, fmt.Errorf("transport: unsupported method %q", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("transport: build %s %s: %w", method, endpoint, err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}
