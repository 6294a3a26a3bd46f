// Package galahapi is the HTTP transport adapter for the Galah server. It
// speaks the wire protocol (form login, JSON/multipart call dispatch,
// streamed downloads) and reports application-level outcomes through the
// X-CallSuccess family of headers. Outcome classification itself lives in
// the application layer.
package galahapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/galah-project/galah-cli/internal/domain"
)

const (
	loginPath = "/api/login"
	callPath  = "/api/call"

	// HeaderCallSuccess carries the application-level outcome of a call,
	// independent of the HTTP status.
	HeaderCallSuccess = "X-CallSuccess"
	// HeaderErrorType categorizes an application-level failure.
	HeaderErrorType = "X-ErrorType"
	// HeaderDownload is a relative URL of a file the server prepared.
	HeaderDownload = "X-Download"
	// HeaderDownloadName is the server-suggested file name.
	HeaderDownloadName = "X-Download-DefaultName"

	maxResponseBytes = 16 << 20
)

type Client struct {
	base       *url.URL
	httpClient *http.Client
	jar        *cookiejar.Jar
	logger     *slog.Logger
}

type Option func(*Client)

// WithInsecureTLS disables certificate verification on the transport.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(host string, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("host is not configured")
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", host, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("host %q must be an http(s) URL", host)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := &Client{
		base:       base,
		jar:        jar,
		httpClient: &http.Client{Jar: jar},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.httpClient.Jar = jar
	return client, nil
}

// Cookies exports the credential material currently held for the server,
// for persistence.
func (c *Client) Cookies() []domain.Cookie {
	var cookies []domain.Cookie
	for _, cookie := range c.jar.Cookies(c.base) {
		cookies = append(cookies, domain.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return cookies
}

// SetCookies restores previously persisted credential material.
func (c *Client) SetCookies(cookies []domain.Cookie) {
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		restored = append(restored, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	c.jar.SetCookies(c.base, restored)
}

// ClearCookies drops all credential material, e.g. after a failed login.
func (c *Client) ClearCookies() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	c.jar = jar
	c.httpClient.Jar = jar
}

// Resolve joins a (possibly relative) URL reference against the
// configured host.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return c.base.ResolveReference(parsed).String(), nil
}

// Login authenticates with an email/password pair. The server signals
// rejection with X-CallSuccess regardless of HTTP status; that surfaces
// as domain.ErrAuthentication, distinct from transport failures.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.postLogin(ctx, url.Values{"email": {email}, "password": {password}})
}

// LoginWithToken authenticates with an externally obtained access token.
func (c *Client) LoginWithToken(ctx context.Context, accessToken string) error {
	return c.postLogin(ctx, url.Values{"access_token": {accessToken}})
}

func (c *Client) postLogin(ctx context.Context, form url.Values) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: loginPath}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{URL: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.ServerError{Status: resp.StatusCode}
	}
	if resp.Header.Get(HeaderCallSuccess) != "True" {
		return domain.ErrAuthentication
	}
	return nil
}

// VerifyExternalToken asks the identity provider's token-info endpoint
// which identity an access token belongs to. This is the first hop of the
// external-token login; the second is LoginWithToken against the server.
func (c *Client) VerifyExternalToken(ctx context.Context, tokenInfoURL, accessToken string) (string, error) {
	form := url.Values{"access_token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenInfoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.TransportError{URL: tokenInfoURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", domain.ErrAuthentication
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token info response: %w", err)
	}
	if payload.Email == "" {
		return "", fmt.Errorf("token info response carries no identity")
	}
	return payload.Email, nil
}

// CallResponse is the raw result of one dispatched command: status,
// outcome headers, and the full body text. Classification into call
// outcomes happens in the application layer.
type CallResponse struct {
	StatusCode int
	Body       string
	header     http.Header
}

// Success reports the application-level outcome flag. present is false
// when the server sent no X-CallSuccess header at all.
func (r *CallResponse) Success() (ok, present bool) {
	value := r.header.Get(HeaderCallSuccess)
	return value == "True", value != ""
}

func (r *CallResponse) ErrorType() string { return r.header.Get(HeaderErrorType) }

// Download returns the relative download URL and suggested name, if the
// response carries a download indicator.
func (r *CallResponse) Download() (url, name string, ok bool) {
	if _, present := r.header[http.CanonicalHeaderKey(HeaderDownload)]; !present {
		return "", "", false
	}
	return r.header.Get(HeaderDownload), r.header.Get(HeaderDownloadName), true
}

// Call dispatches one resolved request. fields must already include the
// api_name entry. When files is non-empty the request goes out as a
// multipart body: one JSON-encoded "request" field holding the text
// fields, plus one streamed part per file parameter (the field value is
// the local path to open).
func (c *Client) Call(ctx context.Context, fields map[string]string, files map[string]string) (*CallResponse, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: callPath}).String()

	var req *http.Request
	var err error
	if len(files) == 0 {
		req, err = c.newJSONCallRequest(ctx, endpoint, fields)
	} else {
		req, err = c.newMultipartCallRequest(ctx, endpoint, fields, files)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("dispatching api call", "url", endpoint, "fields", len(fields), "files", len(files))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{URL: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{URL: endpoint, Err: err}
	}

	return &CallResponse{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		header:     resp.Header,
	}, nil
}

func (c *Client) newJSONCallRequest(ctx context.Context, endpoint string, fields map[string]string) (*http.Request, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode call request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("create call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newMultipartCallRequest(ctx context.Context, endpoint string, fields map[string]string, files map[string]string) (*http.Request, error) {
	// Verify the files open before wiring up the pipe so the caller gets
	// a plain error instead of a mid-request abort.
	opened := make(map[string]*os.File, len(files))
	for param, path := range files {
		f, err := os.Open(path)
		if err != nil {
			for _, open := range opened {
				_ = open.Close()
			}
			return nil, fmt.Errorf("open upload for parameter %q: %w", param, err)
		}
		opened[param] = f
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		for _, open := range opened {
			_ = open.Close()
		}
		return nil, fmt.Errorf("encode call request: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer func() {
			for _, open := range opened {
				_ = open.Close()
			}
		}()

		if err := writer.WriteField("request", string(payload)); err != nil {
			pw.CloseWithError(err)
			return
		}
		for param, f := range opened {
			part, err := writer.CreateFormFile(param, filepath.Base(f.Name()))
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f); err != nil {
				pw.CloseWithError(fmt.Errorf("stream upload for parameter %q: %w", param, err))
				return
			}
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		for _, open := range opened {
			_ = open.Close()
		}
		return nil, fmt.Errorf("create call request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// ErrPollTimeout means the server did not accept the poll connection (or
// produce response headers) within the allotted time. The download engine
// treats it as "not ready yet".
var ErrPollTimeout = errors.New("download poll timed out")

// PollDownload issues one GET of the download poll loop. The timeout caps
// connecting and receiving the response headers; once headers arrive the
// body may stream for as long as it needs. The download engine owns
// status handling and must close the body.
func (c *Client) PollDownload(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create download request: %w", err)
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		timer.Stop()
		cancel()
		if timedOut.Load() && ctx.Err() == nil {
			return nil, ErrPollTimeout
		}
		return nil, err
	}
	timer.Stop()

	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
