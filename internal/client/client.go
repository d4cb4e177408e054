package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"ecgview/internal/ecg"
	"ecgview/internal/protocol"
)

// ChartAlt is the alt text of every image appended to the view.
const ChartAlt = "ECG chart"

// Uploader sends one ECG export and returns the rendered chart.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader, size int64) (Image, error)
}

// ServerError is a non-2xx answer. Body is the response text, verbatim.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Body)
}

// Client talks to an ecgview server over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Layout, when set, is sent as the layout query parameter.
	Layout string
	// WrapBody wraps the encoded request body, e.g. with a progress reader.
	WrapBody func(r io.Reader, size int64) io.Reader
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

func WithLayout(layout string) Option {
	return func(c *Client) { c.Layout = layout }
}

// WithTLS replaces the transport with one that dials using cfg.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = cfg
		c.HTTP.Transport = t
	}
}

func WithBodyWrapper(wrap func(io.Reader, int64) io.Reader) Option {
	return func(c *Client) { c.WrapBody = wrap }
}

// WithTimeout bounds every round trip. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload posts body as the ecg_file field and returns the chart.
func (c *Client) Upload(ctx context.Context, name string, body io.Reader, size int64) (Image, error) {
	resp, err := c.post(ctx, protocol.UploadPath, name, body)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Image{}, &ServerError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return Image{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Alt:         ChartAlt,
	}, nil
}

// Summary posts body to the summary endpoint and decodes the exam metadata.
func (c *Client) Summary(ctx context.Context, name string, body io.Reader) (*ecg.Summary, error) {
	resp, err := c.post(ctx, protocol.SummaryPath, name, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var summary ecg.Summary
	if err := sonic.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}

func (c *Client) post(ctx context.Context, path, name string, body io.Reader) (*http.Response, error) {
	// 1. Encode the multipart form
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(protocol.UploadField, name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	// 2. Build the request
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	size := int64(buf.Len())
	var reqBody io.Reader = &buf
	if c.WrapBody != nil {
		reqBody = c.WrapBody(reqBody, size)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// 3. Send it
	return c.HTTP.Do(req)
}

func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", c.BaseURL, err)
	}
	if c.Layout != "" {
		q := u.Query()
		q.Set(protocol.LayoutQuery, c.Layout)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
