package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Timeouts bounds each phase of a backend call.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// DefaultTimeouts are the backend timeouts used when none are configured.
var DefaultTimeouts = Timeouts{Connect: 20 * time.Second, Read: 60 * time.Second, Write: 60 * time.Second}

// HTTPClient calls the assistant REST backend.
type HTTPClient struct {
	base string
	http *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL string, t Timeouts) *HTTPClient {
	if t.Connect <= 0 {
		t.Connect = DefaultTimeouts.Connect
	}
	if t.Read <= 0 {
		t.Read = DefaultTimeouts.Read
	}
	if t.Write <= 0 {
		t.Write = DefaultTimeouts.Write
	}
	dialer := &net.Dialer{Timeout: t.Connect}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: c, read: t.Read, write: t.Write}, nil
		},
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: t.Connect,
	}
	return &HTTPClient{
		base: strings.TrimRight(baseURL, "/") + "/",
		http: &http.Client{Transport: transport},
	}
}

// deadlineConn refreshes the read or write deadline before every call.
type deadlineConn struct {
	net.Conn
	read, write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

type textRequest struct {
	Text   string `json:"text"`
	RoomID string `json:"room_id,omitempty"`
}

type textResponse struct {
	Reply string `json:"reply"`
}

type imageResponse struct {
	Result *Classification `json:"result"`
}

// SendText posts to chat/text.
func (c *HTTPClient) SendText(ctx context.Context, text, roomID string) (string, error) {
	body, err := json.Marshal(textRequest{Text: text, RoomID: roomID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"chat/text", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out textResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// SendImage uploads the photo as multipart field "image" to chat/image.
func (c *HTTPClient) SendImage(ctx context.Context, filename string, r io.Reader) (*Classification, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("assistant: read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"chat/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out imageResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("assistant: %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("assistant: %s: HTTP %d", req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("assistant: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
