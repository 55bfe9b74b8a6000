package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/plantbutler/internal/storage"
)

type uploadResult struct {
	Ref     string   `json:"ref"`
	URL     string   `json:"url"`
	Day     string   `json:"day,omitempty"`
	DayRefs []string `json:"day_refs,omitempty"`
}

func (s *Server) uploadPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	var declared string
	if strings.HasPrefix(rawURL, "data:") {
		data, declared, err = decodeDataURI(rawURL)
	} else {
		data, declared, err = s.fetch(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := matchDeclared(data, declared); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name, err := s.deps.Photos.Put(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save photo: %v", err)), nil
	}
	res := uploadResult{Ref: storage.Ref(name), URL: "/api/photos/" + name}

	if raw := req.GetString("day", ""); raw != "" {
		day, err := s.day(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		added, err := s.deps.Calendar.AddPhotos(ctx, day, []string{res.Ref})
		if err != nil {
			return errorResult(err)
		}
		res.Day = day.Format(s.deps.Calendar.Location())
		res.DayRefs = added.Refs
	}
	return jsonResult(res)
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI and returns
// the payload with its declared MIME type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > storage.MaxImageBytes {
		return nil, "", fmt.Errorf("file too large: %d bytes (max %d)", len(data), storage.MaxImageBytes)
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if _, ok := storage.ExtForMIME(mime); !ok {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, mime, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with host checks on
// every hop.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only data, http, https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, storage.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > storage.MaxImageBytes {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", storage.MaxImageBytes)
	}
	return data, strings.Split(resp.Header.Get("Content-Type"), ";")[0], nil
}

// checkBlockedHost rejects loopback, link-local and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() || ip.IsUnspecified() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.IsLinkLocalUnicast() {
		return fmt.Errorf("blocked host: link-local or metadata address %s", host)
	}
	return nil
}

// matchDeclared verifies the sniffed content agrees with a declared image
// MIME type. An empty or generic declaration only requires a supported image.
func matchDeclared(data []byte, declared string) error {
	ext, err := storage.DetectImage(data)
	if err != nil {
		return err
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "" || declared == "application/octet-stream" {
		return nil
	}
	want, ok := storage.ExtForMIME(declared)
	if !ok {
		return fmt.Errorf("unsupported content type: %s", declared)
	}
	if want != ext {
		return fmt.Errorf("content does not match declared type %s (detected %s)", declared, ext)
	}
	return nil
}
