package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

// Client drives the chat platform through the bridge's REST API. The bridge
// owns the platform session and renders SurfaceContent as embeds.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type surfaceBody struct {
	Destination string `json:"destination,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	Footer      string `json:"footer,omitempty"`
}

func surfaceBodyFrom(content ports.SurfaceContent) surfaceBody {
	return surfaceBody{
		Destination: content.Destination,
		Title:       content.Title,
		Description: content.Description,
		MediaURL:    content.MediaURL,
		Footer:      content.Footer,
	}
}

func (c *Client) PublishSurface(ctx context.Context, content ports.SurfaceContent) (string, error) {
	var out struct {
		SurfaceID string `json:"surface_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/surfaces", surfaceBodyFrom(content), &out); err != nil {
		return "", fmt.Errorf("publishing surface: %w", err)
	}
	return out.SurfaceID, nil
}

func (c *Client) AddMarker(ctx context.Context, surfaceID string, marker string) error {
	path := "/surfaces/" + url.PathEscape(surfaceID) + "/markers"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"marker": marker}, nil); err != nil {
		return fmt.Errorf("adding marker to %s: %w", surfaceID, err)
	}
	return nil
}

func (c *Client) FetchReactionCount(ctx context.Context, surfaceID string, marker string) (int, error) {
	path := "/surfaces/" + url.PathEscape(surfaceID) + "/reactions?marker=" + url.QueryEscape(marker)
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, fmt.Errorf("fetching reactions for %s: %w", surfaceID, err)
	}
	return out.Count, nil
}

func (c *Client) EditSurface(ctx context.Context, surfaceID string, content ports.SurfaceContent) error {
	path := "/surfaces/" + url.PathEscape(surfaceID)
	if err := c.do(ctx, http.MethodPut, path, surfaceBodyFrom(content), nil); err != nil {
		return fmt.Errorf("editing surface %s: %w", surfaceID, err)
	}
	return nil
}

func (c *Client) ClearReactions(ctx context.Context, surfaceID string) error {
	path := "/surfaces/" + url.PathEscape(surfaceID) + "/reactions"
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("clearing reactions on %s: %w", surfaceID, err)
	}
	return nil
}

func (c *Client) RemoveReaction(ctx context.Context, messageID string, marker string, userID string) error {
	query := url.Values{}
	query.Set("marker", marker)
	query.Set("user_id", userID)
	path := "/messages/" + url.PathEscape(messageID) + "/reactions?" + query.Encode()
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("removing reaction on %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	path := "/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting message %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) SendNotice(ctx context.Context, destination string, text string) error {
	body := map[string]string{"destination": destination, "text": text}
	if err := c.do(ctx, http.MethodPost, "/notices", body, nil); err != nil {
		return fmt.Errorf("sending notice to %s: %w", destination, err)
	}
	return nil
}

func (c *Client) CreateThread(ctx context.Context, parentID string, title string) (string, error) {
	var out struct {
		ThreadID string `json:"thread_id"`
	}
	body := map[string]string{"parent_id": parentID, "title": title}
	if err := c.do(ctx, http.MethodPost, "/threads", body, &out); err != nil {
		return "", fmt.Errorf("creating thread under %s: %w", parentID, err)
	}
	return out.ThreadID, nil
}

func (c *Client) do(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrExternalCapability, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf(
			"%w: %s %s returned %d: %s",
			domainerrors.ErrExternalCapability,
			method,
			path,
			resp.StatusCode,
			strings.TrimSpace(string(detail)),
		)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

var _ ports.Platform = (*Client)(nil)
