// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

// Package instagram is the Meta Graph API client used to send DMs, post
// comment replies, and look up account media. All outbound traffic flows
// through a client-side rate limiter and, in production wiring, a circuit
// breaker.
package instagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/leadflowhq/leadflow/internal/config"
	"github.com/leadflowhq/leadflow/internal/logging"
)

// GraphError is a structured error returned by the Graph API.
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	TraceID   string `json:"fbtrace_id"`
	HTTPCode  int    `json:"-"`
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d (subcode %d): %s", e.Code, e.Subcode, e.Message)
}

// OutsideMessagingWindow reports whether the error is Meta rejecting a DM
// because the 24-hour messaging window has closed. The engine falls back
// to private replies for comment-triggered flows in that case.
func (e *GraphError) OutsideMessagingWindow() bool {
	return e.Code == 10 && e.Subcode == 2534022
}

// Client talks to the Meta Graph API. One Client serves all connected
// accounts; the per-account page access token is passed per call.
type Client struct {
	graphBaseURL     string // graph.facebook.com, pages + messaging
	instagramBaseURL string // graph.instagram.com, media lookups
	httpClient       *http.Client
	limiter          *rate.Limiter
}

// NewClient creates a Graph API client from configuration.
func NewClient(cfg *config.InstagramConfig) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		graphBaseURL:     cfg.GraphBaseURL,
		instagramBaseURL: cfg.InstagramBaseURL,
		httpClient:       &http.Client{Timeout: timeout},
		limiter:          limiter,
	}
}

// messageRequest is the Send API payload for {page_id}/messages.
type messageRequest struct {
	Recipient   recipient    `json:"recipient"`
	Message     messageBody  `json:"message"`
	MessagingTy string       `json:"messaging_type,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type messageBody struct {
	Text         string       `json:"text"`
	QuickReplies []quickReply `json:"quick_replies,omitempty"`
}

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// sendResponse is the Send API success payload.
type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// SendDM sends a plain text DM to an IGSID via the page messaging
// endpoint. Text must satisfy ValidateDMText.
func (c *Client) SendDM(ctx context.Context, pageID, accessToken, recipientID, text string) (string, error) {
	if err := ValidateDMText(text); err != nil {
		return "", err
	}
	req := messageRequest{
		Recipient:   recipient{ID: recipientID},
		Message:     messageBody{Text: text},
		MessagingTy: "RESPONSE",
	}
	endpoint := fmt.Sprintf("%s/%s/messages", c.graphBaseURL, pageID)
	var resp sendResponse
	if err := c.post(ctx, endpoint, accessToken, req, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// SendDMWithButton sends a DM with a single quick-reply button. Used for
// follow requests so the visitor can confirm with one tap.
func (c *Client) SendDMWithButton(ctx context.Context, pageID, accessToken, recipientID, text, buttonTitle, payload string) (string, error) {
	if err := ValidateDMText(text); err != nil {
		return "", err
	}
	if err := ValidateButtonTitle(buttonTitle); err != nil {
		return "", err
	}
	req := messageRequest{
		Recipient: recipient{ID: recipientID},
		Message: messageBody{
			Text: text,
			QuickReplies: []quickReply{{
				ContentType: "text",
				Title:       buttonTitle,
				Payload:     payload,
			}},
		},
		MessagingTy: "RESPONSE",
	}
	endpoint := fmt.Sprintf("%s/%s/messages", c.graphBaseURL, pageID)
	var resp sendResponse
	if err := c.post(ctx, endpoint, accessToken, req, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// SendPrivateReply sends a DM to the author of a comment. Private replies
// bypass the 24-hour messaging window, once per comment.
func (c *Client) SendPrivateReply(ctx context.Context, accessToken, commentID, text string) (string, error) {
	if err := ValidateDMText(text); err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/%s/private_replies", c.graphBaseURL, commentID)
	var resp sendResponse
	if err := c.post(ctx, endpoint, accessToken, map[string]string{"message": text}, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// ReplyToComment posts a public reply under a comment.
func (c *Client) ReplyToComment(ctx context.Context, accessToken, commentID, text string) error {
	if err := ValidateCommentText(text); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s/replies", c.graphBaseURL, commentID)
	return c.post(ctx, endpoint, accessToken, map[string]string{"message": text}, nil)
}

// Media is one media object on an account.
type Media struct {
	ID        string `json:"id"`
	MediaType string `json:"media_type"`
	Permalink string `json:"permalink,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// mediaListResponse is the Graph API list envelope.
type mediaListResponse struct {
	Data []Media `json:"data"`
}

// GetMedia lists recent media for an IG account.
func (c *Client) GetMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	endpoint := fmt.Sprintf("%s/%s/media", c.instagramBaseURL, igUserID)
	var resp mediaListResponse
	if err := c.get(ctx, endpoint, accessToken, url.Values{
		"fields": []string{"id,media_type,permalink,caption,timestamp"},
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetStories lists active stories for an IG account.
func (c *Client) GetStories(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	endpoint := fmt.Sprintf("%s/%s/stories", c.instagramBaseURL, igUserID)
	var resp mediaListResponse
	if err := c.get(ctx, endpoint, accessToken, url.Values{"fields": []string{"id,media_type,timestamp"}}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetLiveMedia lists active live broadcasts for an IG account.
func (c *Client) GetLiveMedia(ctx context.Context, igUserID, accessToken string) ([]Media, error) {
	endpoint := fmt.Sprintf("%s/%s/live_media", c.instagramBaseURL, igUserID)
	var resp mediaListResponse
	if err := c.get(ctx, endpoint, accessToken, url.Values{"fields": []string{"id,media_type,timestamp"}}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// post issues a JSON POST with the access token as a query parameter.
func (c *Client) post(ctx context.Context, endpoint, accessToken string, body, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("instagram: marshal request: %w", err)
	}

	u := endpoint + "?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("instagram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// get issues a GET with the access token as a query parameter.
func (c *Client) get(ctx context.Context, endpoint, accessToken string, params url.Values, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("instagram: build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("instagram: rate limit wait: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("instagram: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("instagram: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapper struct {
			Error GraphError `json:"error"`
		}
		if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Error.Message != "" {
			wrapper.Error.HTTPCode = resp.StatusCode
			logging.Warn().
				Int("code", wrapper.Error.Code).
				Int("subcode", wrapper.Error.Subcode).
				Int("http_status", resp.StatusCode).
				Msg("graph api call rejected")
			return &wrapper.Error
		}
		return fmt.Errorf("instagram: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("instagram: decode response: %w", err)
	}
	return nil
}
