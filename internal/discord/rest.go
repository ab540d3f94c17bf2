package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	defaultTimeout = 15 * time.Second
	auditLogReason = "team sync"
	userAgent      = "DiscordBot (guild-sync, 1.0)"
)

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	// RetryAfter is set from the 429 response body or header.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("discord: status=%d", e.StatusCode)
	if e.Message != "" {
		msg = fmt.Sprintf("discord: status=%d code=%d: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// RESTClient calls the Discord REST API with a bot token.
type RESTClient struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewRESTClient returns a client for the given bot token. An empty baseURL uses the public v10 API.
func NewRESTClient(token, baseURL string) *RESTClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &RESTClient{
		Token:      token,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *RESTClient) CreateRole(ctx context.Context, guildID, name string) (Role, error) {
	var role Role
	body := map[string]any{
		"name":        name,
		"permissions": "0",
		"mentionable": true,
	}
	err := c.do(ctx, http.MethodPost, "/guilds/"+url.PathEscape(guildID)+"/roles", body, &role)
	return role, err
}

func (c *RESTClient) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/guilds/"+url.PathEscape(guildID)+"/roles/"+url.PathEscape(roleID), nil, nil)
}

func (c *RESTClient) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (Channel, error) {
	var ch Channel
	err := c.do(ctx, http.MethodPost, "/guilds/"+url.PathEscape(guildID)+"/channels", spec, &ch)
	return ch, err
}

func (c *RESTClient) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

func (c *RESTClient) SetPermissionOverwrite(ctx context.Context, channelID, roleID string, o Overwrite) error {
	body := map[string]any{
		"type":  OverwriteTypeRole,
		"allow": strconv.FormatInt(o.Allow, 10),
		"deny":  strconv.FormatInt(o.Deny, 10),
	}
	return c.do(ctx, http.MethodPut, "/channels/"+url.PathEscape(channelID)+"/permissions/"+url.PathEscape(roleID), body, nil)
}

func (c *RESTClient) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, memberRolePath(guildID, userID, roleID), nil, nil)
}

func (c *RESTClient) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, memberRolePath(guildID, userID, roleID), nil, nil)
}

func memberRolePath(guildID, userID, roleID string) string {
	return "/guilds/" + url.PathEscape(guildID) + "/members/" + url.PathEscape(userID) + "/roles/" + url.PathEscape(roleID)
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded from a 2xx response when non-nil.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.Token == "" {
		return fmt.Errorf("discord: bot token not configured")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Audit-Log-Reason", auditLogReason)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("discord: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Code       int     `json:"code"`
		Message    string  `json:"message"`
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if payload.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(payload.RetryAfter * float64(time.Second))
		}
	} else if len(raw) > 0 {
		apiErr.Message = string(raw)
	}
	if apiErr.RetryAfter == 0 {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				apiErr.RetryAfter = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return apiErr
}
