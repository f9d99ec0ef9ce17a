package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/dotside-studios/checkin-agent/buildinfo"
)

// Client talks to one check-in service instance. All query/mutation traffic
// goes through the Transport; the REST endpoints for auth and user
// management are simple one-shot calls.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	transport Transport
	authToken string // full "auth=<hex>" cookie value
	logger    *log.Logger
}

// NewClient builds a client around an existing transport. Used by tests and
// by callers that bring their own transport; normal construction goes
// through Login or FromToken.
func NewClient(transport Transport) *Client {
	return &Client{
		transport: transport,
		http:      http.DefaultClient,
		logger:    log.Default(),
	}
}

// Login authenticates with a username/password pair and returns a client
// holding the session's auth token.
//
// The server hashes the password with a deliberately high iteration count,
// so this call takes a few seconds.
func Login(baseURL, username, password string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	httpClient := &http.Client{}
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := httpClient.PostForm(base.JoinPath("/api/user/login").String(), form)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid username or password")
	}

	var token string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "auth" && cookie.Value != "" {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, fmt.Errorf("no auth token set by server")
	}

	return newAuthedClient(base, httpClient, token), nil
}

// FromToken resumes a client from a previously obtained auth token.
func FromToken(baseURL, token string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("auth token must not be empty")
	}
	return newAuthedClient(base, &http.Client{}, token), nil
}

func newAuthedClient(base *url.URL, httpClient *http.Client, token string) *Client {
	cookie := "auth=" + token
	return &Client{
		baseURL:   base,
		http:      httpClient,
		transport: NewHTTPTransport(base, httpClient, cookie, buildinfo.UserAgent()),
		authToken: cookie,
		logger:    log.Default(),
	}
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// AddUser provisions a new service account, e.g. for a sub-device.
func (c *Client) AddUser(ctx context.Context, username, password string) error {
	return c.updateUser(ctx, http.MethodPut, url.Values{
		"username": {username},
		"password": {password},
	})
}

// DeleteUser removes a service account.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.updateUser(ctx, http.MethodDelete, url.Values{"username": {username}})
}

func (c *Client) updateUser(ctx context.Context, method string, form url.Values) error {
	if c.baseURL == nil {
		return fmt.Errorf("client has no base URL (constructed without Login/FromToken)")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath("/api/user/update").String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("user update request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("user update unsuccessful (status %d)", resp.StatusCode)
	}
	return nil
}

// SearchUsers finds confirmed+accepted attendees matching the text.
func (c *Client) SearchUsers(ctx context.Context, text string, limit int) ([]UserRecord, error) {
	var data userSearchData
	if err := c.run(ctx, UserSearch{Text: text, Limit: limit}, &data); err != nil {
		return nil, err
	}
	return data.Users, nil
}

// GetUser fetches one attendee with their tag states. A badge identifier
// that matches no user fails with an unknown-user error.
func (c *Client) GetUser(ctx context.Context, id string) (*UserWithTags, error) {
	var data userGetData
	if err := c.run(ctx, UserGet{ID: id}, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, newError(ErrUnknownUser, "UserGet", fmt.Sprintf("no user with id %q", id), nil)
	}
	return data.User, nil
}

// GetTagNames lists the service's tag names, optionally only the ones
// currently active.
func (c *Client) GetTagNames(ctx context.Context, onlyCurrent bool) ([]string, error) {
	var data tagsGetData
	if err := c.run(ctx, TagsGet{OnlyCurrent: onlyCurrent}, &data); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data.Tags))
	for _, tag := range data.Tags {
		names = append(names, tag.Name)
	}
	return names, nil
}

// CheckInTag submits the check-in/check-out mutation. A null result means
// the service did not recognize the user id.
func (c *Client) CheckInTag(ctx context.Context, id, tag string, checkin bool) (*CheckInResult, error) {
	var data checkInData
	if err := c.run(ctx, CheckInTag{ID: id, Tag: tag, Checkin: checkin}, &data); err != nil {
		return nil, err
	}
	if data.CheckIn == nil {
		return nil, newError(ErrUnknownUser, "CheckInTag", "invalid user ID on badge", nil)
	}
	return data.CheckIn, nil
}

// run validates, executes, and decodes one operation. Validation failures
// never reach the transport.
func (c *Client) run(ctx context.Context, op Operation, out interface{}) error {
	variables, err := op.Variables()
	if err != nil {
		return err
	}

	data, err := c.transport.Execute(ctx, op.Document(), variables)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return newError(ErrTransport, op.OperationName(), "malformed response data", err)
	}
	return nil
}
