package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Transport executes one request/response exchange against the service.
// Implementations return the raw "data" member of the response envelope;
// service-level errors surface as *GraphQLError.
type Transport interface {
	Execute(ctx context.Context, document string, variables map[string]interface{}) (json.RawMessage, error)
}

// requestEnvelope is the standard GraphQL-over-HTTP request body.
type requestEnvelope struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// responseEnvelope is the standard GraphQL-over-HTTP response body.
type responseEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// HTTPTransport executes operations against the service's /graphql endpoint,
// authenticating with the auth cookie obtained at login.
type HTTPTransport struct {
	endpoint   *url.URL
	client     *http.Client
	authCookie string
	userAgent  string
}

// NewHTTPTransport creates a transport for the service at base. authCookie is
// the full "auth=<token>" cookie value.
func NewHTTPTransport(base *url.URL, client *http.Client, authCookie, userAgent string) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := *base
	endpoint.Path = "/graphql"
	return &HTTPTransport{
		endpoint:   &endpoint,
		client:     client,
		authCookie: authCookie,
		userAgent:  userAgent,
	}
}

// Execute posts the document and variables and unwraps the response envelope.
func (t *HTTPTransport) Execute(ctx context.Context, document string, variables map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(requestEnvelope{Query: document, Variables: variables})
	if err != nil {
		return nil, newError(ErrTransport, "Execute", "encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrTransport, "Execute", "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", t.authCookie)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, newError(ErrTransport, "Execute", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(ErrTransport, "Execute", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, newError(ErrTransport, "Execute", "malformed response", err)
	}

	if len(envelope.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range envelope.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return nil, gqlErr
	}
	if envelope.Data == nil {
		return nil, newError(ErrTransport, "Execute", "response carried no data", nil)
	}
	return envelope.Data, nil
}
