package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/authorization"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

const maxResponseBytes = 1 << 20

// Transport issues authenticated calls against the merchant's gateway.
type Transport interface {
	Post(ctx context.Context, path string, body any) ([]byte, error)
	GraphQL(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

// Client is the Transport for one authorization and configuration.
type Client struct {
	factory      *Factory
	auth         authorization.Authorization
	clientAPIURL string
	graphQLURL   string
}

// Get fetches an absolute URL.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, EndpointConfiguration, http.MethodGet, rawURL, nil)
}

// Post sends body as JSON to path under the client API URL.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	if c.clientAPIURL == "" {
		return nil, domainErrors.NewKindError(domainErrors.ErrConfiguration, "missing_client_api_url", "configuration has no client API URL", nil)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	out, err := c.do(ctx, EndpointREST, http.MethodPost, strings.TrimRight(c.clientAPIURL, "/")+path, payload)
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "malformed_response", "gateway response is not valid JSON", nil)
	}
	return out, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			ErrorClass string `json:"errorClass"`
		} `json:"extensions"`
	} `json:"errors"`
}

// GraphQL runs query and returns the response's data member.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if c.graphQLURL == "" {
		return nil, domainErrors.NewKindError(domainErrors.ErrConfiguration, "missing_graphql_url", "configuration has no GraphQL URL", nil)
	}
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}
	out, err := c.do(ctx, EndpointGraphQL, http.MethodPost, c.graphQLURL, payload)
	if err != nil {
		return nil, err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "malformed_response", "graphql response is not valid JSON", err)
	}
	if len(resp.Errors) > 0 {
		return nil, &GraphQLError{Message: resp.Errors[0].Message, ErrorClass: resp.Errors[0].Extensions.ErrorClass}
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "malformed_response", "graphql response has no data", nil)
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, kind EndpointKind, method, rawURL string, body []byte) ([]byte, error) {
	f := c.factory
	start := time.Now()

	out, err := f.breakers[kind].Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, kind, method, rawURL, body)
	})

	status := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "circuit_open"
		err = domainErrors.NewKindError(domainErrors.ErrTransport, "circuit_open", "gateway circuit breaker is open", err)
	case err != nil:
		status = "error"
	}
	if f.metrics != nil {
		f.metrics.GatewayRequestsTotal.WithLabelValues(string(kind), status).Inc()
		f.metrics.GatewayRequestDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		f.metrics.CircuitBreakerRequests.WithLabelValues("gateway-"+string(kind), status).Inc()
	}
	f.logger.Debug().
		Str("endpoint", string(kind)).
		Str("http_method", method).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("gateway call")
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, kind EndpointKind, method, rawURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "bad_request", "build gateway request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if kind == EndpointGraphQL {
		req.Header.Set("Braintree-Version", c.factory.apiVersion)
	}
	c.setAuthHeader(req)

	resp, err := c.factory.httpClient.Do(req)
	if err != nil {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "network_error", "gateway request failed", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domainErrors.NewKindError(domainErrors.ErrTransport, "network_error", "read gateway response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: out}
	}
	return out, nil
}

func (c *Client) setAuthHeader(req *http.Request) {
	switch c.auth.Kind() {
	case authorization.KindTokenizationKey:
		req.Header.Set("Client-Key", c.auth.Bearer())
	case authorization.KindClientToken, authorization.KindScopedAccessToken:
		req.Header.Set("Authorization", "Bearer "+c.auth.Bearer())
	}
}

func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		return rawURL + sep + key + "=" + url.QueryEscape(value)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

var _ Transport = (*Client)(nil)
