// Package identity resolves DIDs and caller credentials against the external user
// directory. Roles are fetched on every call and never cached: a role is only
// authoritative for the instant it was read.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"attesto/internal/claims/models"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/circuit"
)

// maxResponseBytes caps how much of a directory response is read.
const maxResponseBytes = 1 << 20

// Client calls the user directory over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     tracer.Tracer
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithBreaker fails calls fast with CodeUnavailable while the directory keeps
// failing. Not-found and credential rejections count as successes.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a directory client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer.NewNoop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// userResponse is the directory's envelope for a single user.
type userResponse struct {
	Data struct {
		UserInfo struct {
			DID      string `json:"did"`
			UserType string `json:"user_type"`
		} `json:"user_info"`
	} `json:"data"`
}

// ResolveSelf returns the identity behind the caller's access token.
func (c *Client) ResolveSelf(ctx context.Context, cred string) (models.Identity, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanIdentityResolveSelf)
	identity, err := c.call(ctx, c.baseURL+"/user/self", cred, span)
	span.End(err)
	return identity, err
}

// ResolveByDID looks up another user's identity using the caller's access token.
func (c *Client) ResolveByDID(ctx context.Context, did, cred string) (models.Identity, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanIdentityResolveByDID,
		tracer.String(tracer.AttrDIDHash, tracer.HashDID(did)),
	)
	identity, err := c.call(ctx, c.baseURL+"/user/"+url.PathEscape(did), cred, span)
	span.End(err)
	return identity, err
}

// Check fails while the directory circuit is open. It never calls the directory,
// which requires a caller credential.
func (c *Client) Check(context.Context) error {
	if c.breaker != nil && c.breaker.State() == circuit.StateOpen {
		return dErrors.New(dErrors.CodeUnavailable, "identity directory circuit open")
	}
	return nil
}

func (c *Client) call(ctx context.Context, endpoint, cred string, span tracer.Span) (models.Identity, error) {
	if c.breaker == nil {
		return c.fetch(ctx, endpoint, cred, span)
	}
	if !c.breaker.Allow() {
		return models.Identity{}, dErrors.New(dErrors.CodeUnavailable, "identity directory circuit open")
	}

	identity, err := c.fetch(ctx, endpoint, cred, span)
	if dErrors.HasCode(err, dErrors.CodeUnavailable) {
		if change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "identity directory circuit opened", "breaker", c.breaker.Name(), "error", err)
		}
		return identity, err
	}
	if change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "identity directory circuit closed", "breaker", c.breaker.Name())
	}
	return identity, err
}

func (c *Client) fetch(ctx context.Context, endpoint, cred string, span tracer.Span) (models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build identity request")
	}
	req.Header.Set("Accept", "application/json")
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+cred)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity directory timed out")
		}
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity directory unreachable")
	}
	defer resp.Body.Close()
	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return models.Identity{}, dErrors.New(dErrors.CodeIdentityNotFound, "identity not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "identity directory rejected the credential")
	default:
		return models.Identity{}, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("identity directory returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read identity response")
	}
	var parsed userResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed identity response")
	}
	info := parsed.Data.UserInfo
	if strings.TrimSpace(info.DID) == "" {
		return models.Identity{}, dErrors.New(dErrors.CodeUnavailable, "identity response is missing a did")
	}

	identity := models.Identity{DID: info.DID, Role: models.ParseRole(info.UserType)}
	span.SetAttributes(tracer.String(tracer.AttrRole, string(identity.Role)))
	return identity, nil
}
