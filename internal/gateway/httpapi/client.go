// Package httpapi implements the remote gateway over the backend's JSON HTTP
// API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/akarev/keepup/internal/errs"
	"github.com/akarev/keepup/internal/gateway"
	"github.com/akarev/keepup/internal/model"
)

// Client talks to the backend's /v1 JSON API with bearer-token auth.
type Client struct {
	base     string
	hc       *http.Client
	token    string
	tokenExp time.Time
}

var _ gateway.Gateway = (*Client)(nil)

// New builds a client for base (scheme://host[:port], no trailing slash).
// token may be empty for unauthenticated dev backends; when it is a JWT, its
// exp claim is extracted so expired tokens fail fast without a network call.
func New(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		base:  base,
		hc:    &http.Client{Timeout: timeout},
		token: token,
	}
	if token != "" {
		var claims jwt.RegisteredClaims
		_, _ = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return nil, nil },
			jwt.WithoutClaimsValidation(),
		)
		if claims.ExpiresAt != nil {
			c.tokenExp = claims.ExpiresAt.Time
		}
	}
	return c
}

// ListEntities implements gateway.Gateway.
func (c *Client) ListEntities(ctx context.Context) ([]model.Entity, error) {
	var out []entityDTO
	if err := c.do(ctx, http.MethodGet, "/v1/entities", nil, &out); err != nil {
		return nil, err
	}
	entities := make([]model.Entity, 0, len(out))
	for _, d := range out {
		e, err := d.toModel()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// CreateEntity implements gateway.Gateway.
func (c *Client) CreateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	var out entityDTO
	if err := c.do(ctx, http.MethodPost, "/v1/entities", fromEntity(e), &out); err != nil {
		return model.Entity{}, err
	}
	return out.toModel()
}

// UpdateEntity implements gateway.Gateway.
func (c *Client) UpdateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	var out entityDTO
	if err := c.do(ctx, http.MethodPut, "/v1/entities/"+e.ID.String(), fromEntity(e), &out); err != nil {
		return model.Entity{}, err
	}
	return out.toModel()
}

// DeleteEntity implements gateway.Gateway.
func (c *Client) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/v1/entities/"+id.String(), nil, nil)
}

// ListEvents implements gateway.Gateway.
func (c *Client) ListEvents(ctx context.Context, entityID uuid.UUID) ([]model.Event, error) {
	var out []eventDTO
	if err := c.do(ctx, http.MethodGet, "/v1/entities/"+entityID.String()+"/events", nil, &out); err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(out))
	for _, d := range out {
		ev, err := d.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// CreateEvent implements gateway.Gateway.
func (c *Client) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	var out eventDTO
	if err := c.do(ctx, http.MethodPost, "/v1/events", fromEvent(ev), &out); err != nil {
		return model.Event{}, err
	}
	return out.toModel()
}

// DeleteEvent implements gateway.Gateway.
func (c *Client) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/v1/events/"+id.String(), nil, nil)
}

// Ping implements gateway.Gateway.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/healthz", nil, nil)
}

// do runs one request/response cycle and maps failures onto the errs
// sentinels.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.token != "" && !c.tokenExp.IsZero() && time.Now().After(c.tokenExp) {
		return fmt.Errorf("%w: access token expired (login required)", errs.ErrValidation)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return mapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return mapStatus(resp.StatusCode, string(bytes.TrimSpace(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", errs.ErrTimeout, err)
	}
	// Connection refused and friends: the backend is not up yet.
	var oe *net.OpError
	if errors.As(err, &oe) {
		return fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	return err
}

func mapStatus(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", errs.ErrValidation, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errs.ErrNotFound, msg)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", errs.ErrTimeout, msg)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", errs.ErrUnavailable, msg)
	}
	return fmt.Errorf("backend status %d: %s", code, msg)
}
