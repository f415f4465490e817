// Package portal is the REST client for the administrative portal API that
// owns cases, exam results, documents and circuits.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"permit-engine/internal/logger"
	"permit-engine/internal/metrics"
	"permit-engine/internal/model"
)

// ErrNotFound is returned for 404 answers where absence is not a valid state.
var ErrNotFound = errors.New("portal: not found")

// StatusError is an unexpected HTTP status from the portal.
type StatusError struct {
	Status int
	Path   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal: %s answered %d", e.Path, e.Status)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithCircuitCache(cache CircuitCache) Option {
	return func(c *Client) { c.cache = cache }
}

type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
	cache   CircuitCache
	log     *logger.Logger
}

func New(cfg Config, log *logger.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                "permit-engine",
			MaxConnsPerHost:     100,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
		},
		cache: NewMemoryCache(),
		log:   log.With("service", "PortalClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Results returns the exam results of a case. A 404 means the case has no
// results yet and yields an empty list.
func (c *Client) Results(ctx context.Context, caseID string) ([]model.ResultRecord, error) {
	var out []model.ResultRecord
	err := c.get(ctx, "results", "/dossiers/"+url.PathEscape(caseID)+"/resultats", &out)
	if errors.Is(err, ErrNotFound) {
		return []model.ResultRecord{}, nil
	}
	return out, err
}

// Documents returns the documents attached to a case. The portal may serve a
// shared collection, so callers still filter by owner.
func (c *Client) Documents(ctx context.Context, caseID string) ([]model.Document, error) {
	var out []model.Document
	err := c.get(ctx, "documents", "/documents?documentable_id="+url.QueryEscape(caseID), &out)
	if errors.Is(err, ErrNotFound) {
		return []model.Document{}, nil
	}
	return out, err
}

// CircuitForRequestType resolves the circuit configured for a request type.
// It returns nil without error when none is configured.
func (c *Client) CircuitForRequestType(ctx context.Context, requestType string) (*model.Circuit, error) {
	if circuit, ok := c.cache.Get(ctx, requestType); ok {
		metrics.CircuitResolutions.WithLabelValues("cache").Inc()
		return circuit, nil
	}
	metrics.CircuitResolutions.WithLabelValues("portal").Inc()

	var found []model.Circuit
	err := c.get(ctx, "circuits", "/circuits?type_demande="+url.QueryEscape(requestType), &found)
	if errors.Is(err, ErrNotFound) || (err == nil && len(found) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	circuit := found[0]
	if circuit.RequestType == "" {
		circuit.RequestType = requestType
	}
	c.cache.Set(ctx, requestType, &circuit)
	return &circuit, nil
}

// CircuitStages fetches the stage and piece definitions of a circuit.
func (c *Client) CircuitStages(ctx context.Context, circuitID string) ([]model.Stage, error) {
	var out []model.Stage
	if err := c.get(ctx, "stages", "/circuits/"+url.PathEscape(circuitID)+"/etapes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, resource, path string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	defer func() {
		metrics.PortalRequestDuration.WithLabelValues(resource).Observe(time.Since(started).Seconds())
	}()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("portal: GET %s: %w", path, err)
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return ErrNotFound
	case status != fasthttp.StatusOK:
		c.log.Warn("Portal answered with error", "path", path, "status", status)
		return &StatusError{Status: status, Path: path}
	}
	if err := decodeBody(resp.Body(), out); err != nil {
		return fmt.Errorf("portal: decode %s: %w", path, err)
	}
	return nil
}

// decodeBody accepts both bare payloads and {"data": ...} envelopes.
func decodeBody(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
			body = env.Data
		}
	}
	return json.Unmarshal(body, out)
}
