// Package remoteplanner implements a planner backend that forwards requests to an external
// planning service speaking JSON over HTTP.
package remoteplanner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/motionplan"
)

// Name is the registered backend name.
const Name = "remote"

// Paths served by a planning service.
const (
	HealthPath      = "/v1/health"
	PlanPath        = "/v1/plan"
	PlacePath       = "/v1/place"
	NamedTargetPath = "/v1/named_target"
	StopPath        = "/v1/stop"
)

// Config is the attributes of a remote backend.
type Config struct {
	Address string `json:"address"`
	// TimeoutMarginSec is added to a request's planning time to bound the HTTP call.
	TimeoutMarginSec float64 `json:"timeout_margin_sec"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.Address == "" {
		return errors.New("remote planner requires an address")
	}
	u, err := url.Parse(conf.Address)
	if err != nil {
		return errors.Wrap(err, "invalid remote planner address")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("remote planner address must be http or https, got %q", conf.Address)
	}
	if conf.TimeoutMarginSec < 0 {
		return errors.New("timeout_margin_sec must not be negative")
	}
	return nil
}

func init() {
	motionplan.RegisterBackend(Name, motionplan.Registration{
		Constructor: func(
			ctx context.Context, _ motionplan.Dependencies, attrs motionplan.AttributeMap, logger logging.Logger,
		) (motionplan.Backend, error) {
			conf, err := motionplan.DecodeAttributes[Config](attrs)
			if err != nil {
				return nil, err
			}
			return New(ctx, conf, http.DefaultClient, logger)
		},
		Validate: func(attrs motionplan.AttributeMap) error {
			conf, err := motionplan.DecodeAttributes[Config](attrs)
			if err != nil {
				return err
			}
			return conf.Validate()
		},
	})
}

// NamedTargetResponse is the reply of the named target endpoint.
type NamedTargetResponse struct {
	Success bool `json:"success"`
}

// Client is a remote planner backend.
type Client struct {
	address    string
	margin     time.Duration
	httpClient *http.Client
	logger     logging.Logger
}

// New returns a client for the planning service at conf.Address. The service must answer its
// health check; there is no reconnection later.
func New(ctx context.Context, conf Config, httpClient *http.Client, logger logging.Logger) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	margin := time.Duration(conf.TimeoutMarginSec * float64(time.Second))
	if margin == 0 {
		margin = 5 * time.Second
	}
	c := &Client{
		address:    strings.TrimSuffix(conf.Address, "/"),
		margin:     margin,
		httpClient: httpClient,
		logger:     logger,
	}
	if err := c.do(ctx, http.MethodGet, HealthPath, 0, nil, nil); err != nil {
		return nil, errors.Wrapf(err, "planning service at %s is not reachable", c.address)
	}
	logger.Infow("connected to planning service", "address", c.address)
	return c, nil
}

// Plan implements motionplan.Planner.
func (c *Client) Plan(ctx context.Context, req motionplan.PlanRequest) (motionplan.PlanResponse, error) {
	ctx, span := trace.StartSpan(ctx, "remoteplanner::Plan")
	defer span.End()

	var resp motionplan.PlanResponse
	if err := c.do(ctx, http.MethodPost, PlanPath, req.PlanningTime, req, &resp); err != nil {
		return motionplan.PlanResponse{}, err
	}
	return resp, nil
}

// PlaceWithRetry implements motionplan.PlaceExecutor.
func (c *Client) PlaceWithRetry(ctx context.Context, req motionplan.PlaceRequest) (motionplan.PlaceResponse, error) {
	ctx, span := trace.StartSpan(ctx, "remoteplanner::PlaceWithRetry")
	defer span.End()

	var resp motionplan.PlaceResponse
	if err := c.do(ctx, http.MethodPost, PlacePath, req.PlanningTime, req, &resp); err != nil {
		return motionplan.PlaceResponse{}, err
	}
	return resp, nil
}

// GoToNamedTarget implements motionplan.NamedTargetPlanner.
func (c *Client) GoToNamedTarget(ctx context.Context, req motionplan.NamedTargetRequest) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "remoteplanner::GoToNamedTarget")
	defer span.End()

	var resp NamedTargetResponse
	if err := c.do(ctx, http.MethodPost, NamedTargetPath, req.PlanningTime, req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Stop asks the service to halt motion.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, StopPath, 0, struct{}{}, nil)
}

// Close releases idle connections.
func (c *Client) Close(ctx context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, budgetSec float64, body, out interface{}) error {
	timeout := time.Duration(budgetSec*float64(time.Second)) + c.margin
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.address+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.CDebugw(ctx, "planning service request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		io.Copy(io.Discard, resp.Body)
		//nolint:errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("planning service %s %s returned %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decoding %s response", path)
}
