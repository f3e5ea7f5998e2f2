// Package client contains an HTTP client for the grasping front-end.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	commonpb "go.viam.com/api/common/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/grasping/grasp"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/services/grasping"
	"go.viam.com/grasping/services/worldmanager"
	"go.viam.com/grasping/web"
)

// Client talks to a grasping server.
type Client struct {
	address    string
	httpClient *http.Client
}

// New returns a client for the server at address, e.g. http://localhost:8080.
func New(address string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{address: strings.TrimSuffix(address, "/"), httpClient: httpClient}
}

// CheckReachability asks whether the proposal is reachable. A busy manipulator is
// grasping.ErrManipulatorBusy.
func (c *Client) CheckReachability(ctx context.Context, p grasp.Proposal) (grasp.Verdict, error) {
	var verdict grasp.Verdict
	err := c.do(ctx, http.MethodPost, web.ReachabilityPath, web.ReachabilityRequest{Grasp: p}, &verdict)
	return verdict, err
}

// Execute executes the proposal and returns the execution report.
func (c *Client) Execute(ctx context.Context, p grasp.Proposal, place *referenceframe.PoseInFrame) (*grasping.Execution, error) {
	var exec grasping.Execution
	if err := c.do(ctx, http.MethodPost, web.ExecutePath, web.ExecuteRequest{Grasp: p, PlacePose: place}, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// HomeArm moves the arm home.
func (c *Client) HomeArm(ctx context.Context) (bool, error) {
	return c.move(ctx, web.HomeArmPath)
}

// OpenHand opens the gripper.
func (c *Client) OpenHand(ctx context.Context) (bool, error) {
	return c.move(ctx, web.OpenHandPath)
}

// CloseHand closes the gripper.
func (c *Client) CloseHand(ctx context.Context) (bool, error) {
	return c.move(ctx, web.CloseHandPath)
}

func (c *Client) move(ctx context.Context, path string) (bool, error) {
	var resp web.SuccessResponse
	err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp)
	return resp.Success, err
}

// AddBox adds a box to the scene.
func (c *Client) AddBox(ctx context.Context, req web.AddBoxRequest) error {
	return c.do(ctx, http.MethodPost, web.BoxesPath, req, nil)
}

// AddMesh adds a mesh to the scene. The server acknowledges missing files too.
func (c *Client) AddMesh(ctx context.Context, req web.AddMeshRequest) error {
	return c.do(ctx, http.MethodPost, web.MeshesPath, req, nil)
}

// RemoveObject removes an object from the scene.
func (c *Client) RemoveObject(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, web.ObjectsPath+"/"+url.PathEscape(name), nil, nil)
}

// Objects lists the scene.
func (c *Client) Objects(ctx context.Context) ([]worldmanager.Object, error) {
	var objects []worldmanager.Object
	err := c.do(ctx, http.MethodGet, web.ObjectsPath, nil, &objects)
	return objects, err
}

// Geometries returns the scene as common.proto geometries.
func (c *Client) Geometries(ctx context.Context) ([]*commonpb.GeometriesInFrame, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, web.GeometriesPath, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]*commonpb.GeometriesInFrame, 0, len(raw))
	for _, r := range raw {
		g := &commonpb.GeometriesInFrame{}
		if err := protojson.Unmarshal(r, g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// RefreshModels has the server re-detect the models.
func (c *Client) RefreshModels(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, web.RefreshPath, struct{}{}, nil)
}

// ReloadModels has the server re-read the model list.
func (c *Client) ReloadModels(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, web.ReloadPath, struct{}{}, nil)
}

// Frames returns the latest published frames.
func (c *Client) Frames(ctx context.Context) ([]web.Frame, error) {
	var frames []web.Frame
	err := c.do(ctx, http.MethodGet, web.FramesPath, nil, &frames)
	return frames, err
}

// Frame returns the latest transform published for the child frame.
func (c *Client) Frame(ctx context.Context, child string) (web.Frame, error) {
	var frame web.Frame
	err := c.do(ctx, http.MethodGet, web.FramesPath+"/"+url.PathEscape(child), nil, &frame)
	return frame, err
}

// WatchFrames calls fn with every frame change the server streams, until ctx ends, the server
// closes the stream, or fn returns an error.
func (c *Client) WatchFrames(ctx context.Context, fn func(web.FrameChange) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.address+web.FramesStreamPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s returned %s", web.FramesStreamPath, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var change web.FrameChange
		if err := json.Unmarshal(scanner.Bytes(), &change); err != nil {
			return errors.Wrap(err, "malformed frame change")
		}
		if err := fn(change); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
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

	switch resp.StatusCode {
	case http.StatusConflict:
		return grasping.ErrManipulatorBusy
	case http.StatusServiceUnavailable:
		return grasping.ErrPlannerUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp web.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
			return errors.Errorf("%s %s returned %s", method, path, resp.Status)
		}
		return errors.Errorf("%s %s returned %s: %s", method, path, resp.Status, errResp.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
