// Package web provides the HTTP front-end of the grasping server.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"
	"google.golang.org/protobuf/encoding/protojson"

	"go.viam.com/grasping/logging"
	"go.viam.com/grasping/referenceframe"
	"go.viam.com/grasping/services/grasping"
	"go.viam.com/grasping/services/worldmanager"
)

const (
	maxHeaderBytes = 1 << 20
	// frameStreamBuffer is how many changes a slow stream reader may fall behind before it misses some.
	frameStreamBuffer = 16
)

// Options configures how the front-end listens.
type Options struct {
	BindAddress string
	TLSCertFile string
	TLSKeyFile  string
}

// Secure reports whether the front-end serves TLS.
func (o Options) Secure() bool {
	return o.TLSCertFile != "" && o.TLSKeyFile != ""
}

// Server is the HTTP front-end. It parses requests and hands them to the grasping service and the
// world manager; it does no validation of its own beyond JSON decoding.
type Server struct {
	service     *grasping.Service
	scene       *worldmanager.Manager
	broadcaster *referenceframe.Broadcaster
	logger      logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
	webWorkers sync.WaitGroup

	// closing ends frame streams so Stop does not wait on them.
	closing   chan struct{}
	closeOnce sync.Once
}

// New returns a Server for the service, scene and published frames.
func New(
	service *grasping.Service,
	scene *worldmanager.Manager,
	broadcaster *referenceframe.Broadcaster,
	logger logging.Logger,
) *Server {
	return &Server{
		service:     service,
		scene:       scene,
		broadcaster: broadcaster,
		logger:      logger,
		closing:     make(chan struct{}),
	}
}

// Handler returns the routes of the front-end.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Post(ReachabilityPath), s.handleReachability)
	mux.HandleFunc(pat.Post(ExecutePath), s.handleExecute)
	mux.HandleFunc(pat.Post(HomeArmPath), s.handleMove(s.service.HomeArm))
	mux.HandleFunc(pat.Post(OpenHandPath), s.handleMove(s.service.OpenHand))
	mux.HandleFunc(pat.Post(CloseHandPath), s.handleMove(s.service.CloseHand))
	mux.HandleFunc(pat.Post(BoxesPath), s.handleAddBox)
	mux.HandleFunc(pat.Post(MeshesPath), s.handleAddMesh)
	mux.HandleFunc(pat.Delete(ObjectsPath+"/:name"), s.handleRemoveObject)
	mux.HandleFunc(pat.Get(ObjectsPath), s.handleObjects)
	mux.HandleFunc(pat.Get(GeometriesPath), s.handleGeometries)
	mux.HandleFunc(pat.Post(RefreshPath), s.handleModels(s.scene.Refresh))
	mux.HandleFunc(pat.Post(ReloadPath), s.handleModels(s.scene.Reload))
	mux.HandleFunc(pat.Get(FramesPath), s.handleFrames)
	mux.HandleFunc(pat.Get(FramesStreamPath), s.handleFrameStream)
	mux.HandleFunc(pat.Get(FramesPath+"/:child"), s.handleFrame)
	return cors.AllowAll().Handler(mux)
}

// Start listens on the bind address and serves until Stop is called.
func (s *Server) Start(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("web server already started")
	}

	listener, err := net.Listen("tcp", opts.BindAddress)
	if err != nil {
		return err
	}
	httpServer, err := utils.NewPossiblySecureHTTPServer(s.Handler(), utils.HTTPServerOptions{
		Secure:         opts.Secure(),
		MaxHeaderBytes: maxHeaderBytes,
		Addr:           listener.Addr().String(),
	})
	if err != nil {
		return multierr.Combine(err, listener.Close())
	}
	s.httpServer = httpServer
	s.addr = listener.Addr().String()

	scheme := "http"
	if opts.Secure() {
		scheme = "https"
	}
	s.logger.Infow("serving", "url", fmt.Sprintf("%s://%s", scheme, s.addr))

	s.webWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.webWorkers.Done()
		var serveErr error
		if opts.Secure() {
			serveErr = httpServer.ServeTLS(listener, opts.TLSCertFile, opts.TLSKeyFile)
		} else {
			serveErr = httpServer.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Errorw("error serving http", "error", serveErr)
		}
	})
	return nil
}

// Addr is the address the server listens on, once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closing) })
	if httpServer == nil {
		return nil
	}
	err := httpServer.Shutdown(ctx)
	s.webWorkers.Wait()
	return err
}

func (s *Server) handleReachability(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "web::handleReachability")
	defer span.End()

	var req ReachabilityRequest
	if !s.decode(w, r, &req) {
		return
	}
	verdict, err := s.service.CheckReachability(ctx, req.Grasp)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "web::handleExecute")
	defer span.End()

	var req ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	exec, err := s.service.Execute(ctx, req.Grasp, req.PlacePose)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleMove(move func(context.Context) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := move(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, SuccessResponse{Success: ok})
	}
}

func (s *Server) handleAddBox(w http.ResponseWriter, r *http.Request) {
	var req AddBoxRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.scene.AddBox(req.Name, req.Pose, r3.Vector{X: req.SizeX, Y: req.SizeY, Z: req.SizeZ})
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleAddMesh(w http.ResponseWriter, r *http.Request) {
	var req AddMeshRequest
	if !s.decode(w, r, &req) {
		return
	}
	// a mesh that cannot be loaded is logged by the scene and still acknowledged
	s.scene.AddMesh(req.Name, req.Pose, req.Filename)
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRemoveObject(w http.ResponseWriter, r *http.Request) {
	s.scene.RemoveObject(pat.Param(r, "name"))
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.scene.Objects())
}

func (s *Server) handleGeometries(w http.ResponseWriter, r *http.Request) {
	geometries := s.scene.GeometriesInFrame()
	out := make([]json.RawMessage, 0, len(geometries))
	for _, g := range geometries {
		raw, err := protojson.Marshal(g)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, raw)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleModels(update func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := update(r.Context()); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, struct{}{})
	}
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	frames := lo.Map(s.broadcaster.Frames(), func(tf referenceframe.Transform, _ int) Frame {
		return FrameFromTransform(tf)
	})
	sort.Slice(frames, func(i, j int) bool { return frames[i].Child < frames[j].Child })
	s.writeJSON(w, http.StatusOK, frames)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	child := pat.Param(r, "child")
	tf, ok := s.broadcaster.Latest(child)
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.Errorf("no frame %q published", child))
		return
	}
	s.writeJSON(w, http.StatusOK, FrameFromTransform(tf))
}

// handleFrameStream writes a FrameChange line each time a frame is published, until the client
// goes away or the server stops.
func (s *Server) handleFrameStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	changes, unsubscribe := s.broadcaster.Subscribe(frameStreamBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := enc.Encode(FrameChange{Frame: FrameFromTransform(change.Transform), Replaced: change.Replaced}); err != nil {
				s.logger.Debugw("frame stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "malformed request"))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grasping.ErrManipulatorBusy):
		s.writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, grasping.ErrPlannerUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Debugw("request failed", "status", status, "error", err)
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnw("failed to write response", "error", err)
	}
}
