// Package server is the consumer-facing surface of the bridge: a local HTTP
// API for one-shot operations and a WebSocket event feed for live state.
// Popup, dashboard and page executors all talk to this server; none of them
// ever touch the pipeline socket directly.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/cache"
	"github.com/lotas/gestured/internal/pagemeta"
	"github.com/lotas/gestured/internal/pipeline"
	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/shortcut"
	"github.com/lotas/gestured/internal/storage"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/watchdog"
	"github.com/lotas/gestured/internal/wire"
)

// DefaultAddr is where the consumer API listens.
const DefaultAddr = "127.0.0.1:8977"

// Pipeline is the slice of the connection manager the server needs.
type Pipeline interface {
	State() types.ConnState
	Stopped() bool
	URL() string
	Send(req wire.Request) error
	Connect()
	Disconnect()
	Reconnect()
}

// TitleFetcher resolves a page title for a URL mapping.
type TitleFetcher func(ctx context.Context, rawURL string) (string, error)

// Deps are the server's collaborators, wired up in main.
type Deps struct {
	Pipeline Pipeline
	Cache    *cache.Cache
	Session  *recording.Session
	Stats    *types.Stats
	Watchdog *watchdog.Client
	DB       *sql.DB
	Feed     *Feed
	Titles   TitleFetcher
}

// Server serves the consumer API and the event feed.
type Server struct {
	addr    string
	pipe    Pipeline
	cache   *cache.Cache
	session *recording.Session
	stats   *types.Stats
	wd      *watchdog.Client
	db      *sql.DB
	feed    *Feed
	titles  TitleFetcher
}

// New builds a Server. A nil Feed gets a fresh hub, a nil Titles falls back
// to the readability-based fetcher.
func New(addr string, d Deps) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if d.Feed == nil {
		d.Feed = NewFeed()
	}
	if d.Titles == nil {
		d.Titles = pagemeta.Title
	}
	return &Server{
		addr:    addr,
		pipe:    d.Pipeline,
		cache:   d.Cache,
		session: d.Session,
		stats:   d.Stats,
		wd:      d.Watchdog,
		db:      d.DB,
		feed:    d.Feed,
		titles:  d.Titles,
	}
}

// Feed returns the event hub so the daemon can publish into it.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the full route table as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/gestures/enabled", s.handleGesturesEnabled)
	mux.HandleFunc("/v1/gestures/custom/", s.handleCustomGesture)
	mux.HandleFunc("/v1/bindings", s.handleBindings)
	mux.HandleFunc("/v1/bindings/reset", s.handleBindingsReset)
	mux.HandleFunc("/v1/pipeline/start", s.handlePipelineStart)
	mux.HandleFunc("/v1/pipeline/stop", s.handlePipelineStop)
	mux.HandleFunc("/v1/connection/reconnect", s.handleReconnect)
	mux.HandleFunc("/v1/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/v1/recording/cancel", s.handleRecordingCancel)
	mux.HandleFunc("/v1/mappings", s.handleMappings)
	mux.HandleFunc("/v1/mappings/", s.handleMappingByID)
	mux.HandleFunc("/v1/settings", s.handleSettings)
	mux.HandleFunc("/v1/config", s.handleConfig)
	mux.HandleFunc("/v1/archive", s.handleArchiveList)
	mux.HandleFunc("/v1/archive/", s.handleArchiveByID)
	mux.HandleFunc("/v1/events", s.handleEvents)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	applog.Info("server.start", "addr", s.addr)
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}

// Reply shapes. Every response carries ok so callers never have to infer
// success from the status code alone.

type okReply struct {
	OK bool `json:"ok"`
}

type errReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type healthReply struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type statusReply struct {
	OK              bool                  `json:"ok"`
	Connection      types.ConnState       `json:"connection"`
	UserStopped     bool                  `json:"user_stopped"`
	PipelineURL     string                `json:"pipeline_url"`
	GesturesEnabled bool                  `json:"gestures_enabled"`
	PipelineStatus  string                `json:"pipeline_status"`
	FPS             float64               `json:"fps"`
	LastGesture     *types.LastGesture    `json:"last_gesture,omitempty"`
	Watchdog        *types.WatchdogStatus `json:"watchdog,omitempty"`
	Recording       recording.Snapshot    `json:"recording"`
	Stats           types.StatsSnapshot   `json:"stats"`
	Subscribers     int                   `json:"subscribers"`
}

type enabledReply struct {
	OK      bool `json:"ok"`
	Enabled bool `json:"enabled"`
}

type bindingsReply struct {
	OK       bool              `json:"ok"`
	Bindings map[string]string `json:"bindings"`
}

type mappingsReply struct {
	OK       bool                              `json:"ok"`
	Mappings map[string]types.ExtensionMapping `json:"mappings"`
}

type mappingReply struct {
	OK        bool                   `json:"ok"`
	GestureID string                 `json:"gesture_id"`
	Mapping   types.ExtensionMapping `json:"mapping"`
}

type deleteReply struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted"`
}

type customGestureReply struct {
	OK        bool                `json:"ok"`
	GestureID string              `json:"gesture_id"`
	Gesture   types.CustomGesture `json:"gesture"`
}

type recordingReply struct {
	OK        bool               `json:"ok"`
	Recording recording.Snapshot `json:"recording"`
}

type pipelineReply struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	PID    int    `json:"pid,omitempty"`
}

type configReply struct {
	OK     bool                 `json:"ok"`
	Config types.ConfigSnapshot `json:"config"`
}

type archiveListReply struct {
	OK       bool                   `json:"ok"`
	Archives []storage.ArchiveEntry `json:"archives"`
}

func (s *Server) statusNow() statusReply {
	status, fps := s.cache.Telemetry()
	return statusReply{
		OK:              true,
		Connection:      s.pipe.State(),
		UserStopped:     s.pipe.Stopped(),
		PipelineURL:     s.pipe.URL(),
		GesturesEnabled: s.cache.GesturesEnabled(),
		PipelineStatus:  status,
		FPS:             fps,
		LastGesture:     s.cache.LastGesture(),
		Watchdog:        s.cache.HTTPStatus(),
		Recording:       s.session.Snapshot(),
		Stats:           s.stats.Snapshot(),
		Subscribers:     s.feed.Subscribers(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthReply{OK: true, Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusNow())
}

// handleGesturesEnabled toggles dispatch locally. The pipeline keeps
// producing events either way; nothing is sent upstream.
func (s *Server) handleGesturesEnabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cache.SetGesturesEnabled(body.Enabled)
	applog.Info("server.gestures_enabled", "enabled", body.Enabled)
	s.writeJSON(w, http.StatusOK, enabledReply{OK: true, Enabled: body.Enabled})
}

func (s *Server) handleCustomGesture(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/gestures/custom/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "unknown gesture path")
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.putCustomGesture(w, r, id)
	case http.MethodDelete:
		s.deleteCustomGesture(w, r, id)
	default:
		s.methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

// putCustomGesture uploads recorded gesture data wholesale, for gestures
// exported from another machine or captured before a reinstall. The pipeline
// persists the full blob; the local shadow keeps the display fields and, for
// a gesture it has never seen, an unbound binding.
func (s *Server) putCustomGesture(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gesture, err := parseGestureData(body.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.pipe.Send(wire.SaveCustomGesture(id, body.Data)); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.SaveCustomGesture(id, gesture)
	applog.Info("server.custom_saved", "gesture", id, "samples", gesture.SampleCount)
	s.writeJSON(w, http.StatusOK, customGestureReply{OK: true, GestureID: id, Gesture: gesture})
}

func (s *Server) deleteCustomGesture(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.pipe.Send(wire.DeleteCustomGesture(id)); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.DeleteCustomGesture(id)
	applog.Info("server.custom_deleted", "gesture", id)
	s.writeJSON(w, http.StatusOK, okReply{OK: true})
}

func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, bindingsReply{OK: true, Bindings: s.cache.Bindings()})
	case http.MethodPost:
		var body struct {
			GestureID string `json:"gesture_id"`
			ActionID  string `json:"action_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.GestureID == "" || body.ActionID == "" {
			s.writeError(w, http.StatusBadRequest, "gesture_id and action_id are required")
			return
		}
		if err := s.pipe.Send(wire.UpdateBinding(body.GestureID, body.ActionID)); err != nil {
			s.writeOpError(w, err)
			return
		}
		s.cache.SetBinding(body.GestureID, body.ActionID)
		applog.Info("server.binding", "gesture", body.GestureID, "action", body.ActionID)
		s.writeJSON(w, http.StatusOK, okReply{OK: true})
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleBindingsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.pipe.Send(wire.ResetBindings()); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.ResetBindings()
	applog.Info("server.bindings_reset")
	s.writeJSON(w, http.StatusOK, bindingsReply{OK: true, Bindings: s.cache.Bindings()})
}

// handlePipelineStart asks the watchdog to launch the pipeline process, then
// clears the user-stop flag so the connection manager dials again.
func (s *Server) handlePipelineStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	res, err := s.wd.Start(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.pipe.Reconnect()
	applog.Info("server.pipeline_start", "status", res.Status, "pid", res.PID)
	s.writeJSON(w, http.StatusOK, pipelineReply{OK: true, Status: res.Status, PID: res.PID})
}

// handlePipelineStop suppresses reconnects first, then stops the process.
// Order matters: stopping the process first would trigger one retry cycle
// before the flag lands.
func (s *Server) handlePipelineStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	s.pipe.Disconnect()
	res, err := s.wd.Stop(r.Context())
	if err != nil {
		if errors.Is(err, watchdog.ErrNotRunning) {
			s.writeJSON(w, http.StatusOK, pipelineReply{OK: true, Status: "not_running"})
			return
		}
		s.writeOpError(w, err)
		return
	}
	applog.Info("server.pipeline_stop", "status", res.Status)
	s.writeJSON(w, http.StatusOK, pipelineReply{OK: true, Status: res.Status})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	s.pipe.Reconnect()
	s.writeJSON(w, http.StatusOK, okReply{OK: true})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var body struct {
		GestureID string `json:"gesture_id"`
		Label     string `json:"label"`
		Kind      string `json:"type"`
		Hand      string `json:"hand"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.GestureID == "" || body.Label == "" {
		s.writeError(w, http.StatusBadRequest, "gesture_id and label are required")
		return
	}
	if err := s.session.Start(body.GestureID, body.Label, body.Kind, body.Hand); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recordingReply{OK: true, Recording: s.session.Snapshot()})
}

func (s *Server) handleRecordingCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	s.session.Cancel()
	s.writeJSON(w, http.StatusOK, recordingReply{OK: true, Recording: s.session.Snapshot()})
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, mappingsReply{OK: true, Mappings: s.cache.Mappings()})
}

func (s *Server) handleMappingByID(w http.ResponseWriter, r *http.Request) {
	gestureID := strings.TrimPrefix(r.URL.Path, "/v1/mappings/")
	if gestureID == "" || strings.Contains(gestureID, "/") {
		s.writeError(w, http.StatusNotFound, "unknown mapping path")
		return
	}
	switch r.Method {
	case http.MethodPut:
		s.putMapping(w, r, gestureID)
	case http.MethodDelete:
		s.deleteMapping(w, r, gestureID)
	default:
		s.methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

// putMapping validates the mapping, points the pipeline binding at the
// delegate action, then stores the mapping locally. URL targets get a title
// fetch in the background.
func (s *Server) putMapping(w http.ResponseWriter, r *http.Request, gestureID string) {
	var body struct {
		Kind         string `json:"kind"`
		Target       string `json:"target"`
		OpenInNewTab bool   `json:"open_in_new_tab"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := types.ExtensionMapping{OpenInNewTab: body.OpenInNewTab}
	switch types.MappingKind(body.Kind) {
	case types.MappingURL:
		target, err := normalizeURLTarget(body.Target)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		m.Kind = types.MappingURL
		m.Target = target
	case types.MappingShortcut:
		combo, err := shortcut.Parse(body.Target)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		m.Kind = types.MappingShortcut
		m.Target = combo.Normalize()
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mapping kind %q", body.Kind))
		return
	}

	if err := s.pipe.Send(wire.UpdateBinding(gestureID, types.ActionDelegate)); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.SetBinding(gestureID, types.ActionDelegate)
	s.cache.SaveMapping(gestureID, m)
	applog.Info("server.mapping_saved", "gesture", gestureID, "kind", string(m.Kind), "target", m.Target)

	if m.Kind == types.MappingURL {
		go s.fetchTitle(gestureID, m.Target)
	}
	s.writeJSON(w, http.StatusOK, mappingReply{OK: true, GestureID: gestureID, Mapping: m})
}

// deleteMapping unbinds the gesture upstream and drops the local mapping.
func (s *Server) deleteMapping(w http.ResponseWriter, r *http.Request, gestureID string) {
	if err := s.pipe.Send(wire.UpdateBinding(gestureID, types.ActionNone)); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.SetBinding(gestureID, types.ActionNone)
	deleted := s.cache.DeleteMapping(gestureID)
	applog.Info("server.mapping_deleted", "gesture", gestureID, "existed", deleted)
	s.writeJSON(w, http.StatusOK, deleteReply{OK: true, Deleted: deleted})
}

func (s *Server) fetchTitle(gestureID, target string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	title, err := s.titles(ctx, target)
	if err != nil {
		applog.Error("server.title", err, "url", target)
		return
	}
	if title != "" {
		s.cache.SetMappingTitle(gestureID, target, title)
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var body struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Key == "" {
		s.writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if len(body.Value) == 0 {
		body.Value = json.RawMessage("null")
	}
	if err := s.pipe.Send(wire.UpdateSetting(body.Key, body.Value)); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.cache.SetSetting(body.Key, body.Value)
	applog.Info("server.setting", "key", body.Key)
	s.writeJSON(w, http.StatusOK, okReply{OK: true})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, configReply{OK: true, Config: s.cache.Config()})
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := storage.ListArchives(s.db, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, archiveListReply{OK: true, Archives: entries})
}

func (s *Server) handleArchiveByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/archive/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "unknown archive path")
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	raw, err := storage.GetArchive(s.db, id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// handleEvents upgrades to WebSocket, primes the subscriber with current
// state, then forwards feed frames until the client goes away. The read side
// is closed immediately: the feed is one-way.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		applog.Error("feed.accept", err)
		return
	}

	sub := s.feed.subscribe()
	defer s.feed.unsubscribe(sub.id)
	applog.Info("feed.subscribed", "id", sub.id, "remote", r.RemoteAddr)
	defer applog.Info("feed.unsubscribed", "id", sub.id)

	// Primer frames so a fresh consumer renders without waiting for the
	// next state change.
	s.feed.push(sub, EventSnapshot, s.statusNow())
	s.feed.push(sub, EventConfig, s.cache.Config())
	s.feed.push(sub, EventMappings, s.cache.Mappings())

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case frame := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				conn.CloseNow()
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errReply{OK: false, Error: msg})
}

// writeOpError maps operation failures onto status codes: offline pipeline
// and unreachable watchdog are 503, a busy recorder is 409, anything else is
// an internal failure.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotConnected):
		s.writeError(w, http.StatusServiceUnavailable, "not connected")
	case errors.Is(err, watchdog.ErrNotRunning):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, recording.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	w.Header().Set("Allow", strings.Join(allow, ", "))
	s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseGestureData pulls the display fields out of a recorded-gesture blob.
// The samples themselves stay opaque; only their count is kept locally.
func parseGestureData(data []byte) (types.CustomGesture, error) {
	if len(data) == 0 {
		return types.CustomGesture{}, fmt.Errorf("data is required")
	}
	var blob struct {
		Label   string            `json:"label"`
		Kind    string            `json:"type"`
		Hand    string            `json:"hand"`
		Enabled *bool             `json:"enabled"`
		Samples []json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(data, &blob); err != nil {
		return types.CustomGesture{}, fmt.Errorf("decode gesture data: %w", err)
	}
	if len(blob.Samples) == 0 {
		return types.CustomGesture{}, fmt.Errorf("gesture data carries no samples")
	}
	g := types.CustomGesture{
		Label:       blob.Label,
		Kind:        blob.Kind,
		Hand:        blob.Hand,
		SampleCount: len(blob.Samples),
		Enabled:     true,
	}
	if blob.Enabled != nil {
		g.Enabled = *blob.Enabled
	}
	if g.Kind == "" {
		g.Kind = "dynamic"
	}
	return g, nil
}

// normalizeURLTarget fills in a missing scheme and rejects targets that do
// not parse to a host.
func normalizeURLTarget(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", fmt.Errorf("url target is empty")
	}
	if !strings.Contains(t, "://") {
		t = "https://" + t
	}
	u, err := url.Parse(t)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u.String(), nil
}
