package pipeline

import (
	"encoding/json"
	"time"

	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/cache"
	"github.com/lotas/gestured/internal/dispatch"
	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/wire"
)

// Router applies inbound pipeline messages to the shadow state and fans the
// visible changes out to consumer surfaces. Cache writes always happen; the
// gestures-enabled gate only suppresses command dispatch.
//
// Unrecognized and malformed payloads never reach Handle; the connection
// read loop already counted and dropped them.
type Router struct {
	Cache   *cache.Cache
	Session *recording.Session
	Stats   *types.Stats

	// OnConfig observes applied CONFIG_SNAPSHOTs, e.g. for archiving.
	// Cache-backed changes reach the feed through the cache change hook.
	OnConfig func(types.ConfigSnapshot)
	// OnCommand receives commands for page executors.
	OnCommand func(dispatch.Command)
	// OnExecution observes pipeline-side execution outcomes.
	OnExecution func(wire.Execution)
}

// Handle routes one message. Called from the connection read loop, so
// messages are applied in arrival order.
func (r *Router) Handle(msg wire.Message) {
	switch msg := msg.(type) {
	case *wire.Action:
		r.handleAction(msg)
	case *wire.Execution:
		r.handleExecution(msg)
	case *wire.Status:
		r.Cache.SetTelemetry(msg.Status, msg.FPS)
	case *wire.ConfigSnapshot:
		r.Cache.ApplyConfigSnapshot(msg.ConfigSnapshot)
		applog.Info("router.config_applied",
			"bindings", len(msg.Bindings), "custom", len(msg.CustomGestures))
		if r.OnConfig != nil {
			r.OnConfig(msg.ConfigSnapshot)
		}
	case *wire.RecordingEvent:
		r.handleRecording(msg)
	case *wire.Pong, *wire.Ack:
		// Keepalive replies and write confirmations carry nothing to route;
		// the next CONFIG_SNAPSHOT is the authority on config writes.
	}
}

func (r *Router) handleAction(msg *wire.Action) {
	last := types.LastGesture{
		GestureID: msg.GestureID,
		ActionID:  msg.ActionID,
		Hand:      msg.Hand,
		Magnitude: msg.Magnitude,
		Timestamp: msg.Timestamp,
	}
	if last.Timestamp == 0 {
		last.Timestamp = float64(time.Now().UnixNano()) / 1e9
	}
	r.Cache.SetLastGesture(last)

	if msg.ActionID != types.ActionDelegate {
		return
	}
	if !r.Cache.GesturesEnabled() {
		applog.Info("router.suppressed", "gesture", msg.GestureID)
		return
	}
	mapping, ok := r.Cache.Mapping(msg.GestureID)
	if !ok {
		applog.Info("router.no_mapping", "gesture", msg.GestureID)
		return
	}
	cmd, err := dispatch.ResolveMapping(msg.GestureID, mapping)
	if err != nil {
		applog.Error("router.mapping", err, "gesture", msg.GestureID)
		return
	}
	r.emit(cmd)
}

func (r *Router) handleExecution(msg *wire.Execution) {
	// Every EXECUTION counts, including failures and result-only reports.
	r.Stats.AddCommand()
	if msg.Error != "" {
		applog.Info("router.execution_failed", "action", msg.ActionID, "error", msg.Error)
	}
	if r.OnExecution != nil {
		r.OnExecution(*msg)
	}

	cmd, ok := dispatch.FromExecution(msg)
	if !ok {
		return
	}
	if !r.Cache.GesturesEnabled() {
		applog.Info("router.suppressed", "command", cmd.Name)
		return
	}
	r.emit(cmd)
}

func (r *Router) handleRecording(msg *wire.RecordingEvent) {
	r.Session.HandleEvent(msg)

	raw, err := json.Marshal(msg)
	if err != nil {
		applog.Error("router.recording", err)
		return
	}
	r.Cache.SetRecordingEvent(raw, r.Session.Snapshot().Active())
}

func (r *Router) emit(cmd dispatch.Command) {
	if r.OnCommand != nil {
		r.OnCommand(cmd)
	}
}
