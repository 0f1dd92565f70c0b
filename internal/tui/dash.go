// Package tui is the live dashboard: a terminal view of the bridge fed by
// the daemon's event feed, with a few one-key operations.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/gestured/internal/client"
	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/server"
	"github.com/lotas/gestured/internal/types"
)

// --- Messages ---

type feedConnectedMsg struct {
	stream *client.EventStream
}

type feedClosedMsg struct {
	err error
}

type feedEventMsg struct {
	ev client.Event
}

type retryTickMsg struct{}

type opDoneMsg struct {
	label string
	err   error
}

// eventLine is one row of the recent-events pane.
type eventLine struct {
	at   time.Time
	text string
}

const recentKeep = 50

// Model is the dashboard state. All of it is derived from feed frames; the
// only local state is the feed connection itself.
type Model struct {
	cli    *client.Client
	stream *client.EventStream

	connected bool // feed socket to the daemon, not the pipeline
	feedErr   error
	status    client.Status
	config    types.ConfigSnapshot
	mappings  map[string]types.ExtensionMapping
	recent    []eventLine
	opErr     string

	width  int
	height int
}

func NewModel(cli *client.Client) Model {
	return Model{
		cli:      cli,
		mappings: map[string]types.ExtensionMapping{},
	}
}

func (m Model) Init() tea.Cmd {
	return connectFeed(m.cli)
}

// --- Command helpers ---

func connectFeed(cli *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stream, err := cli.Events(ctx)
		if err != nil {
			return feedClosedMsg{err: err}
		}
		return feedConnectedMsg{stream: stream}
	}
}

func listenFeed(stream *client.EventStream) tea.Cmd {
	return func() tea.Msg {
		ev, err := stream.Next(context.Background())
		if err != nil {
			return feedClosedMsg{err: err}
		}
		return feedEventMsg{ev: ev}
	}
}

func retryFeed() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg { return retryTickMsg{} })
}

func opCmd(label string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return opDoneMsg{label: label, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit
		case "e":
			enabled := m.status.GesturesEnabled
			return m, opCmd("toggle gestures", func(ctx context.Context) error {
				return m.cli.SetGesturesEnabled(ctx, !enabled)
			})
		case "r":
			return m, opCmd("reconnect", func(ctx context.Context) error {
				return m.cli.Reconnect(ctx)
			})
		case "p":
			if m.status.UserStopped {
				return m, opCmd("start pipeline", func(ctx context.Context) error {
					_, err := m.cli.StartPipeline(ctx)
					return err
				})
			}
			return m, opCmd("stop pipeline", func(ctx context.Context) error {
				_, err := m.cli.StopPipeline(ctx)
				return err
			})
		}
		return m, nil

	case feedConnectedMsg:
		m.connected = true
		m.feedErr = nil
		m.stream = msg.stream
		return m, listenFeed(m.stream)

	case feedClosedMsg:
		m.connected = false
		m.feedErr = msg.err
		m.stream = nil
		return m, retryFeed()

	case retryTickMsg:
		return m, connectFeed(m.cli)

	case feedEventMsg:
		m.apply(msg.ev)
		if line, ok := formatEvent(msg.ev); ok {
			m.recent = append(m.recent, eventLine{at: time.Now(), text: line})
			if len(m.recent) > recentKeep {
				m.recent = m.recent[len(m.recent)-recentKeep:]
			}
		}
		return m, listenFeed(m.stream)

	case opDoneMsg:
		if msg.err != nil {
			m.opErr = fmt.Sprintf("%s: %v", msg.label, msg.err)
		} else {
			m.opErr = ""
		}
		return m, nil
	}

	return m, nil
}

// apply folds one feed frame into the derived state.
func (m *Model) apply(ev client.Event) {
	switch ev.Type {
	case server.EventSnapshot:
		json.Unmarshal(ev.Data, &m.status)
	case server.EventConnection:
		var p struct {
			State string `json:"state"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			m.status.Connection = p.State
			if p.State == string(types.StateConnected) {
				m.status.UserStopped = false
			}
		}
	case server.EventGesture:
		var g types.LastGesture
		if json.Unmarshal(ev.Data, &g) == nil {
			m.status.LastGesture = &g
		}
	case server.EventStatus:
		var p struct {
			PipelineStatus string  `json:"pipeline_status"`
			FPS            float64 `json:"fps"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			m.status.PipelineStatus = p.PipelineStatus
			m.status.FPS = p.FPS
		}
	case server.EventConfig:
		json.Unmarshal(ev.Data, &m.config)
	case server.EventMappings:
		mappings := map[string]types.ExtensionMapping{}
		if json.Unmarshal(ev.Data, &mappings) == nil {
			m.mappings = mappings
		}
	case server.EventEnabled:
		var p struct {
			Enabled bool `json:"enabled"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			m.status.GesturesEnabled = p.Enabled
		}
	case server.EventRecording:
		json.Unmarshal(ev.Data, &m.status.Recording)
	case server.EventWatchdog:
		var s types.WatchdogStatus
		if json.Unmarshal(ev.Data, &s) == nil {
			m.status.Watchdog = &s
		}
	}
}

// formatEvent renders a feed frame for the recent-events pane. Telemetry
// heartbeats and the primer snapshot are too chatty to log.
func formatEvent(ev client.Event) (string, bool) {
	switch ev.Type {
	case server.EventSnapshot, server.EventStatus:
		return "", false

	case server.EventConnection:
		var p struct {
			State string `json:"state"`
		}
		json.Unmarshal(ev.Data, &p)
		return "connection " + p.State, true

	case server.EventGesture:
		var g types.LastGesture
		json.Unmarshal(ev.Data, &g)
		line := fmt.Sprintf("gesture %s → %s", g.GestureID, g.ActionID)
		if g.Hand != "" {
			line += " (" + g.Hand + ")"
		}
		return line, true

	case server.EventCommand:
		var c struct {
			Name      string `json:"command"`
			GestureID string `json:"gesture_id"`
		}
		json.Unmarshal(ev.Data, &c)
		if c.GestureID != "" {
			return fmt.Sprintf("command %s (%s)", c.Name, c.GestureID), true
		}
		return "command " + c.Name, true

	case server.EventExecution:
		var e struct {
			Success  bool   `json:"success"`
			ActionID string `json:"action_id"`
			Error    string `json:"error"`
		}
		json.Unmarshal(ev.Data, &e)
		if e.Success {
			return "execution ok " + e.ActionID, true
		}
		if e.Error != "" {
			return fmt.Sprintf("execution failed %s: %s", e.ActionID, e.Error), true
		}
		return "execution failed " + e.ActionID, true

	case server.EventRecording:
		var snap recording.Snapshot
		json.Unmarshal(ev.Data, &snap)
		switch snap.Status {
		case recording.StateCapturing:
			return fmt.Sprintf("recording %s %d/%d", snap.GestureID, snap.SamplesDone, snap.SamplesTotal), true
		case recording.StateCountdown:
			return fmt.Sprintf("recording %s countdown", snap.GestureID), true
		default:
			return fmt.Sprintf("recording %s %s", snap.GestureID, snap.Status), true
		}

	case server.EventEnabled:
		var p struct {
			Enabled bool `json:"enabled"`
		}
		json.Unmarshal(ev.Data, &p)
		if p.Enabled {
			return "gestures enabled", true
		}
		return "gestures disabled", true

	case server.EventMappings:
		mappings := map[string]types.ExtensionMapping{}
		json.Unmarshal(ev.Data, &mappings)
		return fmt.Sprintf("mappings updated (%d)", len(mappings)), true

	case server.EventConfig:
		return "config snapshot applied", true

	case server.EventWatchdog:
		var s types.WatchdogStatus
		json.Unmarshal(ev.Data, &s)
		if s.Running {
			return fmt.Sprintf("pipeline process running (pid %d)", s.PID), true
		}
		return "pipeline process not running", true
	}
	return "event " + ev.Type, true
}
