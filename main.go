package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/cache"
	"github.com/lotas/gestured/internal/client"
	"github.com/lotas/gestured/internal/dispatch"
	"github.com/lotas/gestured/internal/pipeline"
	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/server"
	"github.com/lotas/gestured/internal/storage"
	"github.com/lotas/gestured/internal/tui"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/watchdog"
	"github.com/lotas/gestured/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "run":
		runDaemon(os.Args[2:])
	case "dash":
		runDash()
	case "status":
		runStatus(os.Args[2:])
	case "enable":
		runEnabled(true)
	case "disable":
		runEnabled(false)
	case "reconnect":
		runReconnect()
	case "pipeline":
		runPipeline(os.Args[2:])
	case "bindings":
		runBindings(os.Args[2:])
	case "mappings":
		runMappings(os.Args[2:])
	case "gestures":
		runGestures(os.Args[2:])
	case "record":
		runRecord(os.Args[2:])
	case "settings":
		runSettings(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "archive":
		runArchive(os.Args[2:])
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Run \"gestured help\" for usage.\n", os.Args[1])
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`gestured — connection and command bridge for the gesture pipeline

Usage:
  gestured run                                 Run the bridge daemon
    --addr <host:port>     Consumer API listen address (default: 127.0.0.1:8977)
    --pipeline-url <url>   Pipeline WebSocket URL (default: ws://127.0.0.1:8765)
    --watchdog-url <url>   Watchdog base URL (default: http://127.0.0.1:8766)
    --db <path>            State database path (default: ~/.local/share/gestured/gestured.db)
    --log-dir <path>       Log directory (default: ~/.local/share/gestured/logs)

  gestured dash                                Live dashboard (TUI)
  gestured status [--json]                     Bridge, pipeline and recording status

  gestured enable                              Resume gesture command dispatch
  gestured disable                             Pause gesture command dispatch
  gestured reconnect                           Clear a user stop and redial the pipeline

  gestured pipeline start                      Start the pipeline via the watchdog
  gestured pipeline stop                       Stop the pipeline and suppress reconnects
  gestured pipeline status                     Show the pipeline process state

  gestured bindings                            List gesture bindings
  gestured bindings set <gesture> <action>     Bind a gesture to an action
  gestured bindings reset                      Restore the default bindings

  gestured mappings                            List extension mappings
  gestured mappings set <gesture> url <target> [--new-tab]
  gestured mappings set <gesture> shortcut <combo>
  gestured mappings rm <gesture>               Remove a mapping and unbind the gesture

  gestured gestures                            List custom gestures
  gestured gestures import <id> <file>         Upload recorded gesture data from a JSON file
  gestured gestures rm <id>                    Delete a custom gesture

  gestured record start --gesture <id> --label <text>
    --type <static|dynamic>  Gesture type (default: static)
    --hand <Left|Right|Both> Hand hint
    --follow                 Stream progress until the session ends
  gestured record cancel                       Cancel the active recording session

  gestured settings set <key> <value>          Update one pipeline setting
  gestured config [--json]                     Show the cached config snapshot
  gestured archive [list] [--limit <n>]        List archived config snapshots
  gestured archive show <id>                   Print one archived snapshot

Environment:
  GESTURED_ADDR          Bridge API address as host:port (default: 127.0.0.1:8977)
  GESTURED_PIPELINE_URL  Pipeline WebSocket URL (overridden by --pipeline-url)
  GESTURED_WATCHDOG_URL  Watchdog base URL (overridden by --watchdog-url)
  GESTURED_DB            State database path (overridden by --db)
  GESTURED_LOG_DIR       Log directory (overridden by --log-dir)
`)
}

// runDaemon wires the bridge together: one pipeline connection, the shared
// state cache, the recording session, the watchdog poller, and the consumer
// API with its event feed.
func runDaemon(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	addr := fs.String("addr", "", "Consumer API listen address")
	pipelineURL := fs.String("pipeline-url", "", "Pipeline WebSocket URL")
	watchdogURL := fs.String("watchdog-url", "", "Watchdog base URL")
	dbPath := fs.String("db", "", "State database path")
	logDir := fs.String("log-dir", "", "Log directory")
	fs.Parse(args)

	dir := *logDir
	if dir == "" {
		dir = applog.DefaultDir()
	}
	if err := applog.Init(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer applog.Close()

	db, err := openDB(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	c, err := cache.Open(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cached state: %v\n", err)
		os.Exit(1)
	}

	stats := &types.Stats{}

	cfg := pipeline.DefaultConfig()
	if u := flagOrEnv(*pipelineURL, "GESTURED_PIPELINE_URL"); u != "" {
		cfg.URL = u
	}
	mgr := pipeline.New(cfg, stats)

	wd := watchdog.NewClient(flagOrEnv(*watchdogURL, "GESTURED_WATCHDOG_URL"))

	feed := server.NewFeed()
	c.SetOnChange(publishCacheChanges(feed, c))

	session := recording.NewSession(mgr.Send, func(snap recording.Snapshot) {
		feed.Publish(server.EventRecording, snap)
	})

	router := &pipeline.Router{
		Cache:   c,
		Session: session,
		Stats:   stats,
		OnConfig: func(cs types.ConfigSnapshot) {
			raw, err := json.Marshal(cs)
			if err != nil {
				applog.Error("daemon.archive", err, "source", "connection")
				return
			}
			archiveConfig(db, "connection", raw)
		},
		OnCommand: func(cmd dispatch.Command) {
			feed.Publish(server.EventCommand, cmd)
		},
		OnExecution: func(ex wire.Execution) {
			feed.Publish(server.EventExecution, ex)
		},
	}
	mgr.Handle = router.Handle
	mgr.OnState = func(s types.ConnState) {
		feed.Publish(server.EventConnection, map[string]types.ConnState{"state": s})
	}

	srv := server.New(flagOrEnv(*addr, "GESTURED_ADDR"), server.Deps{
		Pipeline: mgr,
		Cache:    c,
		Session:  session,
		Stats:    stats,
		Watchdog: wd,
		DB:       db,
		Feed:     feed,
	})

	// The poller keeps the cached process status fresh and, while the
	// WebSocket is down, pulls config over the watchdog's HTTP fallback so
	// consumers still see binding and gesture changes.
	var lastWD *types.WatchdogStatus
	poller := &watchdog.Poller{
		Client:    wd,
		Interval:  10 * time.Second,
		Refresh:   15 * time.Second,
		Connected: func() bool { return mgr.State() == types.StateConnected },
		OnStatus: func(st types.WatchdogStatus, _ bool) {
			// Only write on change; the cache hook turns every write into
			// a feed frame.
			if lastWD == nil || *lastWD != st {
				c.SetHTTPStatus(st)
				lastWD = &st
			}
		},
		OnConfig: func(raw []byte) {
			var cs types.ConfigSnapshot
			if err := json.Unmarshal(raw, &cs); err != nil {
				applog.Error("daemon.watchdog_config", err)
				return
			}
			c.ApplyConfigSnapshot(cs)
			archiveConfig(db, "watchdog", raw)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mgr.Run(ctx)
	go poller.Run(ctx)

	applog.Info("daemon.start", "pipeline", cfg.URL)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applog.Info("daemon.stop")
}

// publishCacheChanges translates persisted cache keys into feed frames.
// Recording keys are skipped here: the session publishes its own snapshots,
// which carry more state than the raw pipeline event. Config keys collapse
// into a single CONFIG frame per mutation.
func publishCacheChanges(feed *server.Feed, c *cache.Cache) func([]string) {
	return func(keys []string) {
		var config, status bool
		for _, key := range keys {
			switch key {
			case cache.KeyLastGesture:
				if g := c.LastGesture(); g != nil {
					feed.Publish(server.EventGesture, g)
				}
			case cache.KeyPipelineStatus, cache.KeyFPS:
				status = true
			case cache.KeyGesturesEnabled:
				feed.Publish(server.EventEnabled, map[string]bool{"enabled": c.GesturesEnabled()})
			case cache.KeyHTTPStatus:
				if s := c.HTTPStatus(); s != nil {
					feed.Publish(server.EventWatchdog, s)
				}
			case cache.KeyMappings:
				feed.Publish(server.EventMappings, c.Mappings())
			case cache.KeyBindings, cache.KeyActions, cache.KeyGestures, cache.KeyCustom, cache.KeySettings:
				config = true
			}
		}
		if status {
			st, fps := c.Telemetry()
			feed.Publish(server.EventStatus, map[string]any{"pipeline_status": st, "fps": fps})
		}
		if config {
			feed.Publish(server.EventConfig, c.Config())
		}
	}
}

func archiveConfig(db *sql.DB, source string, raw []byte) {
	if _, err := storage.ArchiveConfig(db, source, raw); err != nil {
		applog.Error("daemon.archive", err, "source", source)
	}
}

func runDash() {
	p := tea.NewProgram(tui.NewModel(newClient()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Print the raw status as JSON")
	fs.Parse(args)

	ctx, cancel := cliContext()
	defer cancel()

	st, err := newClient().Status(ctx)
	if err != nil {
		fatal(err)
	}

	if *jsonOut {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	conn := st.Connection
	if st.UserStopped {
		conn += " (stopped by user)"
	}
	fmt.Printf("%-13s %s\n", "connection:", conn)
	fmt.Printf("%-13s %s\n", "pipeline:", st.PipelineURL)
	fmt.Printf("%-13s %s\n", "process:", processLine(st.Watchdog))
	if st.PipelineStatus != "" {
		fmt.Printf("%-13s %s (%.1f fps)\n", "telemetry:", st.PipelineStatus, st.FPS)
	}
	fmt.Printf("%-13s %s\n", "gestures:", onOff(st.GesturesEnabled))
	fmt.Printf("%-13s %s\n", "recording:", recordingLine(st.Recording))
	if g := st.LastGesture; g != nil {
		line := g.GestureID
		if g.ActionID != "" {
			line += " -> " + g.ActionID
		}
		if g.Timestamp > 0 {
			age := time.Since(time.Unix(int64(g.Timestamp), 0)).Truncate(time.Second)
			line += fmt.Sprintf(" (%s ago)", age)
		}
		fmt.Printf("%-13s %s\n", "last gesture:", line)
	}
	fmt.Printf("%-13s %d messages, %d commands, %d errors\n", "stats:",
		st.Stats.MessagesReceived, st.Stats.CommandsExecuted, st.Stats.Errors)
	fmt.Printf("%-13s %d\n", "subscribers:", st.Subscribers)
}

func processLine(wd *types.WatchdogStatus) string {
	switch {
	case wd == nil:
		return "unknown"
	case wd.Running && wd.PID > 0:
		return fmt.Sprintf("running (pid %d)", wd.PID)
	case wd.Running:
		return "running"
	default:
		return "not running"
	}
}

func recordingLine(snap recording.Snapshot) string {
	switch snap.Status {
	case recording.StateCountdown:
		return fmt.Sprintf("countdown %d (%s)", snap.Countdown, snap.Label)
	case recording.StateCapturing:
		return fmt.Sprintf("capturing %s (%d/%d)", snap.Label, snap.SamplesDone, snap.SamplesTotal)
	default:
		return string(snap.Status)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func runEnabled(enabled bool) {
	ctx, cancel := cliContext()
	defer cancel()

	if err := newClient().SetGesturesEnabled(ctx, enabled); err != nil {
		fatal(err)
	}
	fmt.Printf("Gesture dispatch %s.\n", onOff(enabled))
}

func runReconnect() {
	ctx, cancel := cliContext()
	defer cancel()

	if err := newClient().Reconnect(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("Reconnect requested.")
}

func runPipeline(args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: gestured pipeline start|stop|status"))
	}

	ctx, cancel := cliContext()
	defer cancel()
	cli := newClient()

	switch args[0] {
	case "start":
		res, err := cli.StartPipeline(ctx)
		if err != nil {
			fatal(err)
		}
		if res.PID > 0 {
			fmt.Printf("Pipeline %s (pid %d).\n", res.Status, res.PID)
		} else {
			fmt.Printf("Pipeline %s.\n", res.Status)
		}
	case "stop":
		res, err := cli.StopPipeline(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Pipeline %s.\n", res.Status)
	case "status":
		st, err := cli.Status(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%-13s %s\n", "process:", processLine(st.Watchdog))
		fmt.Printf("%-13s %s\n", "connection:", st.Connection)
		if st.PipelineStatus != "" {
			fmt.Printf("%-13s %s (%.1f fps)\n", "telemetry:", st.PipelineStatus, st.FPS)
		}
	default:
		fatal(fmt.Errorf("unknown pipeline command %q", args[0]))
	}
}

func runBindings(args []string) {
	if len(args) == 0 || args[0] == "list" {
		ctx, cancel := cliContext()
		defer cancel()

		bindings, err := newClient().Bindings(ctx)
		if err != nil {
			fatal(err)
		}
		if len(bindings) == 0 {
			fmt.Println("No bindings. The pipeline has not pushed a config snapshot yet.")
			return
		}
		for _, gesture := range sortedKeys(bindings) {
			fmt.Printf("%-20s %s\n", gesture, bindings[gesture])
		}
		return
	}

	switch args[0] {
	case "set":
		rest := args[1:]
		if len(rest) != 2 {
			fatal(fmt.Errorf("usage: gestured bindings set <gesture> <action>"))
		}
		ctx, cancel := cliContext()
		defer cancel()
		if err := newClient().UpdateBinding(ctx, rest[0], rest[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("Bound %s to %s.\n", rest[0], rest[1])
	case "reset":
		ctx, cancel := cliContext()
		defer cancel()
		bindings, err := newClient().ResetBindings(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Reset %d bindings to defaults.\n", len(bindings))
	default:
		fatal(fmt.Errorf("unknown bindings command %q", args[0]))
	}
}

func runMappings(args []string) {
	if len(args) == 0 || args[0] == "list" {
		runMappingsList()
		return
	}

	switch args[0] {
	case "set":
		runMappingsSet(args[1:])
	case "rm", "delete":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: gestured mappings rm <gesture>"))
		}
		ctx, cancel := cliContext()
		defer cancel()
		deleted, err := newClient().DeleteMapping(ctx, args[1])
		if err != nil {
			fatal(err)
		}
		if deleted {
			fmt.Printf("Mapping for %s removed.\n", args[1])
		} else {
			fmt.Printf("No mapping for %s.\n", args[1])
		}
	default:
		fatal(fmt.Errorf("unknown mappings command %q", args[0]))
	}
}

func runMappingsList() {
	ctx, cancel := cliContext()
	defer cancel()

	mappings, err := newClient().Mappings(ctx)
	if err != nil {
		fatal(err)
	}
	if len(mappings) == 0 {
		fmt.Println("No extension mappings.")
		return
	}
	for _, gesture := range sortedKeys(mappings) {
		m := mappings[gesture]
		target := m.Target
		if m.Title != "" {
			target += fmt.Sprintf("  (%s)", m.Title)
		}
		if m.OpenInNewTab {
			target += "  [new tab]"
		}
		fmt.Printf("%-20s %-9s %s\n", gesture, m.Kind, target)
	}
}

func runMappingsSet(args []string) {
	fs := flag.NewFlagSet("mappings set", flag.ExitOnError)
	newTab := fs.Bool("new-tab", false, "Open url mappings in a new tab")
	fs.Parse(reorderArgs(args))

	rest := fs.Args()
	if len(rest) != 3 {
		fatal(fmt.Errorf("usage: gestured mappings set <gesture> url|shortcut <target> [--new-tab]"))
	}

	ctx, cancel := cliContext()
	defer cancel()

	m, err := newClient().SaveMapping(ctx, rest[0], rest[1], rest[2], *newTab)
	if err != nil {
		fatal(err)
	}
	// The daemon normalizes the target (scheme, combo casing); echo its form.
	fmt.Printf("Mapped %s to %s %s.\n", rest[0], m.Kind, m.Target)
}

func runGestures(args []string) {
	if len(args) == 0 || args[0] == "list" {
		ctx, cancel := cliContext()
		defer cancel()

		cfg, err := newClient().Config(ctx)
		if err != nil {
			fatal(err)
		}
		if len(cfg.CustomGestures) == 0 {
			fmt.Println("No custom gestures.")
			return
		}
		for _, id := range sortedKeys(cfg.CustomGestures) {
			g := cfg.CustomGestures[id]
			detail := g.Label
			if g.Hand != "" {
				detail += fmt.Sprintf("  [%s]", g.Hand)
			}
			if g.SampleCount > 0 {
				detail += fmt.Sprintf("  (%d samples)", g.SampleCount)
			}
			fmt.Printf("%-24s %-8s %s\n", id, g.Kind, detail)
		}
		return
	}

	switch args[0] {
	case "import":
		if len(args) < 3 {
			fatal(fmt.Errorf("usage: gestured gestures import <id> <file>"))
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			fatal(err)
		}
		if !json.Valid(data) {
			fatal(fmt.Errorf("%s is not valid JSON", args[2]))
		}
		ctx, cancel := cliContext()
		defer cancel()
		g, err := newClient().SaveCustomGesture(ctx, args[1], data)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Custom gesture %s imported (%q, %d samples).\n", args[1], g.Label, g.SampleCount)
	case "rm", "delete":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: gestured gestures rm <id>"))
		}
		ctx, cancel := cliContext()
		defer cancel()
		if err := newClient().DeleteCustomGesture(ctx, args[1]); err != nil {
			fatal(err)
		}
		fmt.Printf("Custom gesture %s deleted.\n", args[1])
	default:
		fatal(fmt.Errorf("unknown gestures command %q", args[0]))
	}
}

func runRecord(args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: gestured record start|cancel"))
	}

	switch args[0] {
	case "start":
		runRecordStart(args[1:])
	case "cancel":
		ctx, cancel := cliContext()
		defer cancel()
		snap, err := newClient().CancelRecording(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Recording %s.\n", snap.Status)
	default:
		fatal(fmt.Errorf("unknown record command %q", args[0]))
	}
}

func runRecordStart(args []string) {
	fs := flag.NewFlagSet("record start", flag.ExitOnError)
	gesture := fs.String("gesture", "", "Gesture id to record (required)")
	label := fs.String("label", "", "Human-readable label (required)")
	kind := fs.String("type", "static", "Gesture type: static or dynamic")
	hand := fs.String("hand", "", "Hand hint: Left, Right or Both")
	follow := fs.Bool("follow", false, "Stream progress until the session ends")
	fs.Parse(args)

	cli := newClient()

	ctx, cancel := cliContext()
	snap, err := cli.StartRecording(ctx, *gesture, *label, *kind, *hand)
	cancel()
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Recording %q started (countdown %d).\n", snap.Label, snap.Countdown)

	if *follow {
		followRecording(cli)
	}
}

// followRecording tails the daemon's event feed until the recording session
// reaches a terminal state.
func followRecording(cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stream, err := cli.Events(ctx)
	if err != nil {
		fatal(err)
	}
	defer stream.Close()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			fatal(err)
		}
		if ev.Type != server.EventRecording {
			continue
		}
		var snap recording.Snapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			continue
		}
		switch snap.Status {
		case recording.StateCountdown:
			fmt.Printf("  countdown %d...\n", snap.Countdown)
		case recording.StateCapturing:
			fmt.Printf("  sample %d/%d\n", snap.SamplesDone, snap.SamplesTotal)
		case recording.StateComplete:
			fmt.Printf("Recording complete: %d samples captured.\n", snap.SamplesDone)
			return
		case recording.StateCancelled:
			msg := snap.Message
			if msg == "" {
				msg = "cancelled"
			}
			fmt.Printf("Recording ended: %s\n", msg)
			return
		}
	}
}

func runSettings(args []string) {
	if len(args) != 3 || args[0] != "set" {
		fatal(fmt.Errorf("usage: gestured settings set <key> <value>"))
	}

	// Values that parse as JSON go through as-is; anything else is sent as
	// a string, so both "0.8" and "high" work.
	raw := json.RawMessage(args[2])
	if !json.Valid(raw) {
		raw, _ = json.Marshal(args[2])
	}

	ctx, cancel := cliContext()
	defer cancel()
	if err := newClient().UpdateSetting(ctx, args[1], raw); err != nil {
		fatal(err)
	}
	fmt.Printf("Setting %s updated.\n", args[1])
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Print the full snapshot as JSON")
	fs.Parse(args)

	ctx, cancel := cliContext()
	defer cancel()

	cfg, err := newClient().Config(ctx)
	if err != nil {
		fatal(err)
	}

	if *jsonOut {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("%-16s %d\n", "bindings:", len(cfg.Bindings))
	fmt.Printf("%-16s %d\n", "actions:", len(cfg.Actions))
	fmt.Printf("%-16s %d\n", "gestures:", len(cfg.Gestures))
	fmt.Printf("%-16s %d\n", "custom gestures:", len(cfg.CustomGestures))
	if len(cfg.Settings) > 0 {
		fmt.Println("settings:")
		for _, key := range sortedKeys(cfg.Settings) {
			fmt.Printf("  %s: %s\n", key, string(cfg.Settings[key]))
		}
	}
}

func runArchive(args []string) {
	if len(args) == 0 || args[0] == "list" || strings.HasPrefix(args[0], "-") {
		rest := args
		if len(rest) > 0 && rest[0] == "list" {
			rest = rest[1:]
		}
		fs := flag.NewFlagSet("archive list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "Maximum entries to list")
		fs.Parse(rest)

		ctx, cancel := cliContext()
		defer cancel()

		entries, err := newClient().Archives(ctx, *limit)
		if err != nil {
			fatal(err)
		}
		if len(entries) == 0 {
			fmt.Println("No archived config snapshots.")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s  %s  %6d bytes\n",
				e.ID, e.Source, e.TakenAt.Local().Format("2006-01-02 15:04:05"), e.Size)
		}
		return
	}

	switch args[0] {
	case "show":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: gestured archive show <id>"))
		}
		ctx, cancel := cliContext()
		defer cancel()
		raw, err := newClient().Archive(ctx, args[1])
		if err != nil {
			fatal(err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			os.Stdout.Write(raw)
			fmt.Println()
			return
		}
		fmt.Println(buf.String())
	default:
		fatal(fmt.Errorf("unknown archive command %q", args[0]))
	}
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		path = os.Getenv("GESTURED_DB")
	}
	if path == "" {
		p, err := storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return storage.OpenDB(path)
}

func newClient() *client.Client {
	if v := os.Getenv("GESTURED_ADDR"); v != "" {
		return client.New("http://" + v)
	}
	return client.New(client.DefaultBaseURL)
}

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// flagOrEnv returns the flag value if set, otherwise the environment
// variable.
func flagOrEnv(flagValue, env string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(env)
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
