package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/types"
)

var (
	topBarStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	statusBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	eventsBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)

	liveDot = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	deadDot = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Render("○")
)

func (m Model) View() string {
	if !m.connected {
		msg := "\n  Connecting to the bridge daemon...\n"
		if m.feedErr != nil {
			msg += fmt.Sprintf("\n  %v\n", m.feedErr)
		}
		return msg + "\n  Press q to quit.\n"
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	height := m.height
	if height == 0 {
		height = 24
	}

	topBar := topBarStyle.Render(m.topLine())

	leftWidth := width * 45 / 100
	rightWidth := width - leftWidth - 4
	paneHeight := height - 4
	if paneHeight < 3 {
		paneHeight = 3
	}

	left := statusBorder.Width(leftWidth).Height(paneHeight).Render(m.statusPane(leftWidth))
	right := eventsBorder.Width(rightWidth).Height(paneHeight).Render(m.eventsPane(rightWidth, paneHeight))
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	help := "e gestures · r reconnect · p pipeline · q quit"
	if m.opErr != "" {
		help += "   " + m.opErr
	}

	return lipgloss.JoinVertical(lipgloss.Left, topBar, panes, helpStyle.Render(help))
}

func (m Model) topLine() string {
	dot := deadDot
	if m.status.Connection == string(types.StateConnected) {
		dot = liveDot
	}
	line := fmt.Sprintf("gestured %s %s", dot, m.status.Connection)
	if m.status.PipelineStatus != "" {
		line += fmt.Sprintf("  ·  %s %.1f fps", m.status.PipelineStatus, m.status.FPS)
	}
	if m.status.GesturesEnabled {
		line += "  ·  gestures on"
	} else {
		line += "  ·  gestures off"
	}
	return line
}

func (m Model) statusPane(width int) string {
	var lines []string

	conn := m.status.Connection
	if m.status.UserStopped {
		conn += " (stopped by user)"
	}
	lines = append(lines, kv("connection", conn))

	switch {
	case m.status.Watchdog == nil:
		lines = append(lines, kv("process", "unknown"))
	case m.status.Watchdog.Running:
		lines = append(lines, kv("process", fmt.Sprintf("running (pid %d)", m.status.Watchdog.PID)))
	default:
		lines = append(lines, kv("process", "not running"))
	}

	if m.status.GesturesEnabled {
		lines = append(lines, kv("gestures", "enabled"))
	} else {
		lines = append(lines, kv("gestures", "disabled"))
	}

	st := m.status.Stats
	lines = append(lines, kv("stats", fmt.Sprintf("%d msgs · %d cmds · %d errors",
		st.MessagesReceived, st.CommandsExecuted, st.Errors)))

	if g := m.status.LastGesture; g != nil {
		last := fmt.Sprintf("%s → %s", g.GestureID, g.ActionID)
		if g.Hand != "" {
			last += " (" + g.Hand + ")"
		}
		lines = append(lines, kv("last gesture", last))
	} else {
		lines = append(lines, kv("last gesture", faintStyle.Render("none yet")))
	}

	lines = append(lines, kv("recording", m.recordingLine()))

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("bindings (%d) · custom gestures (%d)",
		len(m.config.Bindings), len(m.config.CustomGestures)))

	lines = append(lines, fmt.Sprintf("mappings (%d)", len(m.mappings)))
	for _, id := range sortedKeys(m.mappings) {
		mp := m.mappings[id]
		target := mp.Target
		if mp.Kind == types.MappingURL && mp.Title != "" {
			target = mp.Title
		}
		lines = append(lines, truncate(fmt.Sprintf("  %s → %s %s", id, mp.Kind, target), width))
	}

	return strings.Join(lines, "\n")
}

func (m Model) recordingLine() string {
	snap := m.status.Recording
	switch snap.Status {
	case recording.StateCountdown:
		if snap.Countdown > 0 {
			return fmt.Sprintf("countdown %d (%s)", snap.Countdown, snap.GestureID)
		}
		return fmt.Sprintf("countdown (%s)", snap.GestureID)
	case recording.StateCapturing:
		return fmt.Sprintf("%s %d/%d %s", snap.GestureID, snap.SamplesDone, snap.SamplesTotal,
			progressBar(snap.SamplesDone, snap.SamplesTotal, 10))
	case recording.StateComplete:
		return fmt.Sprintf("complete (%s)", snap.GestureID)
	case recording.StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

func (m Model) eventsPane(width, height int) string {
	if len(m.recent) == 0 {
		return faintStyle.Render("waiting for events...")
	}
	lines := m.recent
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		// Truncate before styling so the escape codes stay intact.
		text := truncate(l.text, width-9)
		b.WriteString(faintStyle.Render(l.at.Format("15:04:05")) + " " + text)
	}
	return b.String()
}

func kv(label, value string) string {
	return fmt.Sprintf("%-13s %s", label, value)
}

func progressBar(done, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// truncate shortens s to at most width runes. Event text is full of
// multibyte characters (arrows, the pipeline's own messages), so byte
// slicing is not safe here.
func truncate(s string, width int) string {
	if width <= 1 || len(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func sortedKeys(m map[string]types.ExtensionMapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
