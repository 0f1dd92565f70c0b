package watchdog

import (
	"context"
	"errors"
	"time"

	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/types"
)

// Poller periodically refreshes the watchdog's process status, and, while
// the message connection is down, pulls the config snapshot over HTTP so
// consumer surfaces keep seeing current bindings.
type Poller struct {
	Client   *Client
	Interval time.Duration // /status cadence
	Refresh  time.Duration // /config cadence while disconnected

	// Connected reports whether the live message connection is up; config
	// fallback polling only runs while it is not.
	Connected func() bool
	// OnStatus receives every /status answer. ok is false when the
	// watchdog was unreachable.
	OnStatus func(st types.WatchdogStatus, ok bool)
	// OnConfig receives raw fallback config snapshots.
	OnConfig func(raw []byte)

	down bool
}

// Run polls until ctx is cancelled. The first status poll happens
// immediately so startup state is never a full interval stale.
func (p *Poller) Run(ctx context.Context) {
	statusTick := time.NewTicker(p.Interval)
	defer statusTick.Stop()
	refreshTick := time.NewTicker(p.Refresh)
	defer refreshTick.Stop()

	p.pollStatus(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTick.C:
			p.pollStatus(ctx)
		case <-refreshTick.C:
			if !p.Connected() {
				p.refreshConfig(ctx)
			}
		}
	}
}

func (p *Poller) pollStatus(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	st, err := p.Client.Status(callCtx)
	if err != nil {
		// Log the transition, not every failed poll.
		if !p.down {
			p.down = true
			applog.Error("watchdog.down", err)
		}
		if errors.Is(err, ErrNotRunning) && p.OnStatus != nil {
			p.OnStatus(types.WatchdogStatus{Running: false}, false)
		}
		return
	}
	if p.down {
		p.down = false
		applog.Info("watchdog.up", "running", st.Running, "pid", st.PID)
	}
	if p.OnStatus != nil {
		p.OnStatus(st, true)
	}
}

func (p *Poller) refreshConfig(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	raw, err := p.Client.Config(callCtx)
	if err != nil {
		// A 404 just means no config has been written yet.
		var re *RequestError
		if !errors.As(err, &re) && !p.down {
			applog.Error("watchdog.config", err)
		}
		return
	}
	applog.Info("watchdog.config", "bytes", len(raw))
	if p.OnConfig != nil {
		p.OnConfig(raw)
	}
}
