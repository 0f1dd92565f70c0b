package watchdog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lotas/gestured/internal/types"
)

func TestPollerStatusAndFallbackConfig(t *testing.T) {
	payload := `{"bindings":{"FIST":"tab_close"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.Write([]byte(`{"running":true,"pid":7}`))
		case "/config":
			w.Write([]byte(payload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	statusCh := make(chan types.WatchdogStatus, 1)
	configCh := make(chan []byte, 1)
	p := &Poller{
		Client:    NewClient(srv.URL),
		Interval:  10 * time.Millisecond,
		Refresh:   10 * time.Millisecond,
		Connected: func() bool { return false },
		OnStatus: func(st types.WatchdogStatus, ok bool) {
			if !ok {
				t.Error("reachable watchdog reported not ok")
			}
			select {
			case statusCh <- st:
			default:
			}
		},
		OnConfig: func(raw []byte) {
			select {
			case configCh <- raw:
			default:
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case st := <-statusCh:
		if !st.Running || st.PID != 7 {
			t.Errorf("status = %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status callback")
	}

	select {
	case raw := <-configCh:
		if string(raw) != payload {
			t.Errorf("config = %s, want %s", raw, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no config callback while disconnected")
	}
}

func TestPollerSkipsConfigWhileConnected(t *testing.T) {
	var configHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/config" {
			configHits.Add(1)
		}
		w.Write([]byte(`{"running":true}`))
	}))
	defer srv.Close()

	p := &Poller{
		Client:    NewClient(srv.URL),
		Interval:  5 * time.Millisecond,
		Refresh:   5 * time.Millisecond,
		Connected: func() bool { return true },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if n := configHits.Load(); n != 0 {
		t.Errorf("config polled %d times while the connection was up", n)
	}
}

func TestPollerUnreachableReportsNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	got := make(chan types.WatchdogStatus, 1)
	p := &Poller{
		Client:    NewClient(srv.URL),
		Interval:  5 * time.Millisecond,
		Refresh:   time.Hour,
		Connected: func() bool { return true },
		OnStatus: func(st types.WatchdogStatus, ok bool) {
			if ok {
				t.Error("unreachable watchdog reported ok")
			}
			select {
			case got <- st:
			default:
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case st := <-got:
		if st.Running {
			t.Error("unreachable watchdog reported running")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status callback")
	}
}
