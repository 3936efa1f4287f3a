package device

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-keyfall/debug"
)

var (
	ErrNoInput  = errors.New("device: no MIDI input port")
	ErrNoOutput = errors.New("device: no MIDI output port")
	ErrTimeout  = errors.New("device: MIDI port scan timed out")
)

// DefaultTimeout bounds a port scan. CoreMIDI can hang; the fix is
// `sudo killall coreaudiod midiserver`.
const DefaultTimeout = 3 * time.Second

// Ports lists the port names the driver reports
type Ports struct {
	Inputs  []string
	Outputs []string
}

type scan struct {
	ins  []drivers.In
	outs []drivers.Out
}

// scanPorts queries the driver without letting a hung driver block the caller
func scanPorts(timeout time.Duration) (scan, error) {
	ch := make(chan scan, 1)
	go func() {
		ch <- scan{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r, nil
	case <-time.After(timeout):
		return scan{}, ErrTimeout
	}
}

// ListPorts returns the available input and output port names
func ListPorts(timeout time.Duration) (Ports, error) {
	r, err := scanPorts(timeout)
	if err != nil {
		return Ports{}, err
	}
	var p Ports
	for _, in := range r.ins {
		p.Inputs = append(p.Inputs, in.String())
	}
	for _, out := range r.outs {
		p.Outputs = append(p.Outputs, out.String())
	}
	return p, nil
}

// match picks the port for a configured name: an exact match wins, then a
// case-insensitive substring. An empty name selects the first port.
func match(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	for i, name := range names {
		if name == want {
			return i
		}
	}
	lower := strings.ToLower(want)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), lower) {
			return i
		}
	}
	return -1
}

func names[P interface{ String() string }](ports []P) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.String()
	}
	return out
}

// PortEvent reports a port appearing or going away
type PortEvent struct {
	Name      string
	Input     bool
	Connected bool
}

// diffPorts lists the changes from old to cur
func diffPorts(old, cur Ports) []PortEvent {
	var events []PortEvent
	diff := func(a, b []string, input, connected bool) {
		seen := make(map[string]bool, len(a))
		for _, n := range a {
			seen[n] = true
		}
		for _, n := range b {
			if !seen[n] {
				events = append(events, PortEvent{Name: n, Input: input, Connected: connected})
			}
		}
	}
	diff(old.Inputs, cur.Inputs, true, true)
	diff(old.Outputs, cur.Outputs, false, true)
	diff(cur.Inputs, old.Inputs, true, false)
	diff(cur.Outputs, old.Outputs, false, false)
	return events
}

// Watcher polls the driver and reports hot-plugged ports
type Watcher struct {
	mu       sync.RWMutex
	ports    Ports
	events   chan PortEvent
	pollRate time.Duration
	list     func(time.Duration) (Ports, error)
}

func NewWatcher() *Watcher {
	return &Watcher{
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list:     ListPorts,
	}
}

// Events returns a channel of port connect/disconnect events
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Ports returns the ports seen by the last scan
func (w *Watcher) Ports() Ports {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ports
}

// Run starts the polling loop (blocking - run in goroutine). The events
// channel is closed when ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	cur, err := w.list(DefaultTimeout)
	if err != nil {
		// hung driver, skip this scan
		debug.LogEvery(10, "device", "port scan: %v", err)
		return
	}

	w.mu.Lock()
	events := diffPorts(w.ports, cur)
	w.ports = cur
	w.mu.Unlock()

	for _, ev := range events {
		debug.Log("device", "port %q input=%v connected=%v", ev.Name, ev.Input, ev.Connected)
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
