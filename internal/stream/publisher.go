// Package stream pushes synthesized threat events to WebSocket clients.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"threatdash/internal/metrics"
	"threatdash/internal/synth"
	"threatdash/internal/threat"
)

const (
	writeWait      = 10 * time.Second
	maxClientFrame = 512
)

// Cadence between events for live and demo streams.
const (
	LiveMinInterval = 2 * time.Second
	LiveMaxInterval = 5 * time.Second
	DemoMinInterval = 1 * time.Second
	DemoMaxInterval = 3 * time.Second
)

// Populator is a feed that can be filled on demand before streaming.
type Populator interface {
	Name() string
	EnsurePopulated(ctx context.Context) error
}

// Config controls a Publisher. Zero intervals select the live or demo
// cadence depending on Demo.
type Config struct {
	Demo           bool
	MinInterval    time.Duration
	MaxInterval    time.Duration
	AllowedOrigins []string
}

// Publisher runs one push loop per connected client.
type Publisher struct {
	synth    *synth.Synthesizer
	feeds    []Populator
	cfg      Config
	rng      *synth.Rand
	upgrader websocket.Upgrader
	sources  *sourceTracker

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Publisher drawing events from s. feeds are lazily populated
// when a client connects while their cache is empty.
func New(s *synth.Synthesizer, cfg Config, feeds ...Populator) *Publisher {
	if cfg.MinInterval <= 0 || cfg.MaxInterval < cfg.MinInterval {
		cfg.MinInterval, cfg.MaxInterval = LiveMinInterval, LiveMaxInterval
		if cfg.Demo {
			cfg.MinInterval, cfg.MaxInterval = DemoMinInterval, DemoMaxInterval
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		synth:   s,
		feeds:   feeds,
		cfg:     cfg,
		rng:     synth.NewRand(nil),
		sources: newSourceTracker(),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return OriginAllowed(cfg.AllowedOrigins, r.Header.Get("Origin")) },
	}
	return p
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the publisher is closed.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	go readPump(conn, cancel)

	slog.Info("stream client connected", "remote", r.RemoteAddr)
	err = p.stream(ctx, conn)
	switch {
	case err != nil:
		slog.Info("stream connection closed", "remote", r.RemoteAddr, "err", err)
	case p.ctx.Err() != nil:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		slog.Debug("stream closed for shutdown", "remote", r.RemoteAddr)
	default:
		slog.Info("stream client disconnected", "remote", r.RemoteAddr)
	}
}

// Close ends every stream and waits for the loops to return.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// stream returns nil when ctx ends and the write error otherwise.
func (p *Publisher) stream(ctx context.Context, conn *websocket.Conn) error {
	if !p.cfg.Demo {
		p.populate(ctx)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		ev := p.next()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.record(ev)

		timer := time.NewTimer(p.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (p *Publisher) populate(ctx context.Context) {
	for _, f := range p.feeds {
		err := f.EnsurePopulated(ctx)
		if err != nil && !errors.Is(err, threat.ErrNoCredential) && ctx.Err() == nil {
			slog.Warn("lazy feed fetch failed", "source", f.Name(), "err", err)
		}
	}
}

func (p *Publisher) next() synth.Event {
	if p.cfg.Demo {
		return p.synth.Fabricate()
	}
	return p.synth.Synthesize()
}

func (p *Publisher) record(ev synth.Event) {
	metrics.EventsEmitted.WithLabelValues(string(ev.Class)).Inc()
	metrics.DistinctSources.Set(float64(p.sources.observe(ev.SourceAddress)))
}

func (p *Publisher) interval() time.Duration {
	lo, hi := float64(p.cfg.MinInterval), float64(p.cfg.MaxInterval)
	return time.Duration(p.rng.Uniform(lo, hi))
}

// readPump drains client frames so close and ping frames are processed, and
// cancels the stream once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("stream read error", "err", err)
			}
			return
		}
	}
}

// OriginAllowed reports whether a browser Origin may connect. Requests
// without an Origin header come from non-browser clients and are allowed.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
