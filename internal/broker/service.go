package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/dockctl/internal/backend"
	"github.com/danmuck/dockctl/internal/observability"
	"github.com/rs/zerolog/log"
)

// forceCloseGrace bounds the wait for handlers after connections are
// force-closed.
const forceCloseGrace = time.Second

// Accept failures back off from acceptRetryMin, doubling up to acceptRetryMax.
const (
	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)

var ErrServiceClosed = errors.New("broker: service closed")

// Service accepts client connections and runs one session goroutine per
// connection against one shared Backend.
type Service struct {
	cfg        ServiceConfig
	backend    backend.Backend
	dispatcher *Dispatcher

	backendCtx    context.Context
	cancelBackend context.CancelFunc

	mu       sync.Mutex
	ln       net.Listener
	sessions map[*clientSession]net.Conn
	wg       sync.WaitGroup

	seq          atomic.Uint64
	active       atomic.Int64
	running      atomic.Bool
	closing      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

func NewService(cfg ServiceConfig, b backend.Backend) *Service {
	defaults := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaults.DrainTimeout
	}
	if cfg.Session.Limits.MaxLineBytes <= 0 {
		cfg.Session.Limits = defaults.Session.Limits
	}
	backendCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:           cfg,
		backend:       b,
		dispatcher:    NewDispatcher(b),
		backendCtx:    backendCtx,
		cancelBackend: cancel,
		sessions:      make(map[*clientSession]net.Conn),
		done:          make(chan struct{}),
	}
}

// Listen binds the configured TCP address.
func (s *Service) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("broker: listen %s: %w", s.cfg.ListenAddr, err)
	}
	return ln, nil
}

// Run listens, serves until SIGINT/SIGTERM or ctx ends, and shuts down.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := s.Listen()
	if err != nil {
		_ = s.Shutdown(context.Background())
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("broker.Service.Run listening")

	var status *http.Server
	if addr := strings.TrimSpace(s.cfg.StatusAddr); addr != "" {
		status, err = s.startStatus(addr)
		if err != nil {
			_ = ln.Close()
			_ = s.Shutdown(context.Background())
			return err
		}
	}

	serveErr := s.Serve(ctx, ln)
	shutdownErr := s.Shutdown(context.Background())
	if status != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
		_ = status.Shutdown(stopCtx)
		cancel()
	}
	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// Serve accepts on ln until Shutdown or ctx ends. It never blocks on a
// session.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServiceClosed
	}
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	go func() {
		select {
		case <-ctx.Done():
			log.Info().Msg("broker.Service.Serve context done")
			_ = s.Shutdown(context.Background())
		case <-s.done:
		}
	}()

	var retry time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			retry = nextAcceptRetry(retry)
			log.Warn().Err(err).Dur("retry_in", retry).Msg("broker.Service.Serve accept failed")
			wait := time.NewTimer(retry)
			select {
			case <-wait.C:
			case <-s.done:
				wait.Stop()
				return nil
			}
			continue
		}
		retry = 0
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
	}
}

func nextAcceptRetry(prev time.Duration) time.Duration {
	if prev == 0 {
		return acceptRetryMin
	}
	next := prev * 2
	if next > acceptRetryMax {
		return acceptRetryMax
	}
	return next
}

// track registers conn and starts its session unless shutdown has begun.
func (s *Service) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	cs := newClientSession(s.seq.Add(1), conn, s.cfg.Session)
	s.sessions[cs] = conn
	s.wg.Add(1)
	go s.handleConn(cs, conn)
	return true
}

func (s *Service) untrack(cs *clientSession) {
	s.mu.Lock()
	delete(s.sessions, cs)
	s.mu.Unlock()
}

func (s *Service) handleConn(cs *clientSession, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer s.untrack(cs)

	active := s.active.Add(1)
	observability.RecordSessionOpened()
	cs.logger.Info().Int64("active_clients", active).Msg("broker.session client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.RecordSessionClosed()
		cs.logger.Info().
			Int64("active_clients", remaining).
			Uint64("commands", cs.commands.Load()).
			Msg("broker.session client disconnected")
	}()

	s.serveSession(cs)
}

// Shutdown stops accepting, lets in-flight commands finish, waits up to
// DrainTimeout (or ctx), then force-closes what remains and closes the
// Backend. Only the first call does work; later calls wait for it.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		defer close(s.done)
		s.shutdownErr = s.shutdown(ctx)
	})
	<-s.done
	return s.shutdownErr
}

func (s *Service) shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	ln := s.ln
	live := make([]*clientSession, 0, len(s.sessions))
	for cs := range s.sessions {
		live = append(live, cs)
	}
	s.mu.Unlock()

	log.Info().Int("sessions", len(live)).Dur("drain_timeout", s.cfg.DrainTimeout).Msg("broker.Service.Shutdown begin")
	if ln != nil {
		_ = ln.Close()
	}
	for _, cs := range live {
		cs.wake()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
		log.Info().Msg("broker.Service.Shutdown drained")
	case <-timer.C:
		s.forceClose("drain timeout")
	case <-ctx.Done():
		s.forceClose("context done")
	}

	select {
	case <-drained:
	case <-time.After(forceCloseGrace):
		log.Warn().Int64("active_clients", s.active.Load()).Msg("broker.Service.Shutdown sessions still running")
	}

	s.cancelBackend()
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("broker: close backend: %w", err)
	}
	log.Info().Msg("broker.Service.Shutdown complete")
	return nil
}

func (s *Service) forceClose(reason string) {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.sessions))
	for _, conn := range s.sessions {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	log.Warn().Str("reason", reason).Int("sessions", len(conns)).Msg("broker.Service.Shutdown force close")
	for _, conn := range conns {
		_ = conn.Close()
	}
	s.cancelBackend()
}

// Sessions returns a snapshot of live sessions ordered by sequence number.
func (s *Service) Sessions() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for cs := range s.sessions {
		out = append(out, cs.info())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *Service) ActiveSessions() int {
	return int(s.active.Load())
}

// Ready reports whether the acceptor is running and not shutting down.
func (s *Service) Ready() bool {
	return s.running.Load() && !s.closing.Load()
}

// Addr returns the bound listener address, or nil before Serve.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
