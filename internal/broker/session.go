package broker

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/dockctl/internal/observability"
	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionInfo is a point-in-time view of one client session.
type SessionInfo struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"`
	RemoteAddr  string    `json:"remote_addr"`
	State       string    `json:"state"`
	ConnectedAt time.Time `json:"connected_at"`
	Commands    uint64    `json:"commands"`
	LastCommand string    `json:"last_command,omitempty"`
}

// clientSession is the server half of one connection.
type clientSession struct {
	id          string
	seq         uint64
	remote      string
	connectedAt time.Time
	conn        *session.Conn
	machine     *session.Machine
	logger      zerolog.Logger

	commands atomic.Uint64
	lastMu   sync.Mutex
	last     protocol.CommandType
}

func newClientSession(seq uint64, raw net.Conn, cfg session.Config) *clientSession {
	id := uuid.NewString()
	remote := raw.RemoteAddr().String()
	return &clientSession{
		id:          id,
		seq:         seq,
		remote:      remote,
		connectedAt: time.Now(),
		conn:        session.NewConn(raw, cfg),
		machine:     session.NewMachine(),
		logger: log.With().
			Str("session", id).
			Uint64("seq", seq).
			Str("remote", remote).
			Logger(),
	}
}

func (cs *clientSession) info() SessionInfo {
	cs.lastMu.Lock()
	last := cs.last
	cs.lastMu.Unlock()
	return SessionInfo{
		ID:          cs.id,
		Seq:         cs.seq,
		RemoteAddr:  cs.remote,
		State:       cs.machine.State().String(),
		ConnectedAt: cs.connectedAt,
		Commands:    cs.commands.Load(),
		LastCommand: string(last),
	}
}

// wake unblocks an idle read so the session observes shutdown.
func (cs *clientSession) wake() {
	_ = cs.conn.Wake()
}

func (cs *clientSession) transition(next session.State) {
	if err := cs.machine.Transition(next); err != nil {
		cs.logger.Error().Err(err).Msg("broker.session state")
	}
}

// serveSession runs GREETING -> READY -> (DISPATCHING -> READY)* -> CLOSED.
func (s *Service) serveSession(cs *clientSession) {
	defer cs.machine.Close()

	if err := cs.conn.WriteResponse(protocol.Success(GreetingMessage)); err != nil {
		cs.logger.Warn().Err(err).Msg("broker.session greeting write failed")
		return
	}
	cs.transition(session.StateReady)

	for {
		if s.closing.Load() {
			cs.logger.Debug().Msg("broker.session closing for shutdown")
			return
		}
		cmd, err := cs.conn.ReadCommand()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedEnvelope) {
				observability.RecordMalformedEnvelope()
				cs.logger.Warn().Err(err).Msg("broker.session malformed envelope")
				if err := cs.conn.WriteResponse(protocol.Failuref(msgInvalidFormatFmt, malformedReason(err))); err != nil {
					cs.logger.Warn().Err(err).Msg("broker.session write failed")
					return
				}
				continue
			}
			s.logReadEnd(cs, err)
			return
		}

		cs.transition(session.StateDispatching)
		cs.commands.Add(1)
		cs.lastMu.Lock()
		cs.last = cmd.Type
		cs.lastMu.Unlock()

		start := time.Now()
		resp, closeAfter := s.dispatcher.Dispatch(s.backendCtx, cmd)
		elapsed := time.Since(start)
		observability.RecordCommand(string(cmd.Type), cmd.Type.Known(), resp.Success, elapsed)

		event := cs.logger.Info()
		if !resp.Success {
			event = cs.logger.Warn().Str("message", resp.Message)
		}
		event.Str("type", string(cmd.Type)).Bool("success", resp.Success).Dur("duration", elapsed).Msg("broker.session command")

		if err := cs.conn.WriteResponse(resp); err != nil {
			cs.logger.Warn().Err(err).Msg("broker.session write failed")
			return
		}
		if closeAfter {
			cs.logger.Debug().Msg("broker.session exit requested")
			return
		}
		cs.transition(session.StateReady)
	}
}

func (s *Service) logReadEnd(cs *clientSession, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		cs.logger.Debug().Msg("broker.session peer closed")
	case errors.Is(err, os.ErrDeadlineExceeded) && s.closing.Load():
		cs.logger.Debug().Msg("broker.session woken for shutdown")
	default:
		cs.logger.Warn().Err(err).Msg("broker.session read failed")
	}
}

func malformedReason(err error) string {
	return strings.TrimPrefix(err.Error(), protocol.ErrMalformedEnvelope.Error()+": ")
}
