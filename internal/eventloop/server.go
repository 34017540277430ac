// Package eventloop implements the single-worker connection multiplexer
// from spec §5: a net.Listener accept loop where each connection gets its
// own reader goroutine, but every goroutine's only path to shared state
// is a single serialized call into command.Dispatcher.Dispatch — so
// keyspace, blocking, pub/sub, and transaction mutation all happen on one
// logical worker even though I/O itself is concurrent. Go has no portable
// user-space readiness-notification primitive in the standard library, so
// "per-connection goroutine funnelled through one dispatch call" is the
// idiomatic substitute — the same shape the teacher's processmgr uses to
// let several goroutines drain a single managed process's stdout/stderr
// into one shared log buffer without racing on it.
package eventloop

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/bufpool"
	"github.com/nullbyte-labs/redisgo/internal/command"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// readBufSize is the per-connection bufio.Reader size.
const readBufSize = 4096

// Server accepts RESP connections and dispatches their commands through a
// shared Dispatcher, serializing the mutation every connection ultimately
// triggers.
type Server struct {
	listener   net.Listener
	dispatcher *command.Dispatcher
	pool       *bufpool.Pool
	log        *zap.Logger

	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]*clientConn
}

// New wraps an already-bound listener. dispatcher must be fully
// constructed (command.NewDispatcher) before connections start arriving.
func New(listener net.Listener, dispatcher *command.Dispatcher, pool *bufpool.Pool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		listener:   listener,
		dispatcher: dispatcher,
		pool:       pool,
		log:        log.Named("eventloop"),
		conns:      make(map[uint64]*clientConn),
	}
}

// Run accepts connections until ctx is cancelled or the listener errors.
// It returns nil on a clean shutdown (listener closed because ctx was
// cancelled), matching the errgroup convention used elsewhere in
// cmd/redis-server.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		id := s.nextID.Add(1)
		cc := newClientConn(id, nc, readBufSize)
		s.register(cc)
		go s.serve(cc)
	}
}

func (s *Server) register(cc *clientConn) {
	s.mu.Lock()
	s.conns[cc.id] = cc
	s.mu.Unlock()
}

func (s *Server) unregister(id uint64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

// DeliverAll writes every Wake in ws to its target connection. Exposed for
// cmd/redis-server's periodic sweep ticker, whose expired-block and
// WAIT-deadline wakes originate outside any connection's own dispatch
// call, and for the replication client's OnWake callback.
func (s *Server) DeliverAll(ws []command.Wake) {
	for _, w := range ws {
		s.deliver(w)
	}
}

// deliver writes a Wake's reply to its target connection if still
// connected; a Wake for a connection that already disconnected is
// silently dropped (the client will never see it, same as a real TCP
// peer that hung up before a pending reply was flushed).
func (s *Server) deliver(w command.Wake) {
	s.mu.Lock()
	target, ok := s.conns[w.ConnID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := target.writeLocked(w.Reply); err != nil {
		s.log.Debug("wake delivery failed", zap.Uint64("conn", w.ConnID), zap.Error(err))
	}
}

// serve owns one connection's full lifecycle: read frames, dispatch them,
// write the reply, deliver any Wakes the dispatch produced, and clean up
// on the way out. This is the "interact" phase of the teacher's
// Start→Ready→interact→Done process lifecycle, adapted from a subprocess
// pipe to a TCP socket.
func (s *Server) serve(cc *clientConn) {
	buf := s.pool.Get(cc.id)
	defer func() {
		s.pool.Put(cc.id, buf[:0])
		s.dispatcher.CloseConn(cc.cmdConn)
		s.unregister(cc.id)
		cc.close()
	}()

	tmp := make([]byte, readBufSize)

	for {
		frame, consumed, err := resp.ParseFrame(buf)
		if err == resp.ErrNeedMore {
			n, rerr := cc.r.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
			}
			if rerr != nil {
				if !errors.Is(rerr, io.EOF) {
					s.log.Debug("connection read error", zap.Uint64("conn", cc.id), zap.Error(rerr))
				}
				return
			}
			continue
		}
		if err != nil {
			var protoErr *resp.ProtocolError
			if errors.As(err, &protoErr) {
				_ = cc.writeLocked(resp.Error("ERR Protocol error: " + protoErr.Msg))
			}
			return
		}
		buf = buf[consumed:]

		result := s.dispatcher.Dispatch(cc.cmdConn, cloneArgs(frame.Args))
		if err := s.reply(cc, result); err != nil {
			return
		}
		for _, w := range result.Wakes {
			s.deliver(w)
		}
		if result.CloseAfterReply {
			return
		}
	}
}

// cloneArgs copies each argument's bytes out of buf's backing array. buf
// comes from bufpool (see serve above), which recycles its backing array
// across connections once returned, and this same connection's own next
// Read can overwrite it in place via append — so anything a handler keeps
// past Dispatch returning (a stored string value, a MULTI-queued command)
// must not alias it.
func cloneArgs(args [][]byte) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		if a == nil {
			continue
		}
		cp := make([]byte, len(a))
		copy(cp, a)
		out[i] = cp
	}
	return out
}

func (s *Server) reply(cc *clientConn, result command.Result) error {
	switch result.Kind {
	case command.ResultAsync:
		return nil
	case command.ResultMultiSuccess:
		for _, b := range result.Multi {
			if err := cc.writeLocked(b); err != nil {
				return err
			}
		}
		return nil
	default:
		return cc.writeLocked(result.Bytes)
	}
}
