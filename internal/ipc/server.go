package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"mlauncher/pkg/logger"
)

// idleTimeout closes connections that send nothing for this long.
const idleTimeout = 5 * time.Minute

// Server is the IPC server that runs in the serve host
type Server struct {
	endpoint string
	listener net.Listener

	handlers   map[MessageType]Handler
	handlersMu sync.RWMutex

	conns   map[net.Conn]struct{}
	connsMu sync.Mutex
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new IPC server for endpoint
func NewServer(endpoint string) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		endpoint: endpoint,
		handlers: make(map[MessageType]Handler),
		conns:    make(map[net.Conn]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.RegisterHandler(MsgPing, HandlerFunc(s.handlePing))

	return s
}

// Start starts listening and serving in the background
func (s *Server) Start() error {
	listener, err := listen(s.endpoint)
	if err != nil {
		return fmt.Errorf("failed to start IPC server on %s: %w", s.endpoint, err)
	}
	s.listener = listener

	logger.Infof("IPC server listening on %s", s.endpoint)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server, disconnects all clients and waits for handlers to return
func (s *Server) Stop() error {
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	cleanup(s.endpoint)

	logger.Info().Msg("IPC server stopped")
	return err
}

// Endpoint returns the pipe name or socket path being served
func (s *Server) Endpoint() string {
	return s.endpoint
}

// RegisterHandler sets the handler for a message type, replacing any previous one
func (s *Server) RegisterHandler(msgType MessageType, handler Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[msgType] = handler
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnf("failed to accept connection: %v", err)
			continue
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		_ = conn.Close()
	}()

	decoder := NewDecoder(conn)
	encoder := NewEncoder(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

		msg, err := decoder.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && s.ctx.Err() == nil {
				logger.Warnf("failed to decode message: %v", err)
			}
			return
		}

		reply := s.dispatch(msg)
		if reply == nil {
			continue
		}
		reply.Source = RoleHost
		reply.ReplyTo = msg.ID

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := encoder.Encode(reply); err != nil {
			logger.Warnf("failed to send reply to %s: %v", msg.Source, err)
			return
		}
	}
}

func (s *Server) dispatch(msg *Message) (reply *Message) {
	if !Compatible(msg.Version) {
		logger.Warnf("unsupported protocol version %q from %s", msg.Version, msg.Source)
		return NewMessage(MsgError, RoleHost).WithPayload(&ErrorPayload{
			Code:    "unsupported_version",
			Message: fmt.Sprintf("version %q, host speaks %s", msg.Version, ProtocolVersion),
		})
	}

	s.handlersMu.RLock()
	handler, ok := s.handlers[msg.Type]
	s.handlersMu.RUnlock()

	if !ok {
		logger.Warnf("no handler for message type: %s", msg.Type)
		return NewMessage(MsgError, RoleHost).WithPayload(&ErrorPayload{
			Code:    "unknown_type",
			Message: fmt.Sprintf("no handler for %q", msg.Type),
		})
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("type", string(msg.Type)).Msg("IPC handler panicked")
			reply = NewMessage(MsgError, RoleHost).WithPayload(&ErrorPayload{
				Code:    "panic",
				Message: fmt.Sprint(r),
			})
		}
	}()

	reply, err := handler.Handle(msg)
	if err != nil {
		logger.Warnf("handler error for %s: %v", msg.Type, err)
		return NewMessage(MsgError, RoleHost).WithPayload(&ErrorPayload{
			Code:    "handler_error",
			Message: err.Error(),
		})
	}
	return reply
}

func (s *Server) handlePing(msg *Message) (*Message, error) {
	return NewMessage(MsgPong, RoleHost), nil
}
