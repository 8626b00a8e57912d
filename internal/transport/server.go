package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/chatvault/internal/configs"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
	"github.com/nats-io/nats.go"
)

// Connect dials the NATS server named in cfg.
func Connect(cfg configs.NATSConfig, name string, log logger.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Debugf("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Server answers requests on "<prefix>.<operation>" with a Handler. Several
// servers sharing a queue group split the load.
type Server struct {
	conn    *nats.Conn
	handler *Handler
	prefix  string
	queue   string
	timeout time.Duration
	log     logger.Logger
}

// NewServer returns a Server on an established connection.
func NewServer(conn *nats.Conn, handler *Handler, cfg configs.NATSConfig, log logger.Logger) (*Server, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	return &Server{
		conn:    conn,
		handler: handler,
		prefix:  strings.TrimSuffix(cfg.SubjectPrefix, "."),
		queue:   cfg.Queue,
		timeout: timeout,
		log:     log,
	}, nil
}

// Serve subscribes and blocks until ctx is cancelled, then drains the
// subscription so in-flight requests are answered.
func (s *Server) Serve(ctx context.Context) error {
	subject := s.prefix + ".*"

	sub, err := s.conn.QueueSubscribe(subject, s.queue, func(msg *nats.Msg) {
		s.handleMsg(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.log.Infof("Serving %s (queue %q)", subject, s.queue)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}

func (s *Server) handleMsg(ctx context.Context, msg *nats.Msg) {
	op := operationFromSubject(s.prefix, msg.Subject)

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	resp := s.handler.Handle(reqCtx, op, msg.Data)
	s.log.Debugf("%s handled in %s (success=%t)", op, time.Since(start), resp.Success)

	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorf("Failed to encode %s response: %v", op, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.log.Warnf("Failed to respond to %s: %v", op, err)
	}
}

func operationFromSubject(prefix, subject string) string {
	return strings.TrimPrefix(subject, prefix+".")
}
