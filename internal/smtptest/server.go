// Package smtptest provides an in-process SMTP server that records what
// clients deliver to it. It is used to exercise outgoing transports
// without a real mail server.
package smtptest

import (
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Config controls how the test server answers.
type Config struct {
	// Hostname is announced in the greeting and EHLO reply.
	Hostname string

	// AuthUsername and AuthPassword enable AUTH PLAIN and LOGIN.
	AuthUsername string
	AuthPassword string

	// TLSConfig enables STARTTLS when non-nil.
	TLSConfig *tls.Config

	// Reject lists recipients refused at RCPT with 550.
	Reject []string

	// DataReply replaces the default reply to the end of DATA.
	DataReply string

	// Stall keeps connections open without ever sending a greeting.
	Stall bool
}

// Delivery is one message received by the server.
type Delivery struct {
	From string
	To   []string
	Data string
	// AuthUser is the identity that authenticated, if any.
	AuthUser string
	TLS      bool
}

// Server is a minimal SMTP server bound to a loopback port.
type Server struct {
	config   Config
	auth     *authenticator
	listener net.Listener

	mu         sync.Mutex
	deliveries []Delivery
	conns      map[net.Conn]struct{}

	wg sync.WaitGroup
}

// Start listens on an ephemeral loopback port and serves until Close.
func Start(cfg Config) (*Server, error) {
	if cfg.Hostname == "" {
		cfg.Hostname = "smtptest.local"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		auth:     &authenticator{username: cfg.AuthUsername, password: cfg.AuthPassword},
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forget(conn)
			if s.config.Stall {
				// Block until the peer or Close tears the connection down.
				buf := make([]byte, 1)
				for {
					if _, err := conn.Read(buf); err != nil {
						return
					}
				}
			}
			newSession(s, conn).handle()
		}()
	}
}

func (s *Server) forget(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) record(d Delivery) {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, d)
	s.mu.Unlock()
}

func (s *Server) rejects(rcpt string) bool {
	for _, r := range s.config.Reject {
		if strings.EqualFold(r, rcpt) {
			return true
		}
	}
	return false
}

// Deliveries returns a copy of every message received so far.
func (s *Server) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

// Host returns the listening IP address.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening TCP port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Close stops accepting, drops open connections and waits for sessions.
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
