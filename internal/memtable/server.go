// Package memtable serves the LiteTable gRPC API from memory, together with the CDC stream of
// its writes and deletes. It keeps every version of every cell until it is deleted and has no
// persistence or garbage collection.
package memtable

import (
	"errors"
	"fmt"
	"net"
	"time"

	cdc "github.com/litetable/litetable-cdc/go/v1"
	"github.com/litetable/litetable-db/pkg/proto"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

//go:generate mockgen -destination=./server_mock.go -package=memtable -source=server.go

type grpcServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
}

// Server is an in-memory LiteTable server with a Start/Stop/Name lifecycle.
type Server struct {
	address  string
	port     int
	server   grpcServer
	listener net.Listener
	feed     *changefeed
}

// Config sets where the server listens.
type Config struct {
	Address string
	// Port to listen on. Zero picks a free port, see Server.Addr.
	Port int
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("config required")
	}

	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errGrp = append(errGrp, fmt.Errorf("port out of range: %d", c.Port))
	}
	return errors.Join(errGrp...)
}

// NewServer creates the server and binds its listener.
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	feed := newChangefeed()
	srv := grpc.NewServer()
	srv.RegisterService(&proto.LitetableService_ServiceDesc, &service{store: newStore(), feed: feed})
	cdc.RegisterCDCServiceServer(srv, feed)
	reflection.Register(srv)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Address, fmt.Sprint(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", cfg.Port, err)
	}

	return &Server{
		address:  cfg.Address,
		port:     lis.Addr().(*net.TCPAddr).Port,
		server:   srv,
		listener: lis,
		feed:     feed,
	}, nil
}

// Subscribers returns the number of connected CDC streams.
func (s *Server) Subscribers() int {
	return s.feed.subscribers()
}

// Addr returns the host:port clients should dial.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.address, fmt.Sprint(s.port))
}

func (s *Server) Start() error {
	log.Info().Msgf("memtable listening at %s", s.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			log.Error().Err(err).Msg("memtable server failed")
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// Serve only returns early when the listener is unusable.
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping memtable server")
	if s.feed != nil {
		s.feed.close()
	}
	s.server.GracefulStop()
	return nil
}

func (s *Server) Name() string {
	return "LiteTable memtable"
}
