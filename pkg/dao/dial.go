package dao

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/litetable/litetable-mapper/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DialConfig locates a LiteTable server.
type DialConfig struct {
	Address string
	Port    int
	// CertFile is a PEM certificate to verify the server with. Empty dials without TLS.
	CertFile string
}

func (c *DialConfig) validate() error {
	if c == nil {
		return errors.New("dial config cannot be nil")
	}

	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, errors.New("address required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errGrp = append(errGrp, fmt.Errorf("port out of range: %d", c.Port))
	}
	return errors.Join(errGrp...)
}

// Dial creates a client connection to a LiteTable server. The connection is established lazily
// on first use.
func Dial(cfg *DialConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if cfg.CertFile != "" {
		tlsCreds, err := credentials.NewClientTLSFromFile(cfg.CertFile, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load server certificate: %w", err)
		}
		creds = tlsCreds
	}

	target := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	conn, err := grpc.NewClient(target,
		append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}

	log.Debug().Str("target", target).Bool("tls", cfg.CertFile != "").Msg("LiteTable client created")
	return conn, nil
}

// DialFromConfig dials the server named in ~/.litetable/litetable.conf. A debug=true entry
// lowers the global log level to debug.
func DialFromConfig(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	return dialConfig(cfg, opts...)
}

func dialConfig(cfg *config.Config, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	return Dial(&DialConfig{
		Address:  cfg.ServerAddress,
		Port:     cfg.ServerPort,
		CertFile: cfg.ServerCert,
	}, opts...)
}
