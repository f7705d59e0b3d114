package control

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/vietddude/debugctl/internal/core/config"
	"github.com/vietddude/debugctl/internal/infra/rpc"
	"github.com/vietddude/debugctl/internal/infra/rpc/clientinfo"
	"github.com/vietddude/debugctl/internal/infra/rpc/transport"
)

// ClientOptions translates the controller section into client options.
func ClientOptions(cfg config.ControllerConfig) ([]rpc.ClientOption, error) {
	var opts []rpc.ClientOption

	if cfg.Endpoint != "" {
		opts = append(opts, rpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.MTLSMode != "" {
		mode, err := transport.ParseMTLSMode(cfg.MTLSMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rpc.WithMTLSMode(mode))
	}
	if cfg.UseClientCertificate != nil {
		opts = append(opts, rpc.WithClientCertificate(*cfg.UseClientCertificate))
	}
	if cfg.ClientCertFile != "" {
		certFile, keyFile := cfg.ClientCertFile, cfg.ClientKeyFile
		opts = append(opts, rpc.WithClientCertSource(func() (tls.Certificate, error) {
			return tls.LoadX509KeyPair(certFile, keyFile)
		}))
	}
	if cfg.Transport != "" {
		opts = append(opts, rpc.WithTransportName(cfg.Transport))
	}
	if cfg.Insecure {
		opts = append(opts, rpc.WithInsecure())
	}

	if cfg.ClientInfo.Name != "" || cfg.ClientInfo.Version != "" {
		info := clientinfo.Default()
		if cfg.ClientInfo.Name != "" {
			info.Name = cfg.ClientInfo.Name
		}
		if cfg.ClientInfo.Version != "" {
			info.Version = cfg.ClientInfo.Version
		}
		opts = append(opts, rpc.WithClientInfo(info))
	}

	for op, m := range cfg.Methods {
		d := rpc.MethodDefaults{Timeout: m.Timeout}
		if m.Retry != nil {
			p, err := m.Retry.Policy()
			if err != nil {
				return nil, fmt.Errorf("retry policy for %s: %w", op, err)
			}
			d.Retry = p
			d.RetrySet = true
		}
		opts = append(opts, rpc.WithMethodDefaults(op, d))
	}
	return opts, nil
}

// NewClient creates a Controller2 client from the controller section.
func NewClient(ctx context.Context, cfg config.ControllerConfig) (*rpc.Client, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CredentialsFile != "" {
		return rpc.NewClientFromCredentialsFile(ctx, cfg.CredentialsFile, opts...)
	}
	return rpc.NewClient(ctx, opts...)
}
