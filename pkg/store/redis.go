// Package store holds shared backing-service constructors for the gateway.
package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	RequireTLS    bool
	TLSEnabled    bool
	TLSInsecure   bool
	TLSServerName string
	TLSCACertFile string
}

// NewRedis connects and pings the rate-limit backend.
func NewRedis(ctx context.Context, o RedisOptions) (*redis.Client, error) {
	addr := strings.TrimSpace(o.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	tlsConfig, err := redisTLSConfig(o)
	if err != nil {
		return nil, err
	}
	if o.RequireTLS && tlsConfig == nil {
		return nil, fmt.Errorf("redis TLS required but not enabled")
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  o.Password,
		DB:        o.DB,
		TLSConfig: tlsConfig,
	})
	ctxPing, cancel := context.WithTimeout(ctx, time.Second*2)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func redisTLSConfig(o RedisOptions) (*tls.Config, error) {
	if !o.TLSEnabled {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if o.TLSInsecure {
		cfg.InsecureSkipVerify = true
	}
	if serverName := strings.TrimSpace(o.TLSServerName); serverName != "" {
		cfg.ServerName = serverName
	}
	if caFile := strings.TrimSpace(o.TLSCACertFile); caFile != "" {
		caBytes, err := os.ReadFile(filepath.Clean(caFile))
		if err != nil {
			return nil, fmt.Errorf("read redis CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("parse redis CA certificate: no valid certificates")
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
