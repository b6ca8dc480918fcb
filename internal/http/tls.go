package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

// TLS ClientHello modes accepted by NewTransport
const (
	HelloDefault    = ""
	HelloRandomized = "randomized"
)

// NewTransport creates the HTTP transport for the given ClientHello mode.
// The randomized mode dials TLS itself through utls and negotiates HTTP/1.1
// only, since the hello carries no ALPN extension.
func NewTransport(hello string) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	switch hello {
	case HelloDefault:
		return transport, nil
	case HelloRandomized:
		transport.ForceAttemptHTTP2 = false
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialUTLS(ctx, dialer, network, addr)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unknown TLS hello mode %q", hello)
	}
}

func dialUTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloRandomizedNoALPN)
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	return uconn, nil
}
