package probe

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// TLS gets the fingerprint of a leaf certificate from the TLS handshake
// made by crypto/tls.
type TLS struct {
	dialer *net.Dialer
}

func NewTLS() TLS {
	return TLS{dialer: &net.Dialer{}}
}

// Probe connects to target (host:port), finishes the handshake and returns
// the fingerprint of the certificate the server presented. Certificates are
// not verified, the notary records what is there. With sni the host is sent
// in the server_name extension, otherwise no server name is sent at all.
func (p TLS) Probe(ctx context.Context, target string, timeout time.Duration, sni bool) (string, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil || host == "" || port == "" {
		return "", fmt.Errorf("target %q: %w", target, model.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return "", wrapErr(target, timeout, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	cfg := &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // fingerprints are recorded, not trusted
	}
	if sni && net.ParseIP(host) == nil {
		cfg.ServerName = host
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return "", wrapErr(target, timeout, err)
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		slog.WarnContext(ctx, "server sent no certificate", "target", target)
		return "", nil
	}
	return Fingerprint(state.PeerCertificates[0].Raw), nil
}

// Fingerprint returns the colon separated SHA-256 of a DER encoded certificate
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	h := hex.EncodeToString(sum[:])
	var sb strings.Builder
	sb.Grow(len(h) + len(h)/2)
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(h[i : i+2])
	}
	return sb.String()
}

func wrapErr(target string, timeout time.Duration, err error) error {
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		return fmt.Errorf("probe %s: %w", target, err)
	case errors.As(err, &opErr) && opErr.Op == "remote error":
		return &model.AlertError{Target: target, Alert: opErr.Err.Error(), Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &model.TimeoutError{Target: target, Timeout: timeout, Err: err}
	}
	return fmt.Errorf("probe %s: %w", target, err)
}
