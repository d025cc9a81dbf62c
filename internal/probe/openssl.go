package probe

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// OpenSSL gets the fingerprint by running openssl s_client. It talks to
// servers the Go TLS stack refuses to, so it serves as a fallback.
type OpenSSL struct {
	binary string
}

func NewOpenSSL(binary string) OpenSSL {
	if binary == "" {
		binary = "openssl"
	}
	return OpenSSL{binary: binary}
}

// Available says if the openssl binary can be found
func (p OpenSSL) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

func (p OpenSSL) Probe(ctx context.Context, target string, timeout time.Duration, sni bool) (string, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil || host == "" || port == "" {
		return "", fmt.Errorf("target %q: %w", target, model.ErrInvalidInput)
	}

	args := []string{"s_client", "-connect", target, "-showcerts"}
	if sni && net.ParseIP(host) == nil {
		args = append(args, "-servername", host)
	} else {
		args = append(args, "-noservername")
	}

	var stderr []string
	res := Run(ctx, Command{
		Path:    p.binary,
		Args:    args,
		Timeout: timeout,
	}, func(_ context.Context, line string) {
		stderr = append(stderr, line)
	})

	if res.TimedOut {
		return "", &model.TimeoutError{Target: target, Timeout: timeout, Err: res.Err}
	}
	var execErr *exec.Error
	if errors.As(res.Err, &execErr) {
		return "", fmt.Errorf("running %s: %w", p.binary, res.Err)
	}

	if fp, ok := firstCertificate(res.Stdout.Bytes()); ok {
		return fp, nil
	}

	if err := stderrToError(target, host, stderr); err != nil {
		return "", err
	}
	if res.Err != nil {
		return "", fmt.Errorf("openssl s_client %s: %w", target, res.Err)
	}
	slog.WarnContext(ctx, "openssl returned no certificate", "target", target)
	return "", nil
}

func firstCertificate(stdout []byte) (string, bool) {
	rest := stdout
	for {
		p, r := pem.Decode(rest)
		if p == nil {
			return "", false
		}
		rest = r
		if p.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(p.Bytes); err != nil {
			continue
		}
		return Fingerprint(p.Bytes), true
	}
}

var stderrErrnos = []struct {
	text  string
	errno syscall.Errno
}{
	{"connection refused", syscall.ECONNREFUSED},
	{"connection reset", syscall.ECONNRESET},
	{"no route to host", syscall.EHOSTUNREACH},
	{"network is unreachable", syscall.ENETUNREACH},
}

var stderrResolver = []struct {
	text string
	no   int
}{
	{"name or service not known", model.EAINoName},
	{"nodename nor servname", model.EAINoNameBSD},
	{"temporary failure in name resolution", model.EAIAgain},
	{"no address associated with hostname", model.EAINoData},
}

// stderrToError turns openssl diagnostics into the typed errors Classify understands
func stderrToError(target, host string, lines []string) error {
	for _, line := range lines {
		l := strings.ToLower(line)
		for _, e := range stderrErrnos {
			if strings.Contains(l, e.text) {
				return fmt.Errorf("openssl s_client %s: %s: %w", target, line, e.errno)
			}
		}
		for _, e := range stderrResolver {
			if strings.Contains(l, e.text) {
				return &model.AddrInfoError{Host: host, No: e.no}
			}
		}
		if strings.Contains(l, "alert") {
			return &model.AlertError{Target: target, Alert: line}
		}
	}
	return nil
}
