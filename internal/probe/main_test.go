package probe_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"log"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

var (
	// https server presenting certDER
	tlsAddr string
	// tls server recording the server name sent by a client
	sniAddr string
	lastSNI atomic.Value
	// tcp server answering every ClientHello with a fatal handshake_failure alert
	alertAddr string
	// tcp server accepting connections and never answering
	silentAddr string
	// address nobody listens on
	closedAddr string

	certDER []byte
)

func TestMain(m *testing.M) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		log.Fatalf("generate self-signed certificate: %v", err)
	}
	certDER = cert.Certificate[0]

	ln, err := tls.Listen("tcp4", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		log.Fatalf("listen tls: %v", err)
	}
	srv := tlsServer(ln, cert)
	defer srv.Close()
	tlsAddr = ln.Addr().String()

	sniLn, err := tls.Listen("tcp4", "127.0.0.1:0", &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			lastSNI.Store(hello.ServerName)
			return &cert, nil
		},
	})
	if err != nil {
		log.Fatalf("listen sni: %v", err)
	}
	defer func() {
		_ = sniLn.Close()
	}()
	go serve(sniLn, func(c net.Conn) {
		_ = c.(*tls.Conn).Handshake()
	})
	sniAddr = sniLn.Addr().String()

	alertLn := listen()
	defer func() {
		_ = alertLn.Close()
	}()
	go serve(alertLn, func(c net.Conn) {
		hdr := make([]byte, 5)
		if _, err := io.ReadFull(c, hdr); err != nil {
			return
		}
		hello := make([]byte, int(hdr[3])<<8|int(hdr[4]))
		if _, err := io.ReadFull(c, hello); err != nil {
			return
		}
		// alert record: fatal(2) handshake_failure(40)
		_, _ = c.Write([]byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28})
	})
	alertAddr = alertLn.Addr().String()

	silentLn := listen()
	defer func() {
		_ = silentLn.Close()
	}()
	go serve(silentLn, func(c net.Conn) {
		_, _ = io.Copy(io.Discard, c)
	})
	silentAddr = silentLn.Addr().String()

	closedLn := listen()
	closedAddr = closedLn.Addr().String()
	_ = closedLn.Close()

	ret := m.Run()
	os.Exit(ret)
}

func listen() net.Listener {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	return ln
}

func serve(ln net.Listener, handle func(net.Conn)) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer func() {
				_ = c.Close()
			}()
			handle(c)
		}()
	}
}

func tlsServer(ln net.Listener, cert tls.Certificate) *httptest.Server {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	server.Config.ErrorLog = log.New(io.Discard, "", 0)
	server.Listener = ln
	server.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	server.StartTLS()
	return server
}

// generateSelfSignedCert makes a temporary self-signed TLS cert.
func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses: []net.IP{
			net.ParseIP("127.0.0.1"),
		},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return cert, nil
}
