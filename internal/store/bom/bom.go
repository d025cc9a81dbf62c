// Package bom writes observed certificates as a CycloneDX BOM. Each
// observation is a cryptographic-asset component identified by the SHA-256
// of the certificate, run metrics are stored as BOM properties.
package bom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Store collects observations in memory and encodes the BOM on Close.
type Store struct {
	mx         sync.Mutex
	w          io.Writer
	closer     io.Closer
	now        func() time.Time
	components []cdx.Component
	index      map[string]int // service id => latest component
	properties []cdx.Property
}

func New(w io.Writer) *Store {
	return &Store{
		w:     w,
		now:   time.Now,
		index: make(map[string]int),
	}
}

// Open creates the output file, "" and "-" mean stdout.
func Open(path string) (*Store, error) {
	if path == "" || path == "-" {
		return New(os.Stdout), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating bom output: %w", err)
	}
	s := New(f)
	s.closer = f
	return s, nil
}

// ReportObservation adds a certificate component. When the latest component
// of the service has the same fingerprint, only its last_seen is updated.
func (s *Store) ReportObservation(_ context.Context, serviceID, fingerprint string) error {
	now := s.now().UTC().Format(time.RFC3339)
	s.mx.Lock()
	defer s.mx.Unlock()

	if i, ok := s.index[serviceID]; ok && prop(s.components[i], PropFingerprint) == fingerprint {
		setProp(&s.components[i], PropLastSeen, now)
		return nil
	}

	c := component(serviceID, fingerprint)
	setProp(&c, PropFirstSeen, now)
	setProp(&c, PropLastSeen, now)
	s.components = append(s.components, c)
	s.index[serviceID] = len(s.components) - 1
	return nil
}

func (s *Store) ReportMetric(_ context.Context, name, detail string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	value := s.now().UTC().Format(time.RFC3339)
	if detail != "" {
		value += " " + detail
	}
	s.properties = append(s.properties, cdx.Property{Name: PropMetric + name, Value: value})
	return nil
}

// Close writes the BOM and closes the output file.
func (s *Store) Close() error {
	s.mx.Lock()
	err := encode(s.w, document(s.components, s.properties, s.now()))
	s.mx.Unlock()
	if err != nil {
		return fmt.Errorf("encoding bom: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func component(serviceID, fingerprint string) cdx.Component {
	address, _, _ := strings.Cut(serviceID, ",")
	c := cdx.Component{
		BOMRef: fmt.Sprintf("crypto/certificate/%s@sha256:%s", address, hexOf(fingerprint)),
		Type:   cdx.ComponentTypeCryptographicAsset,
		Name:   serviceID,
		Hashes: &[]cdx.Hash{
			{
				Algorithm: cdx.HashAlgoSHA256,
				Value:     hexOf(fingerprint),
			},
		},
		Evidence: &cdx.Evidence{
			Occurrences: &[]cdx.EvidenceOccurrence{{Location: address}},
		},
		CryptoProperties: &cdx.CryptoProperties{
			AssetType: cdx.CryptoAssetTypeCertificate,
			CertificateProperties: &cdx.CertificateProperties{
				CertificateFormat: "X.509",
			},
		},
	}
	setProp(&c, PropFingerprint, fingerprint)
	return c
}

// hexOf converts aa:bb:cc into aabbcc
func hexOf(fingerprint string) string {
	return strings.ReplaceAll(fingerprint, ":", "")
}
