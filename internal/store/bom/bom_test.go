package bom_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/notary-scan/internal/store/bom"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, b []byte) cdx.BOM {
	t.Helper()
	var doc cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(bytes.NewReader(b), cdx.BOMFileFormatJSON).Decode(&doc))
	return doc
}

func prop(c cdx.Component, name string) string {
	for _, p := range *c.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	var buf bytes.Buffer
	st := bom.New(&buf)

	require.NoError(t, st.ReportMetric(ctx, "ServiceScanStart", "ServiceCount: 2"))
	require.NoError(t, st.ReportObservation(ctx, "a.example.com:443,2", "aa:bb:cc"))
	require.NoError(t, st.ReportObservation(ctx, "a.example.com:443,2", "aa:bb:cc"))
	require.NoError(t, st.ReportObservation(ctx, "b.example.com:443,2", "dd:ee:ff"))
	require.NoError(t, st.ReportObservation(ctx, "a.example.com:443,2", "11:22:33"))
	require.NoError(t, st.ReportMetric(ctx, "ServiceScanStop", ""))
	require.Zero(t, buf.Len())
	require.NoError(t, st.Close())

	doc := decode(t, buf.Bytes())
	require.Equal(t, cdx.SpecVersion1_6, doc.SpecVersion)
	require.Equal(t, "notary-scan", doc.Metadata.Component.Name)

	comps := *doc.Components
	require.Len(t, comps, 3)

	a := comps[0]
	require.Equal(t, "a.example.com:443,2", a.Name)
	require.Equal(t, cdx.ComponentTypeCryptographicAsset, a.Type)
	require.Equal(t, cdx.CryptoAssetTypeCertificate, a.CryptoProperties.AssetType)
	require.Equal(t, []cdx.Hash{{Algorithm: cdx.HashAlgoSHA256, Value: "aabbcc"}}, *a.Hashes)
	require.Equal(t, "aa:bb:cc", prop(a, bom.PropFingerprint))
	require.NotEmpty(t, prop(a, bom.PropFirstSeen))
	require.Equal(t, "a.example.com:443", (*a.Evidence.Occurrences)[0].Location)
	require.Equal(t, "crypto/certificate/a.example.com:443@sha256:aabbcc", a.BOMRef)

	require.Equal(t, "11:22:33", prop(comps[2], bom.PropFingerprint))

	props := *doc.Properties
	require.Len(t, props, 2)
	require.Equal(t, bom.PropMetric+"ServiceScanStart", props[0].Name)
	require.Contains(t, props[0].Value, "ServiceCount: 2")
	require.Equal(t, bom.PropMetric+"ServiceScanStop", props[1].Name)
}

func TestStoreEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, bom.New(&buf).Close())
	doc := decode(t, buf.Bytes())
	require.NotNil(t, doc.Components)
	require.Empty(t, *doc.Components)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notary.cdx.json")
	st, err := bom.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.ReportObservation(t.Context(), "a.example.com:443,2", "aa:bb"))
	require.NoError(t, st.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := decode(t, b)
	require.Len(t, *doc.Components, 1)

	_, err = bom.Open(filepath.Join(t.TempDir(), "missing", "dir", "bom.json"))
	require.Error(t, err)
}
