package bom

import (
	"io"
	"runtime/debug"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

func scannerVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "unknown"
}

// document wraps the observed certificates and run metrics into a BOM. Empty
// lists stay empty, the schema does not allow them to be null.
func document(components []cdx.Component, properties []cdx.Property, at time.Time) cdx.BOM {
	if components == nil {
		components = []cdx.Component{}
	}
	if properties == nil {
		properties = []cdx.Property{}
	}
	return cdx.BOM{
		JSONSchema:   "https://cyclonedx.org/schema/bom-1.6.schema.json",
		BOMFormat:    cdx.BOMFormat,
		SpecVersion:  cdx.SpecVersion1_6,
		SerialNumber: uuid.New().URN(),
		Version:      1,
		Metadata: &cdx.Metadata{
			Timestamp: at.UTC().Format(time.RFC3339),
			// the encoder fails on metadata without a component
			Component: &cdx.Component{
				Type:    cdx.ComponentTypeApplication,
				Name:    "notary-scan",
				Version: scannerVersion(),
			},
		},
		Components: &components,
		Properties: &properties,
	}
}

func encode(w io.Writer, bom cdx.BOM) error {
	return cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(&bom)
}
