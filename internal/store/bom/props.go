package bom

import (
	cdx "github.com/CycloneDX/cyclonedx-go"
)

const (
	PropFingerprint = "notary:observation:fingerprint"
	PropFirstSeen   = "notary:observation:first_seen"
	PropLastSeen    = "notary:observation:last_seen"
	PropMetric      = "notary:metric:"
)

// setProp replaces the value of a property or appends a new one
func setProp(c *cdx.Component, name, value string) {
	if c.Properties == nil {
		c.Properties = &[]cdx.Property{}
	}
	props := *c.Properties
	for i := range props {
		if props[i].Name == name {
			props[i].Value = value
			return
		}
	}
	*c.Properties = append(props, cdx.Property{Name: name, Value: value})
}

func prop(c cdx.Component, name string) string {
	if c.Properties == nil {
		return ""
	}
	for _, p := range *c.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}
