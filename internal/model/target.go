package model

import "time"

// ServiceTypeTLS is the service type marker of TLS services in the target list.
const ServiceTypeTLS = "2"

// Target is a single line of the input list: <host:port>,<service-type>[,...]
// ID is the whole line and identifies the service in the store and the cache.
type Target struct {
	ID      string
	Address string
	Type    string
	Extra   []string
}

// IsTLS says if the target is a service of a given type
func (t Target) IsTLS(marker string) bool {
	return t.Type == marker
}

// Observation is a fingerprint seen on a target by a successful probe.
type Observation struct {
	ServiceID   string
	Fingerprint string
	ObservedAt  time.Time
}

// ObservationRecord is a stored observation: the fingerprint was seen on the
// service by every scan between FirstSeen and LastSeen.
type ObservationRecord struct {
	ServiceID   string
	Fingerprint string
	FirstSeen   time.Time
	LastSeen    time.Time
}
