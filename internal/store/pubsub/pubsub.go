// Package pubsub publishes observations and metrics to a Google Pub/Sub
// topic, so the notary database can be fed asynchronously.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gps "cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// message types, stored in the "type" attribute
const (
	TypeObservation = "observation"
	TypeMetric      = "metric"
)

type ObservationMessage struct {
	ServiceID   string    `json:"service_id"`
	Fingerprint string    `json:"fingerprint"`
	ObservedAt  time.Time `json:"observed_at"`
}

type MetricMessage struct {
	Name       string    `json:"name"`
	Detail     string    `json:"detail"`
	ReportedAt time.Time `json:"reported_at"`
}

type Publisher struct {
	client *gps.Client
	topic  *gps.Topic
	now    func() time.Time
}

// New publishes to an existing topic. The topic is stopped on Close, its
// client is left open.
func New(topic *gps.Topic) *Publisher {
	return &Publisher{topic: topic, now: time.Now}
}

// Open connects to the project and checks the topic exists. On error the
// client is closed, together with a connection passed in by
// option.WithGRPCConn, so such a connection cannot be reused.
func Open(ctx context.Context, project, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	client, err := gps.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %s: %w", topicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %s does not exist", topicID)
	}
	p := New(topic)
	p.client = client
	return p, nil
}

func (p *Publisher) ReportObservation(ctx context.Context, serviceID, fingerprint string) error {
	return p.publish(ctx, TypeObservation, ObservationMessage{
		ServiceID:   serviceID,
		Fingerprint: fingerprint,
		ObservedAt:  p.now().UTC(),
	})
}

func (p *Publisher) ReportMetric(ctx context.Context, name, detail string) error {
	return p.publish(ctx, TypeMetric, MetricMessage{
		Name:       name,
		Detail:     detail,
		ReportedAt: p.now().UTC(),
	})
}

// publish waits for the server to accept the message, so a failure can be
// handled by the caller.
func (p *Publisher) publish(ctx context.Context, typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	res := p.topic.Publish(ctx, &gps.Message{
		Data:       data,
		Attributes: map[string]string{"type": typ},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

// Close flushes pending messages and closes the client created by Open.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
