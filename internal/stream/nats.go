// Package stream publishes served snapshots to NATS so monitors other than
// the polling front-end can follow the simulated patient.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linnemanlabs/triageq/internal/triage"
)

// DefaultSubject is the subject snapshots are published on.
const DefaultSubject = "triageq.vitals"

// Connect dials NATS with reconnects enabled, so a restarted broker does not
// take the publisher down.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher writes snapshots as JSON to a subject.
type Publisher struct {
	conn    Conn
	subject string
}

// NewPublisher creates a publisher on subject, DefaultSubject if empty.
func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// message is the wire form: the API snapshot plus fields the HTTP response
// leaves out.
type message struct {
	*triage.Snapshot
	Profile string `json:"profile"`
	Rule    string `json:"rule"`
}

// Publish implements triage.Publisher. nats buffers the write, so this
// does not block on the network.
func (p *Publisher) Publish(_ context.Context, snap *triage.Snapshot) error {
	data, err := json.Marshal(message{Snapshot: snap, Profile: snap.Profile, Rule: snap.Triage.Rule})
	if err != nil {
		return fmt.Errorf("stream: marshal snapshot: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("stream: publish %s: %w", p.subject, err)
	}
	return nil
}

// Subject returns the subject snapshots are published on.
func (p *Publisher) Subject() string { return p.subject }
