// Package notify publishes build run events on NATS so downstream consumers
// (deploy hooks, chat bots) can react to finished runs and broken links.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/corpora/internal/build"
	"git.home.luguber.info/inful/corpora/internal/incremental"
	"git.home.luguber.info/inful/corpora/internal/linkverify"
	"git.home.luguber.info/inful/corpora/internal/logfields"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "corpora"

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// RunEvent is published on <subject>.run after every build.
type RunEvent struct {
	RunID       string         `json:"run_id"`
	Root        string         `json:"root"`
	OutputDir   string         `json:"output_dir"`
	Outcome     build.Outcome  `json:"outcome"`
	Start       time.Time      `json:"start"`
	DurationMS  int64          `json:"duration_ms"`
	Documents   int            `json:"documents"`
	Rendered    int            `json:"rendered"`
	Pages       int            `json:"pages"`
	Transitions map[string]int `json:"transitions,omitempty"`
	Issues      []build.Issue  `json:"issues,omitempty"`
	Promoted    bool           `json:"promoted"`
}

// Publisher sends run and broken link events. It satisfies build.Sink.
type Publisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// Connect dials a NATS server and returns a Publisher bound to subject.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("corpora"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p := newPublisher(nc, subject, logger)
	p.logger.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", p.subject))
	return p, nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: c, subject: subject, logger: logger}
}

// RunSubject is the subject run events are published on.
func (p *Publisher) RunSubject() string { return p.subject + ".run" }

// BrokenLinkSubject is the subject broken link events are published on.
func (p *Publisher) BrokenLinkSubject() string { return p.subject + ".broken_link" }

// Record publishes a RunEvent for r.
func (p *Publisher) Record(ctx context.Context, r *build.Report) error {
	ev := RunEvent{
		RunID:      r.RunID,
		Root:       r.Root,
		OutputDir:  r.OutputDir,
		Outcome:    r.Outcome,
		Start:      r.Start,
		DurationMS: r.Duration().Milliseconds(),
		Documents:  r.Documents,
		Rendered:   r.Rendered,
		Pages:      r.Pages,
		Issues:     r.Issues,
		Promoted:   r.Promoted,
	}
	if len(r.Transitions) > 0 {
		ev.Transitions = make(map[string]int, len(r.Transitions))
		for _, tr := range []incremental.Transition{incremental.Unchanged, incremental.Added, incremental.Modified, incremental.Removed} {
			if n := r.Transitions[tr]; n > 0 {
				ev.Transitions[string(tr)] = n
			}
		}
	}
	return p.publish(ctx, p.RunSubject(), ev)
}

// PublishBrokenLinks publishes one event per broken link.
func (p *Publisher) PublishBrokenLinks(ctx context.Context, events []linkverify.BrokenLinkEvent) error {
	for i := range events {
		data, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := p.conn.Publish(p.BrokenLinkSubject(), data); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}
	return p.flush(ctx)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := p.flush(ctx); err != nil {
		return err
	}
	p.logger.Debug("Published event", slog.String("subject", subject))
	return nil
}

func (p *Publisher) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

var _ build.Sink = (*Publisher)(nil)
