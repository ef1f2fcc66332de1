package triage

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/triageq/internal/vitals"
)

var tracer = otel.Tracer("github.com/linnemanlabs/triageq/internal/triage")

// Source produces readings for the active simulation profile.
type Source interface {
	Read() vitals.Record
	SetProfile(name string) vitals.Change
	Profile() vitals.Change
}

// Notifier is told when the triage class escalates to Immediate.
type Notifier interface {
	Send(ctx context.Context, snap *Snapshot) error
}

// Publisher receives every served snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Service is the business boundary: it reads the sensor, classifies the
// reading and fans the result out to the optional notifier and publisher.
type Service struct {
	source    Source
	engine    *Engine
	logger    log.Logger
	metrics   *Metrics
	notifier  Notifier
	publisher Publisher
	now       func() time.Time

	mu        sync.Mutex
	lastClass Class
}

// NewService creates a new triage service. metrics, notifier and publisher
// may be nil.
func NewService(source Source, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier, publisher Publisher) *Service {
	if source == nil {
		panic(xerrors.New("vitals source is required"))
	}
	if engine == nil {
		panic(xerrors.New("triage engine is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		source:    source,
		engine:    engine,
		logger:    logger,
		metrics:   metrics,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
	}
}

// Snapshot reads the sensor once and classifies the reading.
func (s *Service) Snapshot(ctx context.Context) *Snapshot {
	ctx, span := tracer.Start(ctx, "vitals.snapshot")
	defer span.End()

	profile := s.source.Profile()
	rec := s.source.Read()
	res := s.engine.Classify(FromRecord(rec))

	snap := &Snapshot{
		Timestamp: float64(s.now().UnixNano()) / float64(time.Second),
		Vitals:    rec,
		Triage:    res,
		Profile:   profile.Profile,
	}

	span.SetAttributes(
		attribute.String("triageq.profile", profile.Profile),
		attribute.String("triageq.archetype", string(profile.Archetype)),
		attribute.String("triageq.triage.class", string(res.Class)),
		attribute.String("triageq.triage.rule", res.Rule),
	)

	if s.metrics != nil {
		s.metrics.observeRecord(rec)
	}

	if s.escalated(res.Class) {
		span.AddEvent("triage.escalated")
		s.logger.Warn(ctx, "triage escalated",
			"class", res.Class,
			"rule", res.Rule,
			"profile", profile.Profile,
			"reasons", res.Reasons,
		)
		if s.notifier != nil {
			cp := *snap
			go s.notify(context.WithoutCancel(ctx), &cp)
		}
	}

	s.publish(ctx, span, snap)
	return snap
}

// Classify runs the engine on caller-supplied vitals.
func (s *Service) Classify(ctx context.Context, v Vitals) Result {
	_, span := tracer.Start(ctx, "triage.classify")
	defer span.End()

	res := s.engine.Classify(v)
	span.SetAttributes(
		attribute.String("triageq.triage.class", string(res.Class)),
		attribute.String("triageq.triage.rule", res.Rule),
	)
	return res
}

// SetProfile switches the simulated patient.
func (s *Service) SetProfile(ctx context.Context, name string) vitals.Change {
	c := s.source.SetProfile(name)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("triageq.profile", c.Profile),
		attribute.String("triageq.archetype", string(c.Archetype)),
	)
	if s.metrics != nil {
		s.metrics.ProfileChangesTotal.WithLabelValues(string(c.Archetype)).Inc()
	}

	if c.Known {
		s.logger.Info(ctx, "profile changed", "profile", c.Profile, "archetype", c.Archetype, "change_id", c.ID)
	} else {
		s.logger.Warn(ctx, "unknown profile, reading as default", "profile", c.Profile, "archetype", c.Archetype, "change_id", c.ID)
	}
	return c
}

// Profile returns the active simulation profile.
func (s *Service) Profile(_ context.Context) vitals.Change {
	return s.source.Profile()
}

// Version returns the rule set version in use.
func (s *Service) Version() string {
	return s.engine.Version()
}

// escalated records class and reports a transition into Immediate.
func (s *Service) escalated(class Class) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lastClass
	s.lastClass = class
	return class == ClassImmediate && prev != ClassImmediate
}

func (s *Service) notify(ctx context.Context, snap *Snapshot) {
	err := s.notifier.Send(ctx, snap)
	if err != nil {
		s.logger.Error(ctx, err, "escalation notification failed", "profile", snap.Profile)
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(outcome(err)).Inc()
	}
}

func (s *Service) publish(ctx context.Context, span trace.Span, snap *Snapshot) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, snap)
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, err, "snapshot publish failed")
	}
	if s.metrics != nil {
		s.metrics.PublishesTotal.WithLabelValues(outcome(err)).Inc()
	}
}
