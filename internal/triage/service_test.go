package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/triageq/internal/vitals"
)

var (
	stableRec = vitals.Record{HR: 78, SpO2: 98, PI: 2.5, RR: 16, TauUS: 70, SignalTrust: 98, PPGPoint: 1.01}
	shockRec  = vitals.Record{HR: 124, SpO2: 88, PI: 0.4, RR: 32, TauUS: 135, SignalTrust: 78, PPGPoint: 0.99}
)

// fakeSource serves a settable record.
type fakeSource struct {
	mu     sync.Mutex
	rec    vitals.Record
	change vitals.Change
}

func (f *fakeSource) Read() vitals.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec
}

func (f *fakeSource) SetProfile(name string) vitals.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, known := vitals.Resolve(name)
	f.change = vitals.Change{ID: "chg-" + name, Profile: name, Archetype: a, Known: known}
	return f.change
}

func (f *fakeSource) Profile() vitals.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.change
}

func (f *fakeSource) set(r vitals.Record) {
	f.mu.Lock()
	f.rec = r
	f.mu.Unlock()
}

// chanNotifier forwards every snapshot to a channel.
type chanNotifier struct {
	ch  chan *Snapshot
	err error
}

func (n *chanNotifier) Send(_ context.Context, snap *Snapshot) error {
	n.ch <- snap
	return n.err
}

// recordingPublisher keeps every published snapshot.
type recordingPublisher struct {
	mu  sync.Mutex
	got []*Snapshot
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, snap *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, snap)
	return p.err
}

func newTestService(t *testing.T, src Source, n Notifier, p Publisher) (*Service, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	svc := NewService(src, newTestEngine(t, m.Hooks()), log.Nop(), m, n, p)
	svc.now = func() time.Time { return time.Unix(1700000000, 500_000_000) }
	return svc, m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewService_Panics(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, EngineHooks{})
	tests := []struct {
		name   string
		source Source
		engine *Engine
	}{
		{"nil source", nil, e},
		{"nil engine", &fakeSource{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if r := recover(); r == nil {
					t.Fatal("expected panic")
				}
			}()
			NewService(tt.source, tt.engine, nil, nil, nil, nil)
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rec: shockRec}
	src.SetProfile("Shock")
	svc, m := newTestService(t, src, nil, nil)

	snap := svc.Snapshot(context.Background())
	if snap.Timestamp != 1700000000.5 {
		t.Errorf("Timestamp = %v, want 1700000000.5", snap.Timestamp)
	}
	if snap.Vitals != shockRec {
		t.Errorf("Vitals = %+v, want %+v", snap.Vitals, shockRec)
	}
	if snap.Triage.Class != ClassImmediate || snap.Triage.Rule != "tachypnea" {
		t.Errorf("Triage = %+v, want Immediate via tachypnea", snap.Triage)
	}
	if snap.Profile != "Shock" {
		t.Errorf("Profile = %q, want Shock", snap.Profile)
	}

	if got := testutil.ToFloat64(m.SnapshotsTotal); got != 1 {
		t.Errorf("snapshots_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ClassificationsTotal.WithLabelValues("Immediate", "tachypnea")); got != 1 {
		t.Errorf("classifications_total{Immediate,tachypnea} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.VitalValue.WithLabelValues("rr")); got != 32 {
		t.Errorf("vital_value{rr} = %v, want 32", got)
	}
}

func TestSnapshot_WithSensor(t *testing.T) {
	t.Parallel()

	sensor := vitals.NewSensor(vitals.WithRand(vitals.NewRand(3)))
	svc, _ := newTestService(t, sensor, nil, nil)

	want := map[string]Class{
		"Stable":           ClassMinor,
		"Delayed":          ClassDelayed,
		"Shock":            ClassImmediate,
		"UnreliableSignal": ClassAssess,
		"VOT_Occlusion":    ClassImmediate,
		"bogus":            ClassMinor,
	}
	for name, class := range want {
		svc.SetProfile(context.Background(), name)
		for i := 0; i < 20; i++ {
			if got := svc.Snapshot(context.Background()).Triage.Class; got != class {
				t.Fatalf("profile %s: class = %q, want %q", name, got, class)
			}
		}
	}
}

func TestSnapshot_NotifiesOnEscalation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rec: stableRec}
	n := &chanNotifier{ch: make(chan *Snapshot, 8)}
	svc, m := newTestService(t, src, n, nil)
	ctx := context.Background()

	svc.Snapshot(ctx)
	src.set(shockRec)
	svc.Snapshot(ctx)
	svc.Snapshot(ctx) // still Immediate, no second notification
	src.set(stableRec)
	svc.Snapshot(ctx)
	src.set(shockRec)
	svc.Snapshot(ctx)

	for i := 0; i < 2; i++ {
		select {
		case snap := <-n.ch:
			if snap.Triage.Class != ClassImmediate {
				t.Errorf("notified class = %q, want Immediate", snap.Triage.Class)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("notification %d not sent", i+1)
		}
	}
	select {
	case snap := <-n.ch:
		t.Fatalf("unexpected extra notification: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	waitFor(t, func() bool {
		return testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("success")) == 2
	})
}

func TestSnapshot_NotifierErrorCounted(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rec: shockRec}
	n := &chanNotifier{ch: make(chan *Snapshot, 1), err: errors.New("webhook down")}
	svc, m := newTestService(t, src, n, nil)

	snap := svc.Snapshot(context.Background())
	if snap.Triage.Class != ClassImmediate {
		t.Fatalf("class = %q, want Immediate", snap.Triage.Class)
	}
	<-n.ch
	waitFor(t, func() bool {
		return testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("error")) == 1
	})
}

func TestSnapshot_Publishes(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rec: stableRec}
	p := &recordingPublisher{}
	svc, m := newTestService(t, src, nil, p)

	for i := 0; i < 3; i++ {
		svc.Snapshot(context.Background())
	}

	p.mu.Lock()
	n := len(p.got)
	p.mu.Unlock()
	if n != 3 {
		t.Errorf("published %d snapshots, want 3", n)
	}
	if got := testutil.ToFloat64(m.PublishesTotal.WithLabelValues("success")); got != 3 {
		t.Errorf("publishes_total{success} = %v, want 3", got)
	}
}

func TestSnapshot_PublishErrorDoesNotFail(t *testing.T) {
	t.Parallel()

	src := &fakeSource{rec: stableRec}
	p := &recordingPublisher{err: errors.New("nats: connection closed")}
	svc, m := newTestService(t, src, nil, p)

	snap := svc.Snapshot(context.Background())
	if snap == nil || snap.Triage.Class != ClassMinor {
		t.Fatalf("snapshot = %+v, want Minor", snap)
	}
	if got := testutil.ToFloat64(m.PublishesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("publishes_total{error} = %v, want 1", got)
	}
}

func TestService_Classify(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeSource{}, nil, nil)
	res := svc.Classify(context.Background(), Vitals{RR: f(31)})
	if res.Class != ClassImmediate {
		t.Errorf("class = %q, want Immediate", res.Class)
	}
}

func TestService_SetProfile(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	svc, m := newTestService(t, src, nil, nil)
	ctx := context.Background()

	c := svc.SetProfile(ctx, "Shock")
	if c.Archetype != vitals.ArchetypeShock || !c.Known {
		t.Errorf("change = %+v, want known shock", c)
	}
	svc.SetProfile(ctx, "mystery")

	if got := svc.Profile(ctx); got.Profile != "mystery" || got.Known {
		t.Errorf("Profile = %+v, want unknown mystery", got)
	}
	if got := testutil.ToFloat64(m.ProfileChangesTotal.WithLabelValues("shock")); got != 1 {
		t.Errorf("profile_changes_total{shock} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProfileChangesTotal.WithLabelValues("stable")); got != 1 {
		t.Errorf("profile_changes_total{stable} = %v, want 1", got)
	}
	if svc.Version() != "test-1" {
		t.Errorf("Version = %q, want test-1", svc.Version())
	}
}

func TestFromRecord(t *testing.T) {
	t.Parallel()

	v := FromRecord(shockRec)
	if v.HR == nil || *v.HR != 124 || v.TauUS == nil || *v.TauUS != 135 || v.SignalTrust == nil || *v.SignalTrust != 78 {
		t.Errorf("FromRecord = %+v", v)
	}
}

func TestSnapshot_CreatesSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	src := &fakeSource{rec: shockRec}
	src.SetProfile("Shock")
	svc, _ := newTestService(t, src, nil, nil)
	svc.Snapshot(context.Background())
	svc.Classify(context.Background(), Vitals{})

	counts := make(map[string]int)
	for _, s := range exporter.GetSpans() {
		counts[s.Name]++
		if s.Name != "vitals.snapshot" {
			continue
		}
		attrs := make(map[string]any)
		for _, a := range s.Attributes {
			attrs[string(a.Key)] = a.Value.AsInterface()
		}
		if attrs["triageq.triage.class"] != "Immediate" {
			t.Errorf("triageq.triage.class = %v, want Immediate", attrs["triageq.triage.class"])
		}
		if attrs["triageq.profile"] != "Shock" {
			t.Errorf("triageq.profile = %v, want Shock", attrs["triageq.profile"])
		}
		var escalated bool
		for _, ev := range s.Events {
			if ev.Name == "triage.escalated" {
				escalated = true
			}
		}
		if !escalated {
			t.Error("expected triage.escalated event on first Immediate snapshot")
		}
	}
	if counts["vitals.snapshot"] != 1 {
		t.Errorf("vitals.snapshot spans = %d, want 1", counts["vitals.snapshot"])
	}
	if counts["triage.classify"] != 1 {
		t.Errorf("triage.classify spans = %d, want 1", counts["triage.classify"])
	}
}
