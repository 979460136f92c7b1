// Package controller drives the dashboard views: one generic state machine
// per feature kind plus a navigator that tracks the active view.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/application"
	"github.com/bryanwahyu/retailsight/internal/application/interpret"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/findings"
)

// State of a view.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Analyzer is the part of the analysis service a view needs.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

// Descriptor parameterizes the generic view for one kind.
type Descriptor struct {
	Spec      analysis.Spec
	Interpret func(analysis.Kind, string) []findings.Finding
	Derive    func(analysis.Kind, string) interpret.Summary
}

// DescriptorFor builds the default descriptor of kind.
func DescriptorFor(kind analysis.Kind) (Descriptor, error) {
	spec, err := analysis.SpecFor(kind)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Spec: spec, Interpret: interpret.Interpret, Derive: interpret.Derive}, nil
}

// Options shared by every view of a registry.
type Options struct {
	MaxFindings int
	Clock       application.Clock
	NewID       func() string
}

func (o Options) withDefaults() Options {
	if o.MaxFindings <= 0 {
		o.MaxFindings = findings.DefaultCapacity
	}
	if o.Clock == nil {
		o.Clock = application.SystemClock{}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// ErrReportNotFound is returned for a report ID the view no longer holds.
var ErrReportNotFound = errors.New("report not found")

// Report is one successful analysis of a view. Findings point back at it by
// ID.
type Report struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Model     string            `json:"model,omitempty"`
	Usage     analysis.Usage    `json:"usage"`
	Summary   interpret.Summary `json:"summary"`
	Timestamp time.Time         `json:"timestamp"`
}

// Snapshot is a read-only copy of a view for rendering.
type Snapshot struct {
	Kind       analysis.Kind      `json:"kind"`
	Title      string             `json:"title"`
	State      State              `json:"state"`
	Generation uint64             `json:"generation"`
	Media      []string           `json:"media,omitempty"`
	Report     *Report            `json:"report,omitempty"`
	Reports    int                `json:"retained_reports"`
	Error      string             `json:"error,omitempty"`
	Findings   []findings.Finding `json:"findings"`
	Active     int                `json:"active_findings"`
}

// View is the state machine of one dashboard view.
//
//	idle -> uploading -> analyzing -> done | failed
//	done | failed -> uploading on the next selection
//
// Only the analysis whose generation is current may write results; an
// abandoned one is discarded when it eventually returns. Reports are kept
// while a retained finding still references them.
type View struct {
	desc  Descriptor
	svc   Analyzer
	clock application.Clock
	newID func() string
	log   *zap.Logger

	mu      sync.Mutex
	state   State
	media   []analysis.MediaPayload
	gen     uint64
	cancel  context.CancelFunc
	last    *analysis.Request
	reports map[string]*Report
	latest  string
	err     error
	history *findings.Log
}

func NewView(desc Descriptor, svc Analyzer, log *zap.Logger, opts Options) *View {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if desc.Interpret == nil {
		desc.Interpret = interpret.Interpret
	}
	if desc.Derive == nil {
		desc.Derive = interpret.Derive
	}
	return &View{
		desc:    desc,
		svc:     svc,
		clock:   opts.Clock,
		newID:   opts.NewID,
		log:     log.Named("view").With(zap.String("kind", desc.Spec.Kind.String())),
		state:   StateIdle,
		reports: make(map[string]*Report),
		history: findings.NewLog(opts.MaxFindings),
	}
}

func (v *View) Kind() analysis.Kind { return v.desc.Spec.Kind }

// Findings exposes the log for user actions.
func (v *View) Findings() *findings.Log { return v.history }

// Select stores freshly encoded media and moves to uploading. A selection
// during an analysis abandons it.
func (v *View) Select(media ...analysis.MediaPayload) error {
	spec := v.desc.Spec
	if len(media) == 0 || len(media) > spec.MaxMedia {
		return analysis.Errorf(analysis.ErrConfiguration, "select", "%s takes up to %d media part(s), got %d", spec.Kind, spec.MaxMedia, len(media))
	}
	for i, m := range media {
		if len(m.Data) == 0 {
			return analysis.Errorf(analysis.ErrIO, "select", "media part %d is empty", i)
		}
		if !spec.Accepts(m.MIMEType) {
			return analysis.Errorf(analysis.ErrIO, "select", "%s does not accept %s", spec.Kind, m.MIMEType)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateAnalyzing {
		v.abandonLocked("new selection")
	}
	v.media = append([]analysis.MediaPayload(nil), media...)
	v.last = nil
	v.err = nil
	v.state = StateUploading
	return nil
}

// Analyze runs the selected media through the model and blocks until the
// result is applied or discarded.
func (v *View) Analyze(ctx context.Context, extra string) (Snapshot, error) {
	v.mu.Lock()
	if v.state == StateAnalyzing {
		v.mu.Unlock()
		return Snapshot{}, analysis.Errorf(analysis.ErrBusy, "analyze", "%s is already analyzing", v.Kind())
	}
	if v.state != StateUploading {
		v.mu.Unlock()
		return Snapshot{}, analysis.Errorf(analysis.ErrConfiguration, "analyze", "no media selected for %s", v.Kind())
	}
	req, err := analysis.NewRequest(v.Kind(), extra, v.media...)
	if err != nil {
		v.mu.Unlock()
		return Snapshot{}, err
	}
	return v.runLocked(ctx, req)
}

// Submit selects and analyzes in one step.
func (v *View) Submit(ctx context.Context, extra string, media ...analysis.MediaPayload) (Snapshot, error) {
	v.mu.Lock()
	busy := v.state == StateAnalyzing
	v.mu.Unlock()
	if busy {
		return Snapshot{}, analysis.Errorf(analysis.ErrBusy, "submit", "%s is already analyzing", v.Kind())
	}
	if err := v.Select(media...); err != nil {
		return Snapshot{}, err
	}
	return v.Analyze(ctx, extra)
}

// Retry re-runs the last request from the failed state.
func (v *View) Retry(ctx context.Context) (Snapshot, error) {
	v.mu.Lock()
	if v.state == StateAnalyzing {
		v.mu.Unlock()
		return Snapshot{}, analysis.Errorf(analysis.ErrBusy, "retry", "%s is already analyzing", v.Kind())
	}
	if v.state != StateFailed || v.last == nil {
		v.mu.Unlock()
		return Snapshot{}, analysis.Errorf(analysis.ErrConfiguration, "retry", "nothing to retry for %s", v.Kind())
	}
	return v.runLocked(ctx, *v.last)
}

// Cancel abandons the in-flight analysis, if any. The selection is kept.
func (v *View) Cancel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateAnalyzing {
		return false
	}
	v.abandonLocked("canceled")
	v.state = StateUploading
	return true
}

// Snapshot copies the view for rendering.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// runLocked must be entered with v.mu held; it releases it.
func (v *View) runLocked(ctx context.Context, req analysis.Request) (Snapshot, error) {
	v.gen++
	gen := v.gen
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.last = &req
	v.err = nil
	v.state = StateAnalyzing
	v.mu.Unlock()

	v.log.Debug("analysis started", zap.Uint64("generation", gen), zap.Int("media", len(req.Media)))
	resp, err := v.svc.Analyze(runCtx, req)
	cancel()

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		v.log.Info("discarding abandoned result", zap.Uint64("generation", gen), zap.Uint64("current", v.gen))
		return v.snapshotLocked(), analysis.Errorf(analysis.ErrCanceled, "analyze", "%s analysis %d was abandoned", v.Kind(), gen)
	}
	v.cancel = nil

	if err != nil {
		v.state = StateFailed
		v.err = err
		return v.snapshotLocked(), err
	}

	now := v.clock.Now()
	report := &Report{
		ID:        v.newID(),
		Text:      resp.Text,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Summary:   v.desc.Derive(v.Kind(), resp.Text),
		Timestamp: now,
	}
	batch := findings.Stamp(v.desc.Interpret(v.Kind(), resp.Text), now, report.ID, v.newID)
	v.history.Add(batch)
	v.reports[report.ID] = report
	v.latest = report.ID
	v.pruneReportsLocked()
	v.state = StateDone
	v.releaseLocked()
	v.log.Info("analysis applied", zap.Uint64("generation", gen), zap.Int("findings", len(batch)))
	return v.snapshotLocked(), nil
}

// Report returns a retained report by ID.
func (v *View) Report(id string) (Report, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("%s report %s: %w", v.Kind(), id, ErrReportNotFound)
	}
	return *r, nil
}

// pruneReportsLocked drops reports no retained finding points at. The latest
// report stays even when it produced no findings.
func (v *View) pruneReportsLocked() {
	refs := v.history.ReportIDs()
	for id := range v.reports {
		if _, ok := refs[id]; !ok && id != v.latest {
			delete(v.reports, id)
		}
	}
}

func (v *View) abandonLocked(reason string) {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	v.log.Info("analysis abandoned", zap.String("reason", reason), zap.Uint64("generation", v.gen))
}

// releaseLocked drops the media buffers once a result is applied. A failed
// request keeps them for Retry.
func (v *View) releaseLocked() {
	for i := range v.media {
		v.media[i].Release()
	}
	v.media = nil
	v.last = nil
}

func (v *View) snapshotLocked() Snapshot {
	s := Snapshot{
		Kind:       v.Kind(),
		Title:      v.desc.Spec.Title,
		State:      v.state,
		Generation: v.gen,
		Findings:   v.history.List(),
		Active:     v.history.ActiveCount(),
	}
	for _, m := range v.media {
		s.Media = append(s.Media, m.MIMEType)
	}
	if r, ok := v.reports[v.latest]; ok {
		cp := *r
		s.Report = &cp
	}
	s.Reports = len(v.reports)
	if v.err != nil {
		s.Error = v.err.Error()
	}
	return s
}
