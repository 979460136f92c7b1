package controller

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/findings"
)

// Action is a user action on a finding.
type Action string

const (
	ActionResolve    Action = "resolve"
	ActionDismiss    Action = "dismiss"
	ActionDispatch   Action = "dispatch"
	ActionFalseAlarm Action = "false-alarm"
)

// ParseAction accepts the canonical names and underscore variants.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	switch a {
	case ActionResolve, ActionDismiss, ActionDispatch, ActionFalseAlarm:
		return a, nil
	}
	return "", analysis.Errorf(analysis.ErrConfiguration, "finding action", "unknown action %q", s)
}

// Act applies a to the finding id. Dismiss returns a zero Finding.
func (v *View) Act(id string, a Action) (findings.Finding, error) {
	switch a {
	case ActionResolve:
		return v.history.Resolve(id)
	case ActionDispatch:
		return v.history.Dispatch(id)
	case ActionFalseAlarm:
		return v.history.MarkFalseAlarm(id)
	case ActionDismiss:
		return findings.Finding{}, v.history.Dismiss(id)
	}
	return findings.Finding{}, analysis.Errorf(analysis.ErrConfiguration, "finding action", "unknown action %q", a)
}

// Registry holds one view per text kind.
type Registry struct {
	views map[analysis.Kind]*View
	order []analysis.Kind
}

// NewRegistry instantiates the generic view for every media-driven text kind.
func NewRegistry(svc Analyzer, log *zap.Logger, opts Options) *Registry {
	r := &Registry{views: make(map[analysis.Kind]*View)}
	for _, spec := range analysis.Specs() {
		if spec.Output != analysis.OutputText || spec.MinMedia == 0 {
			continue
		}
		desc, _ := DescriptorFor(spec.Kind)
		r.views[spec.Kind] = NewView(desc, svc, log, opts)
		r.order = append(r.order, spec.Kind)
	}
	return r
}

// View looks up the view of kind.
func (r *Registry) View(kind analysis.Kind) (*View, error) {
	v, ok := r.views[kind]
	if !ok {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "view", "%s has no view", kind)
	}
	return v, nil
}

// Kinds lists the registered views in dashboard order.
func (r *Registry) Kinds() []analysis.Kind {
	return append([]analysis.Kind(nil), r.order...)
}

// Navigator tracks the active view. It owns no business state.
type Navigator struct {
	reg *Registry
	log *zap.Logger

	mu     sync.Mutex
	active analysis.Kind
}

// NewNavigator starts on the dashboard.
func NewNavigator(reg *Registry, log *zap.Logger) *Navigator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Navigator{reg: reg, log: log.Named("navigator"), active: analysis.KindBusinessInsights}
}

// Active is the kind currently on screen.
func (n *Navigator) Active() analysis.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Switch makes kind active and abandons any analysis of the previous view.
// Kinds without a registered view (dashboard, inventory, marketing, support)
// are valid targets.
func (n *Navigator) Switch(kind analysis.Kind) error {
	if _, err := analysis.SpecFor(kind); err != nil {
		return err
	}
	n.mu.Lock()
	prev := n.active
	n.active = kind
	n.mu.Unlock()

	if prev == kind {
		return nil
	}
	if v, err := n.reg.View(prev); err == nil && v.Cancel() {
		n.log.Info("left view with analysis in flight", zap.String("from", prev.String()), zap.String("to", kind.String()))
	}
	return nil
}
