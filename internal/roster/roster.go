package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/locshare/locshare/internal/cache"
	"github.com/locshare/locshare/pkg/core"
)

// MarkerHandle is an opaque render-layer object. The reconciler owns every
// handle it holds; renderers must not retain or mutate them outside the
// Create/Update/Remove calls.
type MarkerHandle any

// Renderer is the map surface the reconciler drives.
type Renderer interface {
	CreateMarker(pos core.Position, info core.MarkerInfo) (MarkerHandle, error)
	UpdateMarker(handle MarkerHandle, pos core.Position, info core.MarkerInfo) error
	RemoveMarker(handle MarkerHandle) error
	CenterView(pos core.Position, zoom int) error
}

// StatusKind classifies the outcome of a reconciliation pass.
type StatusKind int

const (
	StatusShowingAll StatusKind = iota
	StatusTracking
	StatusTrackingUnavailable
)

func (k StatusKind) String() string {
	switch k {
	case StatusTracking:
		return "tracking"
	case StatusTrackingUnavailable:
		return "tracking_unavailable"
	default:
		return "showing_all"
	}
}

// Status is the result of one ApplySnapshot pass. Key is set for the two
// tracking kinds and empty for StatusShowingAll.
type Status struct {
	Kind StatusKind
	Key  core.Identifier
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCenterZoom sets the zoom hint passed to CenterView when a tracked
// identifier is in view.
func WithCenterZoom(zoom int) Option {
	return func(r *Reconciler) {
		r.centerZoom = zoom
	}
}

// WithEagerFilter makes SetFilter re-reconcile immediately against the last
// seen snapshot instead of waiting for the next feed push.
func WithEagerFilter() Option {
	return func(r *Reconciler) {
		r.eagerFilter = true
	}
}

// WithLogger sets the logger used for renderer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// Reconciler diffs successive full snapshots against the currently visible
// marker set and drives the renderer so the two stay consistent. Calls to
// ApplySnapshot must be serialized by the caller; the internal mutex only
// protects reads from the metric callback and the monitor.
type Reconciler struct {
	renderer Renderer
	logger   *slog.Logger

	mu       sync.Mutex
	visible  map[core.Identifier]MarkerHandle
	filter   core.Identifier
	last     *cache.SnapshotCache
	lastStat Status
	lastDur  time.Duration

	centerZoom  int
	eagerFilter bool

	created  metric.Int64Counter
	updated  metric.Int64Counter
	removed  metric.Int64Counter
	visGauge metric.Int64ObservableGauge
}

// New creates a Reconciler driving the given renderer.
func New(renderer Renderer, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		renderer:   renderer,
		logger:     slog.Default(),
		visible:    make(map[core.Identifier]MarkerHandle),
		last:       cache.NewSnapshotCache(),
		centerZoom: 16,
	}
	for _, opt := range opts {
		opt(r)
	}

	m := meter()

	var err error

	r.created, err = m.Int64Counter(
		"roster.markers.created",
		metric.WithDescription("Markers created across all reconciliation passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}

	r.updated, err = m.Int64Counter(
		"roster.markers.updated",
		metric.WithDescription("Markers updated across all reconciliation passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating updated counter: %w", err)
	}

	r.removed, err = m.Int64Counter(
		"roster.markers.removed",
		metric.WithDescription("Markers removed across all reconciliation passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	r.visGauge, err = m.Int64ObservableGauge(
		"roster.markers.visible",
		metric.WithDescription("Markers currently visible"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating visible gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			o.ObserveInt64(r.visGauge, int64(len(r.visible)))
			return nil
		},
		r.visGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering visible callback: %w", err)
	}

	return r, nil
}

// wanted computes the set of identifiers that should be visible for the
// given snapshot under the current filter. Records without a valid position
// are excluded, never surfaced as errors.
func (r *Reconciler) wanted(snap core.Snapshot) map[core.Identifier]core.LocationRecord {
	w := make(map[core.Identifier]core.LocationRecord, len(snap))
	for id, rec := range snap {
		if r.filter != "" && id != r.filter {
			continue
		}
		if !rec.HasValidPosition() {
			continue
		}
		w[id] = rec
	}
	return w
}

// ApplySnapshot reconciles the renderer's marker set with the snapshot.
// Renderer failures are logged and the affected key dropped from the visible
// set; the pass itself never fails.
func (r *Reconciler) ApplySnapshot(snap core.Snapshot) Status {
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.last.Set(snap)
	status := r.reconcile(snap)

	r.lastStat = status
	r.lastDur = time.Since(start)

	return status
}

// reconcile runs one pass. Caller holds r.mu.
func (r *Reconciler) reconcile(snap core.Snapshot) Status {
	ctx := context.Background()
	wanted := r.wanted(snap)

	for id, handle := range r.visible {
		if _, ok := wanted[id]; ok {
			continue
		}
		if err := r.renderer.RemoveMarker(handle); err != nil {
			r.logger.Error("remove marker failed", "identifier", id, "error", err)
		}
		delete(r.visible, id)
		r.removed.Add(ctx, 1)
	}

	for id, rec := range wanted {
		pos := rec.Position()
		info := core.MarkerInfo{
			Identifier: id,
			Accuracy:   rec.Accuracy,
			Timestamp:  rec.Timestamp,
		}

		if handle, ok := r.visible[id]; ok {
			if err := r.renderer.UpdateMarker(handle, pos, info); err != nil {
				r.logger.Error("update marker failed", "identifier", id, "error", err)
			}
			r.updated.Add(ctx, 1)
			continue
		}

		handle, err := r.renderer.CreateMarker(pos, info)
		if err != nil {
			r.logger.Error("create marker failed", "identifier", id, "error", err)
			continue
		}
		r.visible[id] = handle
		r.created.Add(ctx, 1)
	}

	if r.filter != "" {
		rec, ok := wanted[r.filter]
		if !ok {
			return Status{Kind: StatusTrackingUnavailable, Key: r.filter}
		}
		if err := r.renderer.CenterView(rec.Position(), r.centerZoom); err != nil {
			r.logger.Error("center view failed", "identifier", r.filter, "error", err)
		}
		return Status{Kind: StatusTracking, Key: r.filter}
	}

	return Status{Kind: StatusShowingAll}
}

// SetFilter replaces the filter. By default the change takes effect on the
// next ApplySnapshot; with WithEagerFilter it re-reconciles immediately
// against the last seen snapshot.
func (r *Reconciler) SetFilter(id core.Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filter = id

	if !r.eagerFilter {
		return
	}
	snap, ok := r.last.Get()
	if !ok {
		return
	}

	start := time.Now()
	r.lastStat = r.reconcile(snap)
	r.lastDur = time.Since(start)
}

// Filter returns the current filter identifier, empty when showing all.
func (r *Reconciler) Filter() core.Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// VisibleCount returns the number of markers currently on the map.
func (r *Reconciler) VisibleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visible)
}

// LastStatus returns the status of the most recent reconciliation pass.
func (r *Reconciler) LastStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStat
}

// LastApplyDuration returns how long the most recent pass took.
func (r *Reconciler) LastApplyDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastDur
}
