package platformsync

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/projection"
	"github.com/edusync/platform-sync/pkg/logger"
	"github.com/edusync/platform-sync/pkg/metrics"
)

// RecordStore is the part of the relational store the orchestrator reads.
type RecordStore interface {
	UserLoader
	LoadPlatform(ctx context.Context, id int64) (*models.Platform, error)
	ListPlatformIDs(ctx context.Context) ([]int64, error)
}

// DocumentStore is the projection store the orchestrator writes.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *projection.PlatformDocument) error
	DeleteByID(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
}

// Orchestrator rebuilds or removes platform documents after business mutations.
// It runs synchronously on the caller's goroutine and takes no locks; two
// overlapping syncs of one platform resolve last-write-wins.
type Orchestrator struct {
	records RecordStore
	docs    DocumentStore
	builder *Builder
	timeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds every single-platform sync or delete. Zero means no bound
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func NewOrchestrator(records RecordStore, docs DocumentStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{records: records, docs: docs, builder: NewBuilder(records)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// Sync reloads the platform, rebuilds its document and replaces the stored one.
// A platform that no longer exists is nothing to sync.
func (o *Orchestrator) Sync(ctx context.Context, platformID int64) error {
	start := time.Now()
	defer func() { metrics.SyncDuration.WithLabelValues(string(OpUpsert)).Observe(time.Since(start).Seconds()) }()

	ctx, cancel := o.stepContext(ctx)
	defer cancel()

	p, err := o.records.LoadPlatform(ctx, platformID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			logger.Debugf("sync: platform %d vanished, nothing to sync", platformID)
			metrics.SyncTotal.WithLabelValues(string(OpUpsert), "skipped").Inc()
			return nil
		}
		return o.fail(platformID, OpLoad, err)
	}

	doc, err := o.builder.Build(ctx, p)
	if err != nil {
		return o.fail(platformID, OpBuild, err)
	}
	if err := o.docs.Upsert(ctx, doc); err != nil {
		return o.fail(platformID, OpUpsert, err)
	}

	metrics.SyncTotal.WithLabelValues(string(OpUpsert), "ok").Inc()
	logger.Debugf("sync: platform %d upserted with %d course(s)", platformID, len(doc.Courses))
	return nil
}

// Delete removes the platform's document. An absent document is not an error.
func (o *Orchestrator) Delete(ctx context.Context, platformID int64) error {
	return o.deleteDocument(ctx, platformID, "platform_deleted")
}

func (o *Orchestrator) deleteDocument(ctx context.Context, platformID int64, reason string) error {
	start := time.Now()
	defer func() { metrics.SyncDuration.WithLabelValues(string(OpDelete)).Observe(time.Since(start).Seconds()) }()

	ctx, cancel := o.stepContext(ctx)
	defer cancel()

	if err := o.docs.DeleteByID(ctx, projection.DocumentID(platformID)); err != nil {
		return o.fail(platformID, OpDelete, err)
	}
	metrics.SyncTotal.WithLabelValues(string(OpDelete), "ok").Inc()
	metrics.DocumentsDeleted.WithLabelValues(reason).Inc()
	logger.Debugf("sync: platform %d document removed", platformID)
	return nil
}

// SyncAffectedByUser syncs every distinct platform owning one of the user's
// current courses.
func (o *Orchestrator) SyncAffectedByUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return nil
	}
	return o.SyncPlatforms(ctx, AffectedPlatformIDs(u.Courses))
}

// SyncAffectedByCourses syncs every distinct platform owning one of courses.
// For enrollment replacement pass the union of the old and new course sets so
// a platform that only lost an enrollee is synced too.
func (o *Orchestrator) SyncAffectedByCourses(ctx context.Context, courses []models.Course) error {
	return o.SyncPlatforms(ctx, AffectedPlatformIDs(courses))
}

// SyncPlatforms syncs each distinct id once, in ascending order. A failure does
// not stop the remaining platforms; all failures come back as a *BatchError.
func (o *Orchestrator) SyncPlatforms(ctx context.Context, ids []int64) error {
	var failures []*SyncError
	for _, id := range dedupe(ids) {
		if err := o.Sync(ctx, id); err != nil {
			var se *SyncError
			if !errors.As(err, &se) {
				se = &SyncError{PlatformID: id, Op: OpUpsert, Err: err}
			}
			failures = append(failures, se)
		}
	}
	if len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	return nil
}

// AffectedPlatformIDs resolves the distinct owning platforms of courses, in
// ascending order. Courses without a platform are ignored.
func AffectedPlatformIDs(courses []models.Course) []int64 {
	ids := make([]int64, 0, len(courses))
	for _, c := range courses {
		if c.PlatformID != nil {
			ids = append(ids, *c.PlatformID)
		}
	}
	return dedupe(ids)
}

// ReconcileReport summarizes a full reconcile run.
type ReconcileReport struct {
	Synced  int
	Deleted int
	Failed  []*SyncError
}

// Reconcile rebuilds every platform document and removes documents whose
// platform no longer exists. Documents are listed before platforms so a
// platform created during the run is never treated as stale.
func (o *Orchestrator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	docIDs, err := o.docs.ListIDs(ctx)
	if err != nil {
		return report, err
	}
	platformIDs, err := o.records.ListPlatformIDs(ctx)
	if err != nil {
		return report, err
	}

	live := make(map[string]struct{}, len(platformIDs))
	for _, id := range platformIDs {
		live[projection.DocumentID(id)] = struct{}{}
	}

	if err := o.SyncPlatforms(ctx, platformIDs); err != nil {
		var be *BatchError
		if !errors.As(err, &be) {
			return report, err
		}
		report.Failed = append(report.Failed, be.Failures...)
	}
	report.Synced = len(dedupe(platformIDs)) - len(report.Failed)

	for _, docID := range docIDs {
		if _, ok := live[docID]; ok {
			continue
		}
		id, perr := strconv.ParseInt(docID, 10, 64)
		if perr != nil {
			// not addressable through Delete; remove by raw key
			if err := o.docs.DeleteByID(ctx, docID); err != nil {
				logger.Warnf("reconcile: remove malformed document %q failed: %v", docID, err)
				continue
			}
			metrics.DocumentsDeleted.WithLabelValues("stale").Inc()
			report.Deleted++
			continue
		}
		if err := o.deleteDocument(ctx, id, "stale"); err != nil {
			var se *SyncError
			if errors.As(err, &se) {
				report.Failed = append(report.Failed, se)
			}
			continue
		}
		report.Deleted++
	}

	logger.Infof("reconcile: synced=%d deleted=%d failed=%d", report.Synced, report.Deleted, len(report.Failed))
	return report, nil
}

func (o *Orchestrator) fail(platformID int64, op Op, err error) error {
	metrics.SyncTotal.WithLabelValues(string(op), "error").Inc()
	logger.Warnf("sync: platform %d %s failed: %v", platformID, op, err)
	return &SyncError{PlatformID: platformID, Op: op, Err: err}
}

func dedupe(ids []int64) []int64 {
	set := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
