package jobs

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/cache"
	"github.com/emrgen/qda/internal/store"
)

const orphanBatchSize = 500

var _ CronJob = (*OrphanSweeper)(nil)

// OrphanSweeper deletes selections whose code was removed by a writer that
// did not cascade, and drops the cached segments of the touched sources.
type OrphanSweeper struct {
	store    store.Store
	cache    cache.SegmentCache
	schedule string
	timeout  time.Duration
}

func NewOrphanSweeper(st store.Store, segments cache.SegmentCache, schedule string) *OrphanSweeper {
	if segments == nil {
		segments = cache.NopSegmentCache{}
	}
	return &OrphanSweeper{
		store:    st,
		cache:    segments,
		schedule: schedule,
		timeout:  time.Minute,
	}
}

func (o *OrphanSweeper) Name() string {
	return "orphan_sweeper"
}

func (o *OrphanSweeper) Schedule() string {
	return o.schedule
}

func (o *OrphanSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	n, err := o.Sweep(ctx)
	if err != nil {
		logrus.Errorf("orphan sweep failed after %d selections: %v", n, err)
		return
	}
	if n > 0 {
		logrus.Infof("removed %d orphan selections", n)
	}
}

// Sweep removes orphan selections in batches and returns how many were removed.
func (o *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	sources := mapset.NewThreadUnsafeSet[uuid.UUID]()
	defer func() {
		if sources.Cardinality() == 0 {
			return
		}
		if err := o.cache.Invalidate(ctx, sources.ToSlice()...); err != nil {
			logrus.Warnf("failed to invalidate segments after orphan sweep: %v", err)
		}
	}()

	for {
		var removed int
		err := o.store.Transaction(ctx, func(tx store.Store) error {
			orphans, err := tx.ListOrphanSelections(ctx, orphanBatchSize)
			if err != nil {
				return err
			}

			ids := make([]uuid.UUID, 0, len(orphans))
			for _, sel := range orphans {
				id, err := uuid.Parse(sel.ID)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				if sourceID, err := uuid.Parse(sel.SourceID); err == nil {
					sources.Add(sourceID)
				}
			}

			removed = len(ids)
			return tx.DeleteSelections(ctx, ids)
		})
		if err != nil {
			return total, err
		}

		total += removed
		if removed < orphanBatchSize {
			return total, nil
		}
	}
}
