package jobs

import (
	"context"
)

const ReconcileJobName = "stats-reconciler"

type Reconciler interface {
	Reconcile(ctx context.Context) (int64, error)
}

// ReconcileJob rebuilds the leaderboard cache from the ledger. The ledger stays the
// source of truth; this only repairs drift in member_stats.
type ReconcileJob struct {
	reconciler Reconciler
	schedule   string
}

func NewReconcileJob(reconciler Reconciler, schedule string) *ReconcileJob {
	return &ReconcileJob{reconciler: reconciler, schedule: schedule}
}

func (j *ReconcileJob) Name() string     { return ReconcileJobName }
func (j *ReconcileJob) Schedule() string { return j.schedule }

func (j *ReconcileJob) Run(ctx context.Context) error {
	_, err := j.reconciler.Reconcile(ctx)
	return err
}
