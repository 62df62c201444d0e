package inventory

import (
	"context"

	"github.com/evalgo-org/objectdb/objlog"
)

const globalScheduleName = "__global__"

// ScheduleCluster registers cc and, if cc.Schedule is set, a cron job
// that runs Sync for that cluster alone.
func (e *Engine) ScheduleCluster(cc ClusterConfig) error {
	e.RegisterCluster(cc)
	if cc.Schedule == "" {
		return nil
	}
	name := "cluster:" + cc.ID
	return e.cron.Add(name, cc.Schedule, cc.RunOnStart, func() {
		e.runScheduled(cc.ID)
	})
}

// ScheduleGlobal registers a cron job that syncs every registered
// cluster in turn on the given spec.
func (e *Engine) ScheduleGlobal(spec string, runOnStart bool) error {
	return e.cron.Add(globalScheduleName, spec, runOnStart, func() {
		for id := range e.clusters {
			e.runScheduled(id)
		}
	})
}

func (e *Engine) runScheduled(clusterID string) {
	if _, err := e.Sync(context.Background(), clusterID); err != nil {
		objlog.For("inventory").WithError(err).WithField("cluster", clusterID).Error("scheduled sync failed")
	}
}

// StartScheduler starts every registered cron schedule.
func (e *Engine) StartScheduler() { e.cron.Start() }

// StopScheduler stops all schedules cleanly, waiting for any in-flight
// sync triggered by a cron tick to finish its cron callback. A
// runOnStart sync still in progress is not waited for.
func (e *Engine) StopScheduler() { e.cron.Stop() }

// Unschedule removes a previously registered per-cluster schedule.
func (e *Engine) Unschedule(clusterID string) {
	e.cron.Remove("cluster:" + clusterID)
}
