package inventory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleClusterRunsOnStart(t *testing.T) {
	var syncs int64
	e := newEngine(t, staticDriver{})
	e.driver = syncCountingDriver{count: &syncs}

	require.NoError(t, e.ScheduleCluster(ClusterConfig{
		ID:         "c1",
		Schedule:   "0 0 0 1 1 *",
		RunOnStart: true,
	}))
	e.StartScheduler()
	defer e.StopScheduler()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&syncs) >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestUnscheduleRemovesClusterJob(t *testing.T) {
	e := newEngine(t, staticDriver{})
	require.NoError(t, e.ScheduleCluster(ClusterConfig{ID: "c1", Schedule: "0 0 0 1 1 *"}))
	e.Unschedule("c1")
	assert.NotContains(t, e.cron.Names(), "cluster:c1")
}

type syncCountingDriver struct {
	count *int64
}

func (d syncCountingDriver) Discover(ctx context.Context, clusterID string) (<-chan Item, <-chan error) {
	atomic.AddInt64(d.count, 1)
	items := make(chan Item)
	errs := make(chan error)
	close(items)
	close(errs)
	return items, errs
}
