package payroll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	calls atomic.Int32
	err   error
}

func (j *countingJob) RecomputeStalePeriods(ctx context.Context) (int, error) {
	j.calls.Add(1)
	return 1, j.err
}

func TestScheduler(t *testing.T) {
	t.Run("should run immediately and on every tick", func(t *testing.T) {
		job := &countingJob{}
		scheduler := NewScheduler(job, 10*time.Millisecond)

		scheduler.Start()
		assert.Eventually(t, func() bool { return job.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		scheduler.Stop()

		stopped := job.calls.Load()
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, stopped, job.calls.Load())
	})

	t.Run("should keep running when the job fails", func(t *testing.T) {
		job := &countingJob{err: errors.New("database unavailable")}
		scheduler := NewScheduler(job, 10*time.Millisecond)

		scheduler.Start()
		defer scheduler.Stop()

		assert.Eventually(t, func() bool { return job.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("should ignore repeated start and stop", func(t *testing.T) {
		job := &countingJob{}
		scheduler := NewScheduler(job, time.Hour)

		scheduler.Start()
		scheduler.Start()
		assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		scheduler.Stop()
		scheduler.Stop()

		assert.Equal(t, int32(1), job.calls.Load())
	})
}
