package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/regimerisk/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int // 처음 N 번 실패
	err      error
	calls    int
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	j.calls++
	if j.calls <= j.failures {
		return j.err
	}
	return nil
}

func newScheduler() *Scheduler {
	return New(logger.Nop(), WithRetry(2, 0), WithTimeout(time.Second))
}

func TestRunNow_RetriesUntilSuccess(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2, err: errors.New("db down")}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow("flaky")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.Error)
}

func TestRunNow_GivesUp(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 10, err: errors.New("db down")}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow("broken")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "db down", res.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.Equal(t, "db down", stats.LastError)
}

func TestRunNow_PermanentErrorIsNotRetried(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "no-data", schedule: "@daily", failures: 10, err: Permanent(errors.New("no rows"))}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunNow("no-data")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, job.calls)
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

func TestAddRemoveJob(t *testing.T) {
	s := newScheduler()
	job := &fakeJob{name: "a", schedule: "0 30 6 * * 1-5"}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate")
	assert.Error(t, s.AddJob(&fakeJob{name: "bad", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("a"))

	_, err := s.RunNow("a")
	assert.Error(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())
	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Nil(t, h.LastWith(true))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{Success: i%4 != 0, StartTime: base.Add(time.Duration(i) * time.Hour)})
	}
	assert.Len(t, h.Results, 100)
	assert.Equal(t, 25, h.Failures())
	assert.InDelta(t, 0.75, h.SuccessRate(), 1e-12)

	// i=119 성공, i=116 이 마지막 실패
	assert.Equal(t, base.Add(119*time.Hour), *h.LastWith(true))
	assert.Equal(t, base.Add(116*time.Hour), *h.LastWith(false))
	assert.Equal(t, 0, h.ConsecutiveFailures())

	h.AddResult(JobResult{Success: false})
	h.AddResult(JobResult{Success: false})
	assert.Equal(t, 2, h.ConsecutiveFailures())
}
