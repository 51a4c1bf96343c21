package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extrace/notify/internal/pkg/distlock"
)

const wait = 2 * time.Second

func countingJob(name string, c Cadence, n *int32) Job {
	return Job{Name: name, Cadence: c, Run: func(ctx context.Context, _ time.Time) error {
		atomic.AddInt32(n, 1)
		return nil
	}}
}

func TestScheduler_FiresOnCadence(t *testing.T) {
	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	s := New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)}, WithClock(clock))

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return clock.pending() == 1 }, wait, time.Millisecond)

	st := s.Status()
	require.Len(t, st.Jobs, 1)
	require.NotNil(t, st.Jobs[0].NextRun)
	assert.Equal(t, utc(2024, time.March, 18, 9, 0), *st.Jobs[0].NextRun)

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, wait, time.Millisecond)
	require.Eventually(t, func() bool {
		st := s.Status()
		return st.Jobs[0].Runs == 1 && st.Jobs[0].NextRun != nil &&
			st.Jobs[0].NextRun.Equal(utc(2024, time.March, 19, 9, 0))
	}, wait, time.Millisecond)
}

func TestScheduler_NoFireAfterStop(t *testing.T) {
	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	s := New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)}, WithClock(clock))

	s.Start()
	require.Eventually(t, func() bool { return clock.pending() == 1 }, wait, time.Millisecond)
	s.Stop()
	assert.False(t, s.Running())

	clock.Advance(72 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	assert.Nil(t, s.Status().Jobs[0].NextRun)
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	s := New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)}, WithClock(clock))

	s.Start()
	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return clock.pending() >= 1 }, wait, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, clock.pending())

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, wait, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestScheduler_StopWhenStoppedIsNoop(t *testing.T) {
	s := New(nil)
	s.Stop()
	assert.False(t, s.Running())
}

func TestScheduler_StartStopStart(t *testing.T) {
	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	s := New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)}, WithClock(clock))

	s.Start()
	s.Stop()
	s.Start()
	defer s.Stop()
	assert.True(t, s.Running())
	require.Eventually(t, func() bool { return clock.pending() == 2 }, wait, time.Millisecond)

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, wait, time.Millisecond)
}

func TestScheduler_TriggerRunsImmediately(t *testing.T) {
	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var got time.Time
	s := New([]Job{{Name: "job", Cadence: Cadence{Kind: Daily}, Run: func(_ context.Context, fire time.Time) error {
		got = fire
		return errors.New("partial")
	}}}, WithClock(clock))

	err := s.Trigger(context.Background(), "job")
	require.EqualError(t, err, "partial")
	assert.Equal(t, clock.Now(), got)

	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 1, st.Jobs[0].Runs)
	assert.Equal(t, "partial", st.Jobs[0].LastError)
	require.NotNil(t, st.Jobs[0].LastRun)
}

func TestScheduler_TriggerUnknown(t *testing.T) {
	s := New(nil)
	err := s.Trigger(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownTrigger))
}

func TestScheduler_TriggerRecoversPanic(t *testing.T) {
	s := New([]Job{{Name: "boom", Cadence: Cadence{Kind: Daily}, Run: func(context.Context, time.Time) error {
		panic("kaput")
	}}})
	err := s.Trigger(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")
}

func TestScheduler_SkipsFiringWhenLockHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	fire := utc(2024, time.March, 18, 9, 0)
	held := distlock.NewRedisLock(client, "scheduler:daily:"+strconv.FormatInt(fire.Unix(), 10), time.Minute)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	s := New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)},
		WithClock(clock), WithLocks(distlock.NewFactory(client, nil, time.Minute)))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return clock.pending() == 1 }, wait, time.Millisecond)
	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return s.Status().Jobs[0].Skipped == 1 }, wait, time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}

func TestScheduler_LockAllowsOneInstance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	clock := newFakeClock(utc(2024, time.March, 18, 8, 0))
	var runs int32
	locks := distlock.NewFactory(client, nil, time.Minute)
	var wg sync.WaitGroup
	instances := make([]*Scheduler, 3)
	for i := range instances {
		instances[i] = New([]Job{countingJob("daily", Cadence{Kind: Daily, Hour: 9}, &runs)},
			WithClock(clock), WithLocks(locks))
		instances[i].Start()
	}
	require.Eventually(t, func() bool { return clock.pending() == 3 }, wait, time.Millisecond)
	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return clock.pending() == 3 }, wait, time.Millisecond)

	for _, s := range instances {
		wg.Add(1)
		go func(s *Scheduler) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestScheduler_StatusListsDefaultJobs(t *testing.T) {
	s := New(DefaultJobs(JobDeps{}))
	names := make([]string, 0)
	for _, j := range s.Status().Jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{WeeklyReports, MonthlyReports, BudgetCheck, Newsletter, DailyReports}, names)
	assert.Equal(t, "Mondays at 09:00 UTC", s.Status().Jobs[0].Schedule)
	assert.Equal(t, []string{BudgetCheck, DailyReports, MonthlyReports, Newsletter, WeeklyReports}, s.JobNames())
}
