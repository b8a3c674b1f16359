package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/qda/internal/cache"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/compress"
	"github.com/emrgen/qda/internal/model"
	"github.com/emrgen/qda/internal/store"
	"github.com/emrgen/qda/internal/tester"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    int
	mu      sync.Mutex
}

func (b *blockingJob) Name() string { return "blocking" }

func (b *blockingJob) Run() {
	b.mu.Lock()
	b.runs++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
}

func TestTaskExecutor_SkipsRunningJob(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}, 1), release: make(chan struct{})}
	executor := NewTaskExecutor([]Job{job}, nil)

	run := executor.guard(job)
	go run()
	<-job.started

	// second invocation returns at once while the first is blocked
	run()

	close(job.release)
	assert.Eventually(t, func() bool {
		return executor.acquire(job.Name())
	}, time.Second, 10*time.Millisecond)

	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Equal(t, 1, job.runs)
}

type badSchedule struct{}

func (badSchedule) Name() string     { return "bad" }
func (badSchedule) Schedule() string { return "not a schedule" }
func (badSchedule) Run()             {}

func TestTaskExecutor_RejectsBadSchedule(t *testing.T) {
	executor := NewTaskExecutor(nil, []CronJob{badSchedule{}})
	assert.Error(t, executor.Run())
}

type fakeEvictor struct {
	maxIdle time.Duration
}

func (f *fakeEvictor) EvictIdle(maxIdle time.Duration) int {
	f.maxIdle = maxIdle
	return 3
}

func TestSessionReaper(t *testing.T) {
	evictor := &fakeEvictor{}
	reaper := NewSessionReaper(evictor, 30*time.Minute)
	reaper.Run()

	assert.Equal(t, 30*time.Minute, evictor.maxIdle)
	assert.Equal(t, "@every 1m", reaper.Schedule())
}

func TestOrphanSweeper_Sweep(t *testing.T) {
	tester.Setup()
	t.Cleanup(tester.RemoveDBFile)
	ctx := context.TODO()

	st := store.NewGormStore(tester.TestDB())
	client, server := tester.Redis(t)
	segments := cache.NewRedisSegmentCache(client, compress.NewNop(), time.Minute)

	projectID := uuid.NewString()
	source := &model.Source{ID: uuid.NewString(), ProjectID: projectID, Name: "interview", Content: "some text"}
	require.NoError(t, st.CreateSource(ctx, source))
	codebook := &model.Codebook{ID: uuid.NewString(), ProjectID: projectID, Name: "main"}
	require.NoError(t, st.CreateCodebook(ctx, codebook))
	kept := &model.Code{ID: uuid.NewString(), CodebookID: codebook.ID, Name: "kept"}
	require.NoError(t, st.CreateCode(ctx, kept))

	keptSel := &model.Selection{ID: uuid.NewString(), SourceID: source.ID, CodeID: kept.ID, Start: 0, End: 3}
	require.NoError(t, st.CreateSelection(ctx, keptSel))
	for i := 0; i < 3; i++ {
		orphan := &model.Selection{ID: uuid.NewString(), SourceID: source.ID, CodeID: uuid.NewString(), Start: i, End: i + 1}
		require.NoError(t, st.CreateSelection(ctx, orphan))
	}

	sourceID := uuid.MustParse(source.ID)
	require.NoError(t, segments.SetSegments(ctx, sourceID, []coding.Segment{{Start: 0, End: 3}}))

	sweeper := NewOrphanSweeper(st, segments, "@every 10m")
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, server.Exists("coding:segments:"+source.ID))

	rows, err := st.ListSelections(ctx, sourceID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, keptSel.ID, rows[0].ID)

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
