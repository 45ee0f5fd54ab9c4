package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/medscribe/internal/adapters/mq/queue"
	worker "github.com/okian/medscribe/internal/adapters/mq/worker"
	model "github.com/okian/medscribe/internal/domain/model"
	"github.com/okian/medscribe/internal/domain/types"
	logging "github.com/okian/medscribe/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockTranscriber struct {
	mu      sync.Mutex
	texts   map[string]string
	errs    map[string]error
	block   chan struct{}
	started chan string
}

func newMockTranscriber() *mockTranscriber {
	return &mockTranscriber{
		texts:   make(map[string]string),
		errs:    make(map[string]error),
		started: make(chan string, 16),
	}
}

func (m *mockTranscriber) Transcribe(ctx context.Context, u types.Upload) (types.Transcript, error) {
	m.started <- u.Filename
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return types.Transcript{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[u.Filename]; ok {
		return types.Transcript{}, err
	}
	if text, ok := m.texts[u.Filename]; ok {
		return types.Transcript{Text: text}, nil
	}
	return types.Transcript{Text: "text of " + u.Filename}, nil
}

type mockCleaner struct {
	mu      sync.Mutex
	removed []string
}

func (m *mockCleaner) Remove(_ context.Context, u types.Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, u.Filename)
}

func (m *mockCleaner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.removed)
}

func job(name string, cancelled <-chan struct{}) *model.Job {
	return model.NewJob("id-"+name, types.Upload{Filename: name}, cancelled)
}

func waitResult(j *model.Job) model.Result {
	select {
	case r := <-j.Done:
		return r
	case <-time.After(2 * time.Second):
		return model.Result{Err: errors.New("timed out waiting for result")}
	}
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a running pool with two workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		tr := newMockTranscriber()
		cl := &mockCleaner{}
		pool := worker.NewPool(2, q, tr, cl)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When a job is enqueued", func() {
			j := job("visit.wav", nil)
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeNil)
			r := waitResult(j)

			convey.Convey("Then the transcript is delivered and the upload removed", func() {
				convey.So(r.Err, convey.ShouldBeNil)
				convey.So(r.Transcript.Text, convey.ShouldEqual, "text of visit.wav")
				convey.So(cl.count(), convey.ShouldEqual, 1)
				convey.So(pool.Stats().Succeeded, convey.ShouldEqual, 1)
				convey.So(pool.Stats().Workers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the transcriber fails", func() {
			boom := errors.New("engine offline")
			tr.errs["bad.wav"] = boom
			j := job("bad.wav", nil)
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeNil)
			r := waitResult(j)

			convey.Convey("Then the error is delivered and the upload still removed", func() {
				convey.So(r.Err, convey.ShouldEqual, boom)
				convey.So(cl.count(), convey.ShouldEqual, 1)
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When many jobs are enqueued", func() {
			jobs := make([]*model.Job, 6)
			for i := range jobs {
				jobs[i] = job(string(rune('a'+i))+".wav", nil)
				convey.So(q.Enqueue(ctx, jobs[i]), convey.ShouldBeNil)
			}

			convey.Convey("Then every job gets its own result", func() {
				for _, j := range jobs {
					r := waitResult(j)
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Transcript.Text, convey.ShouldEqual, "text of "+j.Upload.Filename)
				}
				convey.So(cl.count(), convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the caller cancels while the job is running", func() {
			tr.block = make(chan struct{})
			gone := make(chan struct{})
			j := job("slow.wav", gone)
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeNil)
			<-tr.started
			close(gone)
			r := waitResult(j)

			convey.Convey("Then the transcription is cancelled and the upload removed", func() {
				convey.So(errors.Is(r.Err, context.Canceled), convey.ShouldBeTrue)
				convey.So(cl.count(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a job whose caller left before it was picked up", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		tr := newMockTranscriber()
		cl := &mockCleaner{}
		gone := make(chan struct{})
		close(gone)
		j := job("late.wav", gone)
		convey.So(q.Enqueue(context.Background(), j), convey.ShouldBeNil)

		pool := worker.NewPool(1, q, tr, cl)
		pool.Start(context.Background())
		r := waitResult(j)

		convey.So(errors.Is(r.Err, worker.ErrAbandoned), convey.ShouldBeTrue)
		convey.So(cl.count(), convey.ShouldEqual, 1)
		convey.So(len(tr.started), convey.ShouldEqual, 0)
		convey.So(pool.Stats().Abandoned, convey.ShouldEqual, 1)
		convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
	})
}

func TestPoolShutdown(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool with queued work", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		tr := newMockTranscriber()
		cl := &mockCleaner{}
		pool := worker.NewPool(1, q, tr, cl)

		j1, j2 := job("one.wav", nil), job("two.wav", nil)
		convey.So(q.Enqueue(context.Background(), j1), convey.ShouldBeNil)
		convey.So(q.Enqueue(context.Background(), j2), convey.ShouldBeNil)
		pool.Start(context.Background())

		convey.Convey("When shutting down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then queued jobs are drained before workers stop", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(waitResult(j1).Err, convey.ShouldBeNil)
				convey.So(waitResult(j2).Err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(errors.Is(q.Enqueue(context.Background(), job("late.wav", nil)), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a worker stuck on a job", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		tr := newMockTranscriber()
		tr.block = make(chan struct{})
		cl := &mockCleaner{}
		pool := worker.NewPool(1, q, tr, cl)
		pool.Start(context.Background())

		j := job("stuck.wav", nil)
		convey.So(q.Enqueue(context.Background(), j), convey.ShouldBeNil)
		<-tr.started

		convey.Convey("When the shutdown deadline passes", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then shutdown reports the timeout and the job is cancelled", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(waitResult(j).Err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewPoolDefaults(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockTranscriber(), &mockCleaner{})

		convey.Convey("Then the default worker count is used", func() {
			convey.So(pool.Stats().Workers, convey.ShouldEqual, 2)
		})
	})
}
