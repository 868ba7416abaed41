package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reelworks/stylecast/internal/models"
)

type fakeStore struct {
	mu    sync.Mutex
	queue []string
	stale int64
}

func (s *fakeStore) NextInQueue(ctx context.Context) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	return &models.Job{JobID: s.queue[0], Status: models.JobStatusInQueue}, nil
}

func (s *fakeStore) FailStaleRendering(ctx context.Context) (int64, error) {
	return s.stale, nil
}

func (s *fakeStore) pop(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 && s.queue[0] == jobID {
		s.queue = s.queue[1:]
	}
}

type fakeSet struct {
	mu      sync.Mutex
	members map[string]bool
}

func newFakeSet() *fakeSet {
	return &fakeSet{members: make(map[string]bool)}
}

func (s *fakeSet) Add(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[jobID] = true
	return nil
}

func (s *fakeSet) Remove(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, jobID)
	return nil
}

func (s *fakeSet) Size(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.members)), nil
}

// recorder tracks spawn order and the maximum concurrency observed.
type recorder struct {
	mu       sync.Mutex
	order    []string
	running  int
	peak     int
	finished chan string
}

func (r *recorder) spawn(store *fakeStore, workDuration time.Duration) SpawnFunc {
	return func(ctx context.Context, jobID string) error {
		r.mu.Lock()
		r.order = append(r.order, jobID)
		r.running++
		if r.running > r.peak {
			r.peak = r.running
		}
		r.mu.Unlock()

		time.Sleep(workDuration)
		store.pop(jobID)

		r.mu.Lock()
		r.running--
		r.mu.Unlock()
		r.finished <- jobID
		return nil
	}
}

func TestSingleWorkerFIFO(t *testing.T) {
	store := &fakeStore{queue: []string{"job-a", "job-b", "job-c"}}
	set := newFakeSet()
	rec := &recorder{finished: make(chan string, 3)}

	o := &Orchestrator{
		Jobs:     store,
		Active:   set,
		Interval: 5 * time.Millisecond,
		Spawn:    rec.spawn(store, 15*time.Millisecond),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-rec.finished:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i+1)
		}
	}
	cancel()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.peak != 1 {
		t.Errorf("peak concurrency %d, want 1", rec.peak)
	}
	want := []string{"job-a", "job-b", "job-c"}
	if len(rec.order) < 3 {
		t.Fatalf("spawn order %v too short", rec.order)
	}
	for i := range want {
		if rec.order[i] != want[i] {
			t.Errorf("spawn %d = %s, want %s", i, rec.order[i], want[i])
		}
	}
}

func TestActiveSetReleasedAfterExit(t *testing.T) {
	store := &fakeStore{queue: []string{"job-a"}}
	set := newFakeSet()
	rec := &recorder{finished: make(chan string, 1)}

	o := &Orchestrator{
		Jobs:     store,
		Active:   set,
		Interval: 5 * time.Millisecond,
		Spawn:    rec.spawn(store, 10*time.Millisecond),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	select {
	case <-rec.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never finished")
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		n, _ := set.Size(context.Background())
		if n == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("active set still has %d member(s)", n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCheckAndStartSkipsWhenBusy(t *testing.T) {
	store := &fakeStore{queue: []string{"job-b"}}
	set := newFakeSet()
	set.Add(context.Background(), "job-a")

	spawned := false
	o := &Orchestrator{
		Jobs:   store,
		Active: set,
		Spawn: func(ctx context.Context, jobID string) error {
			spawned = true
			return nil
		},
	}

	o.checkAndStart(context.Background())

	if spawned {
		t.Error("spawned a worker while one was active")
	}
}

func TestCheckAndStartEmptyQueue(t *testing.T) {
	store := &fakeStore{}
	set := newFakeSet()

	o := &Orchestrator{
		Jobs:   store,
		Active: set,
		Spawn: func(ctx context.Context, jobID string) error {
			t.Error("spawned with an empty queue")
			return nil
		},
	}

	o.checkAndStart(context.Background())

	if n, _ := set.Size(context.Background()); n != 0 {
		t.Errorf("active set size %d after empty poll", n)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	store := &fakeStore{stale: 2}
	o := &Orchestrator{Jobs: store}
	if err := o.RecoverStaleJobs(context.Background()); err != nil {
		t.Fatal(err)
	}
}
