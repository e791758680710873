package explorer

import (
	"context"
	"testing"

	"interleave/config"
	"interleave/csync"
	"interleave/report"
	"interleave/scheduler"
	"interleave/stateManager"
	"interleave/task"
)

// Two tasks write different values to the same variable
func twoWrites(t *task.T) {
	x := csync.NewVar(t, 0)
	a := t.Go(func(t *task.T) { x.Store(t, 1) })
	b := t.Go(func(t *task.T) { x.Store(t, 2) })
	a.Join(t)
	b.Join(t)
}

// Two tasks increment a counter without synchronisation
func lostUpdate(t *task.T) {
	counter := csync.NewVar(t, 0)
	inc := func(t *task.T) {
		v := counter.Load(t)
		counter.Store(t, v+1)
	}
	a := t.Spawn("inc-a", inc)
	b := t.Spawn("inc-b", inc)
	a.Join(t)
	b.Join(t)
	v := counter.Load(t)
	t.Assert(v == 2, "counter is %d", v)
}

// Two tasks increment a counter while holding a lock
func lockedCounter(t *task.T) {
	counter := csync.NewVar(t, 0)
	mu := csync.NewMutex(t)
	inc := func(t *task.T) {
		mu.Lock(t)
		counter.Store(t, counter.Load(t)+1)
		mu.Unlock(t)
	}
	a := t.Go(inc)
	b := t.Go(inc)
	a.Join(t)
	b.Join(t)
	v := counter.Load(t)
	t.Assert(v == 2, "counter is %d", v)
}

// Two tasks acquire two locks in opposite order
func lockOrder(t *task.T) {
	m1 := csync.NewMutex(t)
	m2 := csync.NewMutex(t)
	a := t.Spawn("first", func(t *task.T) {
		m1.Lock(t)
		m2.Lock(t)
		m2.Unlock(t)
		m1.Unlock(t)
	})
	b := t.Spawn("second", func(t *task.T) {
		m2.Lock(t)
		m1.Lock(t)
		m1.Unlock(t)
		m2.Unlock(t)
	})
	a.Join(t)
	b.Join(t)
}

// A producer sends two messages and closes the channel, a consumer receives until the channel is closed
func message(t *task.T) {
	ch := csync.NewChan[int](t, 0)
	t.Spawn("producer", func(t *task.T) {
		ch.Send(t, 1)
		ch.Send(t, 2)
		ch.Close(t)
	})
	consumer := t.Spawn("consumer", func(t *task.T) {
		expected := 1
		for {
			v, ok := ch.Recv(t)
			if !ok {
				break
			}
			t.Assert(v == expected, "received %d, expected %d", v, expected)
			expected++
		}
		t.Assert(expected == 3, "received %d messages", expected-1)
	})
	consumer.Join(t)
}

func newStateManager() *stateManager.TreeStateManager {
	return stateManager.NewTreeStateManager(stateManager.NewMemoryStore(), stateManager.NewMemoryStore())
}

// Explore the program with a single worker, applying modify to the default configuration
func explore(t *testing.T, sch scheduler.GlobalScheduler, body func(*task.T), modify func(*config.Config), settings Settings) (*report.Report, error) {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 1
	if modify != nil {
		modify(&cfg)
	}
	e := NewExplorer(sch, newStateManager(), cfg, settings)
	return e.Explore(context.Background(), body)
}

func exploreDPOR(t *testing.T, body func(*task.T)) *report.Report {
	t.Helper()
	r, err := explore(t, scheduler.NewDPOR(), body, nil, Settings{})
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got %v", err)
	}
	return r
}
