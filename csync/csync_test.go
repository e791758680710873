package csync_test

import (
	"testing"

	"interleave"
	"interleave/csync"
	"interleave/event"
	"interleave/explorer"
	"interleave/report"
	"interleave/task"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func explore(t *testing.T, body func(*task.T)) *report.Report {
	t.Helper()
	r, err := interleave.Explore(body, interleave.Workers(1))
	require.NoError(t, err)
	return r
}

func TestChanIsFIFO(t *testing.T) {
	for _, capacity := range []int{0, 1, 2} {
		body := func(t *task.T) {
			ch := csync.NewChan[int](t, capacity)
			t.Spawn("producer", func(t *task.T) {
				for i := 0; i < 3; i++ {
					ch.Send(t, i)
				}
			})
			for i := 0; i < 3; i++ {
				v, ok := ch.Recv(t)
				t.Assert(ok, "channel closed")
				t.Assert(v == i, "received %d, expected %d", v, i)
			}
		}
		r := explore(t, body)
		require.Equal(t, report.StatusCompleted, r.Status, "capacity %d: %v", capacity, r.Summary())
	}
}

func TestChanBoundedSendBlocks(t *testing.T) {
	body := func(t *task.T) {
		ch := csync.NewChan[string](t, 1)
		ch.Send(t, "a")
		// The second send can only complete after a receive
		ch.Send(t, "b")
	}
	r := explore(t, body)
	require.Equal(t, report.StatusDeadlocked, r.Status)
	require.Equal(t, report.ViolationDeadlock, r.Counterexample.Violation.Kind)
}

func TestChanClose(t *testing.T) {
	body := func(t *task.T) {
		ch := csync.NewChan[int](t, 0)
		ch.Send(t, 7)
		ch.Close(t)
		v, ok := ch.Recv(t)
		t.Assert(ok && v == 7, "expected the buffered message, got %d %v", v, ok)
		v, ok = ch.Recv(t)
		t.Assert(!ok && v == 0, "expected the channel to be drained, got %d %v", v, ok)
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
}

func TestChanSendOnClosedPanics(t *testing.T) {
	body := func(t *task.T) {
		ch := csync.NewChan[int](t, 0)
		ch.Close(t)
		ch.Send(t, 1)
	}
	r := explore(t, body)
	require.Equal(t, report.StatusViolated, r.Status)
	require.Equal(t, report.ViolationPanic, r.Counterexample.Violation.Kind)
	require.Contains(t, r.Counterexample.Violation.Message, "send on closed channel")
}

func TestChanCopiesValues(t *testing.T) {
	body := func(t *task.T) {
		ch := csync.NewChan[[]int](t, 0)
		sent := []int{1, 2}
		ch.Send(t, sent)
		sent[0] = 10
		got, _ := ch.Recv(t)
		t.Assert(got[0] == 1, "the receiver observed a write made after the send")
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
}

func TestChanRejectsValuesWithoutIdentity(t *testing.T) {
	body := func(t *task.T) {
		ch := csync.NewChan[*int](t, 0)
		v := 1
		ch.Send(t, &v)
	}
	r, err := interleave.Explore(body, interleave.Workers(1))
	require.ErrorIs(t, err, interleave.ErrModelViolation)
	require.Equal(t, report.StatusError, r.Status)
}

func TestMutexExcludes(t *testing.T) {
	body := func(t *task.T) {
		mu := csync.NewMutex(t)
		inside := csync.NewVar(t, 0)
		critical := func(t *task.T) {
			mu.Lock(t)
			inside.Store(t, inside.Load(t)+1)
			t.Assert(inside.Load(t) == 1, "two tasks hold the lock")
			inside.Store(t, inside.Load(t)-1)
			mu.Unlock(t)
		}
		t.Go(critical)
		t.Go(critical)
		critical(t)
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
	// Three tasks acquire the lock in every order
	require.GreaterOrEqual(t, r.ExecutionsExplored, 6)
}

func TestMutexUnlockByOtherTask(t *testing.T) {
	body := func(t *task.T) {
		mu := csync.NewMutex(t)
		mu.Lock(t)
		t.Go(func(t *task.T) { mu.Unlock(t) }).Join(t)
	}
	_, err := interleave.Explore(body, interleave.Workers(1))
	var modelErr *task.ModelError
	require.True(t, errors.As(err, &modelErr), "expected a model error, got %v", err)
	require.Equal(t, event.KindLockRelease, modelErr.Kind)
	require.Equal(t, event.TaskId(1), modelErr.Task)
}

func TestCompareAndSwap(t *testing.T) {
	body := func(t *task.T) {
		owner := csync.NewAtomic(t, 0)
		won := csync.NewAtomic(t, 0)
		claim := func(id int) func(*task.T) {
			return func(t *task.T) {
				if owner.CompareAndSwap(t, 0, id) {
					csync.Add(t, won, 1)
				}
			}
		}
		a := t.Go(claim(1))
		b := t.Go(claim(2))
		a.Join(t)
		b.Join(t)
		t.Assert(won.Load(t) == 1, "%d tasks won", won.Load(t))
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
	require.Equal(t, 2, r.DistinctStates)
}

func TestAtomicSwap(t *testing.T) {
	body := func(t *task.T) {
		a := csync.NewAtomic(t, "first")
		old := a.Swap(t, "second")
		t.Assert(old == "first", "swap returned %q", old)
		a.Store(t, "third")
		t.Assert(a.Load(t) == "third", "load returned %q", a.Load(t))
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
}

func TestNotifyOneStoresPermit(t *testing.T) {
	body := func(t *task.T) {
		n := csync.NewNotify(t)
		n.NotifyOne(t)
		n.Wait(t)
	}
	r := explore(t, body)
	require.Equal(t, report.StatusCompleted, r.Status, r.Summary())
}

func TestNotifyPermitsDoNotAccumulate(t *testing.T) {
	body := func(t *task.T) {
		n := csync.NewNotify(t)
		n.NotifyOne(t)
		n.NotifyOne(t)
		n.Wait(t)
		n.Wait(t)
	}
	r := explore(t, body)
	require.Equal(t, report.StatusDeadlocked, r.Status, r.Summary())
}

func TestNotifyAllWakesRegisteredWaiters(t *testing.T) {
	body := func(t *task.T) {
		n := csync.NewNotify(t)
		a := t.Go(func(t *task.T) { n.Wait(t) })
		b := t.Go(func(t *task.T) { n.Wait(t) })
		t.Go(func(t *task.T) { n.NotifyAll(t) })
		a.Join(t)
		b.Join(t)
	}
	outcomes := map[explorer.Outcome]int{}
	r, err := interleave.Explore(body, interleave.Workers(1), interleave.KeepGoing(),
		interleave.WithObserver(func(ex *explorer.Execution) { outcomes[ex.Outcome]++ }))
	require.NoError(t, err)
	require.Equal(t, report.StatusDeadlocked, r.Status)
	// Both waiters registered before the notification
	require.Positive(t, outcomes[explorer.Completed])
	// A waiter registered after the notification
	require.Positive(t, outcomes[explorer.Deadlocked])
}
