package scheduler

import (
	"math/rand"
	"sync"

	"interleave/event"
	"interleave/trace"
)

// A scheduler that randomly picks the next task from the enabled tasks.
//
// It is useful for testing a random selection of the state space when the state space is too large to perform an exhaustive search.
// It provides no guarantee that all errors have been found.
// Run k draws its decisions from the k-th value of a generator seeded with the seed, so the runs are reproducible from the seed alone.
type Random struct {
	sync.Mutex
	seed int64
	rand *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{
		seed: seed,
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) Seed() int64 {
	return r.seed
}

func (r *Random) GetRunScheduler() RunScheduler {
	return &randomRun{r: r}
}

func (r *Random) nextSeed() int64 {
	r.Lock()
	defer r.Unlock()
	return r.rand.Int63()
}

type randomRun struct {
	r    *Random
	rand *rand.Rand
}

func (rs *randomRun) StartRun() error {
	rs.rand = rand.New(rand.NewSource(rs.r.nextSeed()))
	return nil
}

func (rs *randomRun) Next(state RunState) (event.TaskId, error) {
	return state.Enabled[rs.rand.Intn(len(state.Enabled))].Task, nil
}

func (rs *randomRun) Choose(task event.TaskId, n int) (int, error) {
	return rs.rand.Intn(n), nil
}

func (rs *randomRun) EndRun(tr *trace.Trace) error {
	return nil
}
