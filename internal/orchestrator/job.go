package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// Counters is a point-in-time copy of a job's bookkeeping.
type Counters struct {
	TitleID        uuid.UUID `json:"titleId"`
	Total          int       `json:"total"`
	IdeasGenerated int       `json:"ideasGenerated"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	InFlight       int       `json:"inFlight"`
	Queued         int       `json:"queued"`
}

// Settled is the number of ideas whose image attempt has finished.
func (c Counters) Settled() int {
	return c.Completed + c.Failed
}

type workItem struct {
	index    int
	idea     types.Idea
	painting types.Painting
}

// job is the in-memory state of one generation request. Counters only move
// forward and are mutated solely by the orchestrator.
type job struct {
	titleID uuid.UUID
	userID  uuid.UUID
	total   int

	mu             sync.Mutex
	ideasGenerated int
	completed      int
	failed         int
	inFlight       int
	queue          []workItem
	settled        map[int]bool

	done chan struct{}
}

func newJob(titleID, userID uuid.UUID, total int) *job {
	return &job{
		titleID: titleID,
		userID:  userID,
		total:   total,
		settled: make(map[int]bool, total),
		done:    make(chan struct{}),
	}
}

func (j *job) addIdea(item workItem) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ideasGenerated++
	j.queue = append(j.queue, item)
}

func (j *job) pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

// take pops the head of the queue and counts it as in flight in one step,
// so an item is always either queued or in flight.
func (j *job) take() (workItem, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.queue) == 0 {
		return workItem{}, false
	}
	item := j.queue[0]
	j.queue = j.queue[1:]
	j.inFlight++
	return item, true
}

// settle records the outcome for index exactly once and reports whether it
// was the last idea of the job to settle.
func (j *job) settle(index int, ok bool) (applied, last bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.settled[index] {
		return false, false
	}
	j.settled[index] = true
	j.inFlight--
	if ok {
		j.completed++
	} else {
		j.failed++
	}
	return true, j.completed+j.failed == j.total
}

func (j *job) counters() Counters {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Counters{
		TitleID:        j.titleID,
		Total:          j.total,
		IdeasGenerated: j.ideasGenerated,
		Completed:      j.completed,
		Failed:         j.failed,
		InFlight:       j.inFlight,
		Queued:         len(j.queue),
	}
}
