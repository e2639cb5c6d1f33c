package scheduler

import (
	"container/heap"
	"time"

	"github.com/siteguardhq/siteguard/internal/models"
)

// entry is one scheduled site in the due-time queue.
type entry struct {
	site  *models.Site
	due   time.Time
	index int // heap index, -1 once removed
}

// dueQueue is a min-heap of entries keyed by due time.
type dueQueue []*entry

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }

func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *dueQueue) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *dueQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// peek returns the earliest entry without removing it.
func (q dueQueue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

var _ heap.Interface = (*dueQueue)(nil)
