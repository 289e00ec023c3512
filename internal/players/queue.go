package players

import "github.com/google/uuid"

// Queue is the FIFO rotation of participants waiting to draw. It is owned by a
// single session engine and is not safe for concurrent use.
type Queue struct {
	order []uuid.UUID
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends id to the tail. Already queued ids are rejected.
func (q *Queue) Enqueue(id uuid.UUID) bool {
	if q.Contains(id) {
		return false
	}
	q.order = append(q.order, id)
	return true
}

// Dequeue removes and returns the head.
func (q *Queue) Dequeue() (uuid.UUID, bool) {
	if len(q.order) == 0 {
		return uuid.Nil, false
	}
	head := q.order[0]
	q.order[0] = uuid.Nil
	q.order = q.order[1:]
	return head, true
}

// Remove deletes id wherever it sits in the queue.
func (q *Queue) Remove(id uuid.UUID) bool {
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Contains(id uuid.UUID) bool {
	for _, v := range q.order {
		if v == id {
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	return len(q.order)
}
