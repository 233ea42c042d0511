package job

import "github.com/google/uuid"

// ID is an opaque, globally unique, lexicographically-sortable (time-ordered)
// job identifier. It is a UUIDv7 string, giving a 128-bit, time-ordered,
// string-serialisable id for free.
type ID string

// NewID allocates a new time-ordered job ID.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system clock/rand source is broken;
		// there is no sane fallback for a job id, so surface it loudly.
		panic("jobqueue: generating job id: " + err.Error())
	}
	return ID(id.String())
}

func (id ID) String() string { return string(id) }

// QueueID is an opaque, globally unique, lexicographically-sortable identifier
// for a queue.
type QueueID string

// NewQueueID allocates a new time-ordered queue ID.
func NewQueueID() QueueID {
	id, err := uuid.NewV7()
	if err != nil {
		panic("jobqueue: generating queue id: " + err.Error())
	}
	return QueueID(id.String())
}

func (id QueueID) String() string { return string(id) }
