package actor

import (
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// The queue actor mailbox carries one of these message types. Every message
// owns its own reply channel; the run loop handles exactly one message at a
// time, which gives callers the guarantee that messages to a given queue
// actor are processed in the order received.

type enqueueMsg struct {
	job   *job.Job
	reply chan<- enqueueReply
}

type enqueueReply struct {
	job *job.Job
	err error
}

type requestJobMsg struct {
	workerID string
	reply    chan<- requestJobReply
}

type requestJobReply struct {
	job *job.Job // nil if none available
}

type jobCompletedMsg struct {
	jobID    job.ID
	workerID string
	result   job.Result
	at       time.Time
	reply    chan<- struct{}
}

type jobFailedMsg struct {
	jobID    job.ID
	workerID string
	errMsg   string
	at       time.Time
	reply    chan<- struct{}
}

type cancelJobMsg struct {
	jobID  job.ID
	reason string
	reply  chan<- error
}

type retryJobMsg struct {
	jobID job.ID
	reply chan<- error
}

type getJobMsg struct {
	jobID job.ID
	reply chan<- getJobReply
}

type getJobReply struct {
	job *job.Job
	ok  bool
}

type listJobsMsg struct {
	reply chan<- []*job.Job
}

type getInfoMsg struct {
	reply chan<- *job.Queue
}

type getStatsMsg struct {
	reply chan<- job.QueueStats
}

type pauseMsg struct {
	reply chan<- error
}

type resumeMsg struct {
	reply chan<- error
}

type shutdownMsg struct {
	reply chan<- struct{}
}

type tickMsg struct {
	at    time.Time
	reply chan<- struct{}
}
