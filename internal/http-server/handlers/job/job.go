package job

import (
	"time"
)

// Job is a unit of deferred work: a store write, an event fan-out, an
// aggregate bump. Jobs run off the round's serialized section so a slow
// store or transport can never stall the multiplier clock.
type Job interface {
	Execute()
}

type JobQueue chan Job

var Queue JobQueue

func Init(buffer int) {
	Queue = make(JobQueue, buffer)
}

func Dispatch(job Job, delay time.Duration) {
	go func() {
		if delay > 0 {
			<-time.After(delay)
		}
		Queue <- job
	}()
}

type WorkerPool struct {
	workers []Worker
}

func NewWorkerPool(size int, queue JobQueue) *WorkerPool {
	workers := make([]Worker, size)
	for i := 0; i < size; i++ {
		workers[i] = NewWorker(queue)
	}
	return &WorkerPool{workers}
}

func (p *WorkerPool) Start() {
	for _, worker := range p.workers {
		worker.Start()
	}
}

type Worker struct {
	jobQueue JobQueue
}

func NewWorker(jobQueue JobQueue) Worker {
	return Worker{jobQueue}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobQueue {
			job.Execute()
		}
	}()
}
