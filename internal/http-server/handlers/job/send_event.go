package job

import "go-crashout/internal/http-server/handlers/event"

type SendEventJob struct {
	EventMessage event.Message
	Broadcaster  event.Broadcaster
}

func (job *SendEventJob) Execute() {
	if job.Broadcaster == nil {
		return
	}

	// Best effort: the broadcaster logs its own failures.
	_ = job.Broadcaster.TriggerEvent(job.EventMessage)
}
