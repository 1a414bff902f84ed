// Package events provides an event system for pool lifecycle notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventPoolPrepared is emitted when all workers of a pool have been started
	EventPoolPrepared EventType = "pool_prepared"
	// EventPoolJoined is emitted when every worker of a pool has exited
	EventPoolJoined EventType = "pool_joined"
	// EventWorkerStarted is emitted when a worker goroutine enters its dispatch loop
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker goroutine exits after a stop signal
	EventWorkerStopped EventType = "worker_stopped"
	// EventWorkerFailed is emitted when a processor panic terminates a worker
	EventWorkerFailed EventType = "worker_failed"
	// EventRunStarted is emitted when a scenario run begins dispatching
	EventRunStarted EventType = "run_started"
	// EventRunCompleted is emitted when a scenario run has joined its pool
	EventRunCompleted EventType = "run_completed"
	// EventFaultInjected is emitted when the chaos monkey injects a fault into a processor call
	EventFaultInjected EventType = "fault_injected"
)

// Event represents a pool or run event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Workers   int    `json:"workers,omitempty"`
	Processed uint64 `json:"processed,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Fault     string `json:"fault,omitempty"`
	Delay     string `json:"delay,omitempty"`
}

// NewPoolPreparedEvent creates a pool prepared event
func NewPoolPreparedEvent(pool string, workers int) Event {
	return Event{
		Type:      EventPoolPrepared,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  -1,
		Data: EventData{
			Workers: workers,
		},
	}
}

// NewPoolJoinedEvent creates a pool joined event
func NewPoolJoinedEvent(pool string, processed uint64) Event {
	return Event{
		Type:      EventPoolJoined,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  -1,
		Data: EventData{
			Processed: processed,
		},
	}
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(pool string, workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent creates a worker stopped event
func NewWorkerStoppedEvent(pool string, workerID int, processed uint64) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  workerID,
		Data: EventData{
			Processed: processed,
		},
	}
}

// NewWorkerFailedEvent creates a worker failed event
func NewWorkerFailedEvent(pool string, workerID int, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventWorkerFailed,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  workerID,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewRunStartedEvent creates a run started event
func NewRunStartedEvent(pool, runID string, workers int) Event {
	return Event{
		Type:      EventRunStarted,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  -1,
		Data: EventData{
			Workers: workers,
			RunID:   runID,
		},
	}
}

// NewRunCompletedEvent creates a run completed event
func NewRunCompletedEvent(pool, runID string, processed uint64) Event {
	return Event{
		Type:      EventRunCompleted,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  -1,
		Data: EventData{
			Processed: processed,
			RunID:     runID,
		},
	}
}

// NewFaultInjectedEvent creates a fault injected event
func NewFaultInjectedEvent(pool, fault string, delay time.Duration) Event {
	data := EventData{Fault: fault}
	if delay > 0 {
		data.Delay = delay.String()
	}
	return Event{
		Type:      EventFaultInjected,
		Timestamp: time.Now(),
		Pool:      pool,
		WorkerID:  -1,
		Data:      data,
	}
}
