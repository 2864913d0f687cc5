package runner

import (
	"context"
	"log/slog"
	"time"

	"leadrunner/internal/store"
)

// Executor runs one workflow execution for a trigger. Implemented by
// Pipeline; an interface so the loop can be tested without a runtime.
type Executor interface {
	Execute(ctx context.Context, trigger store.Trigger) (*store.Run, error)
}

// AgentConfig holds configuration for the runner agent.
type AgentConfig struct {
	Workflow string
	// ScheduleInterval is the cadence of the built-in schedule trigger.
	ScheduleInterval time.Duration
	// PollInterval is the minimum dispatch-queue poll interval. It
	// backs off exponentially up to MaxBackoff while the queue is empty.
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

// Agent runs the dispatch loop: it enqueues the schedule trigger on its
// interval and drains the dispatch queue one run at a time. Runs are
// strictly serial; overlap protection is enforced again by the workflow
// lock in the pipeline for runners on other hosts.
type Agent struct {
	queue    store.DispatchQueue
	db       store.DBTransaction
	executor Executor
	config   AgentConfig
	log      *slog.Logger
	done     chan struct{}
}

// New creates a runner agent.
func New(queue store.DispatchQueue, db store.DBTransaction, executor Executor, config AgentConfig, log *slog.Logger) *Agent {
	if config.ScheduleInterval <= 0 {
		config.ScheduleInterval = 5 * time.Hour
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}

	return &Agent{
		queue:    queue,
		db:       db,
		executor: executor,
		config:   config,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Run starts the loop. It blocks until the context is cancelled. A run
// in flight when cancellation arrives finishes; only new dispatches
// stop being claimed.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("agent starting",
		"workflow", a.config.Workflow,
		"schedule_interval", a.config.ScheduleInterval)

	scheduleTicker := time.NewTicker(a.config.ScheduleInterval)
	defer scheduleTicker.Stop()

	// Buffered so a pending poll request coalesces with new ones.
	pollNow := make(chan struct{}, 1)
	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}

	currentBackoff := a.config.PollInterval

	// Fire the schedule once at startup so a freshly deployed runner
	// does not wait a full interval for its first run.
	a.enqueueSchedule(ctx)
	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("agent stopping")
			close(a.done)
			return ctx.Err()

		case <-scheduleTicker.C:
			a.enqueueSchedule(ctx)
			triggerPoll()

		case <-time.After(currentBackoff):
			triggerPoll()

		case <-pollNow:
			dispatches, err := a.queue.DequeueDispatches(ctx, a.config.Workflow, 1)
			if err != nil {
				a.log.Error("dequeue failed", "error", err)
				continue
			}

			if len(dispatches) == 0 {
				currentBackoff = currentBackoff * 2
				if currentBackoff > a.config.MaxBackoff {
					currentBackoff = a.config.MaxBackoff
				}
				continue
			}
			currentBackoff = a.config.PollInterval

			for _, d := range dispatches {
				a.log.Info("claimed dispatch", "dispatch_id", d.ID, "trigger", d.Trigger, "requested_by", d.RequestedBy)
				// Detached context: a claimed run finishes even while
				// the agent is draining. The run timeout bounds it.
				if _, err := a.executor.Execute(context.Background(), d.Trigger); err != nil {
					a.log.Error("run failed to execute", "dispatch_id", d.ID, "error", err)
				}
			}

			// More work may be queued behind what we claimed.
			triggerPoll()
		}
	}
}

// Done returns a channel closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) enqueueSchedule(ctx context.Context) {
	if _, err := a.queue.EnqueueDispatch(ctx, a.db, a.config.Workflow, store.TriggerSchedule, "scheduler"); err != nil {
		a.log.Error("failed to enqueue schedule trigger", "error", err)
	}
}
