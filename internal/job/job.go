// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"time"
)

// Task is the unit of work executed by a Job. A returned error is handed to the Job's error
// handler and does not stop the Job.
type Task func(context.Context) error

// Job represents a scheduled task that runs at a fixed interval
// and never overlaps with itself (singleton mode).
type Job struct {
	interval time.Duration
	task     Task
	onError  func(error)
}

// Option configures a Job.
type Option func(*Job)

// WithErrorHandler sets the function that receives errors returned by the task.
func WithErrorHandler(fn func(error)) Option {
	return func(j *Job) {
		j.onError = fn
	}
}

// New creates a new Job with the given interval and task.
func New(interval time.Duration, task Task, opts ...Option) *Job {
	job := &Job{
		interval: interval,
		task:     task,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// Start begins executing the job on the given context. It returns when the context is cancelled.
// If a tick fires while a previous run is still executing, that tick is skipped.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// 1-slot semaphore guarding the running task
	sem := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				go j.run(ctx, sem)
			default:
			}
		}
	}
}

func (j *Job) run(ctx context.Context, sem chan struct{}) {
	defer func() { <-sem }()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := j.task(runCtx); err != nil && j.onError != nil {
		j.onError(err)
	}
}
