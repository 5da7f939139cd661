package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task run on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names are unique because they
// label metrics and log lines.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register adds job, rejecting nil jobs and duplicate names.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// MustRegister is Register for wiring code where a failure is a programming error.
func (r *Registry) MustRegister(jobs ...Job) *Registry {
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			panic(err)
		}
	}
	return r
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
