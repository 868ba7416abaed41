package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/reelworks/stylecast/internal/models"
)

// JobStore is the queue view the orchestrator needs from the database.
type JobStore interface {
	NextInQueue(ctx context.Context) (*models.Job, error)
	FailStaleRendering(ctx context.Context) (int64, error)
}

// ActiveSet tracks jobs with a live worker process. It is shared state in
// redis so the claim survives across the orchestrator and its children.
type ActiveSet interface {
	Add(ctx context.Context, jobID string) error
	Remove(ctx context.Context, jobID string) error
	Size(ctx context.Context) (int64, error)
}

// SpawnFunc launches a worker for one job and blocks until it exits.
type SpawnFunc func(ctx context.Context, jobID string) error

// Orchestrator polls the queue and runs one worker process at a time.
type Orchestrator struct {
	Jobs     JobStore
	Active   ActiveSet
	Interval time.Duration
	Spawn    SpawnFunc
}

// RecoverStaleJobs fails jobs left in rendering by a previous process. Call
// once at startup, before polling begins.
func (o *Orchestrator) RecoverStaleJobs(ctx context.Context) error {
	n, err := o.Jobs.FailStaleRendering(ctx)
	if err != nil {
		return fmt.Errorf("stale job sweep failed: %w", err)
	}
	if n > 0 {
		log.Printf("[Orchestrator] Failed %d stale rendering job(s) from previous run", n)
	}
	return nil
}

// Run polls until the context is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Printf("[Orchestrator] Polling queue every %s", o.Interval)
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.checkAndStart(ctx)
		}
	}
}

// checkAndStart claims the oldest queued job unless a worker is already
// running. The claim (active-set membership) is released only after the
// worker process exits, whatever its outcome.
func (o *Orchestrator) checkAndStart(ctx context.Context) {
	size, err := o.Active.Size(ctx)
	if err != nil {
		log.Printf("[Orchestrator] Active set unavailable: %v", err)
		return
	}
	if size > 0 {
		return
	}

	job, err := o.Jobs.NextInQueue(ctx)
	if err != nil {
		log.Printf("[Orchestrator] Queue poll failed: %v", err)
		return
	}
	if job == nil {
		return
	}

	if err := o.Active.Add(ctx, job.JobID); err != nil {
		log.Printf("[Orchestrator] Failed to claim job %s: %v", job.JobID, err)
		return
	}
	log.Printf("[Orchestrator] Starting worker for job %s", job.JobID)

	go func(jobID string) {
		defer func() {
			if err := o.Active.Remove(context.Background(), jobID); err != nil {
				log.Printf("[Orchestrator] Failed to release job %s: %v", jobID, err)
			}
		}()
		if err := o.Spawn(ctx, jobID); err != nil {
			log.Printf("[Orchestrator] Worker for job %s exited with error: %v", jobID, err)
		}
	}(job.JobID)
}

// ProcessSpawner runs the worker as a child process of the given binary,
// isolating renders so a crash cannot take the orchestrator down.
func ProcessSpawner(binary string) SpawnFunc {
	return func(ctx context.Context, jobID string) error {
		cmd := exec.CommandContext(ctx, binary, "-render-job", jobID)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
}
