// Package pool runs a set of jobs across a pool of workers. A worker that
// fails a job is retired and the job is handed to another worker.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/liamzebedee/noirbatch-go/core"
)

var plog = core.NewLogger("pool", "")

type Worker[T any] struct {
	ID string
	Do func(ctx context.Context, job int) (T, error)
}

func (w *Worker[T]) String() string {
	return w.ID
}

type jobLog struct {
	job       int
	err       error
	startTime time.Time
	endTime   time.Time
}

// NotEnoughWorkersError is returned when every worker retired with jobs
// still pending.
type NotEnoughWorkersError struct {
	Pending int
	// Last error of each retired worker, by worker id.
	Causes map[string]error
}

func (e *NotEnoughWorkersError) Error() string {
	msg := fmt.Sprintf("not enough workers to fill jobs: %d pending", e.Pending)
	for id, err := range e.Causes {
		msg += fmt.Sprintf("\n  %s: %s", id, err)
	}
	return msg
}

// Run completes jobs 0..n-1. Each worker works on one job at a time. Results
// are indexed by job.
func Run[T any](ctx context.Context, n int, workers []*Worker[T]) ([]T, error) {
	results := make([]T, n)
	if n == 0 {
		return results, nil
	}

	workerLogs := make(map[*Worker[T]]*[]jobLog)
	causes := make(map[string]error)

	var mu sync.Mutex
	var pendingWork sync.WaitGroup
	var onlineWorkers sync.WaitGroup
	pending := n

	plog.Printf("running %d jobs on %d workers", n, len(workers))

	// Every job is in the channel at most once, so retries never block.
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
		pendingWork.Add(1)
	}

	for _, worker := range workers {
		onlineWorkers.Add(1)
		logs := []jobLog{}
		workerLogs[worker] = &logs

		go func(worker *Worker[T], logs *[]jobLog) {
			defer onlineWorkers.Done()
			for {
				var job int
				var more bool
				select {
				case <-ctx.Done():
					return
				case job, more = <-jobs:
					if !more {
						return
					}
				}

				startTime := time.Now()
				res, err := worker.Do(ctx, job)

				mu.Lock()
				*logs = append(*logs, jobLog{job: job, err: err, startTime: startTime, endTime: time.Now()})
				if err != nil {
					causes[worker.ID] = err
					mu.Unlock()

					plog.Printf("job %d on worker %s failed: %s", job, worker, err)
					jobs <- job
					return
				}
				results[job] = res
				pending--
				mu.Unlock()

				plog.Printf("job %d done by worker %s", job, worker)
				pendingWork.Done()
			}
		}(worker, &logs)
	}

	workDone := make(chan struct{})
	workersDone := make(chan struct{})
	go func() {
		pendingWork.Wait()
		close(workDone)
	}()
	go func() {
		onlineWorkers.Wait()
		close(workersDone)
	}()

	var err error
	select {
	case <-workDone:
		plog.Printf("all jobs done")
		close(jobs)
		<-workersDone
	case <-workersDone:
		mu.Lock()
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = &NotEnoughWorkersError{Pending: pending, Causes: causes}
		}
		mu.Unlock()
	}

	printSummary(workers, workerLogs)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func printSummary[T any](workers []*Worker[T], workerLogs map[*Worker[T]]*[]jobLog) {
	plog.Printf("Worker summary table\n")
	for i, worker := range workers {
		logs := *workerLogs[worker]

		done, failed := 0, 0
		var total time.Duration
		for _, l := range logs {
			if l.err != nil {
				failed++
			} else {
				done++
			}
			total += l.endTime.Sub(l.startTime)
		}

		var avg time.Duration
		if len(logs) > 0 {
			avg = total / time.Duration(len(logs))
		}
		rate := 0.0
		if total > 0 {
			rate = float64(done) / total.Seconds()
		}
		plog.Printf("Worker #%d (%s): jobs=%d success=%d failed=%d avg_duration=%s rate_per_s=%.2f\n", i, worker, len(logs), done, failed, avg, rate)
	}
}
