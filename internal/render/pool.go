package render

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"chase-replay/internal/replay"
)

// Job is one frame to be written as a PNG file
type Job struct {
	Frame replay.Frame
	Path  string
}

type poolJob struct {
	Job
	result chan<- error
}

// Pool renders frames to disk on a fixed set of goroutines. Each worker owns
// a Renderer, so frames are drawn in parallel.
type Pool struct {
	numWorkers int
	opts       Options
	bounds     replay.SessionBounds

	jobChan chan poolJob
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewPool creates a pool for one session. If numWorkers is 0, it defaults to
// NumCPU.
func NewPool(numWorkers int, opts Options, bounds replay.SessionBounds) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > 16 {
		numWorkers = 16
	}
	return &Pool{
		numWorkers: numWorkers,
		opts:       opts,
		bounds:     bounds,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.jobChan = make(chan poolJob, p.numWorkers*2)
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker(NewRenderer(p.opts, p.bounds))
	}
}

// Stop waits for queued jobs and stops the workers
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobChan)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(r *Renderer) {
	defer p.wg.Done()
	for job := range p.jobChan {
		job.result <- writePNG(r, job.Job)
	}
}

// WriteAll renders every job and returns the first error. Without a running
// pool the jobs are rendered sequentially.
func (p *Pool) WriteAll(jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		r := NewRenderer(p.opts, p.bounds)
		for _, job := range jobs {
			if err := writePNG(r, job); err != nil {
				return err
			}
		}
		return nil
	}
	// held while sending so Stop cannot close the channel mid-dispatch
	results := make(chan error, len(jobs))
	for _, job := range jobs {
		p.jobChan <- poolJob{Job: job, result: results}
	}
	p.mu.Unlock()

	var first error
	for range jobs {
		if err := <-results; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Workers returns the number of workers in the pool
func (p *Pool) Workers() int {
	return p.numWorkers
}

// IsRunning returns whether the pool is currently running
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func writePNG(r *Renderer, job Job) error {
	file, err := os.Create(job.Path)
	if err != nil {
		return err
	}
	if err := r.EncodePNG(file, job.Frame); err != nil {
		file.Close()
		return fmt.Errorf("render %s: %w", job.Path, err)
	}
	return file.Close()
}
