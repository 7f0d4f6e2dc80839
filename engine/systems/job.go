package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/livewall/engine/core"
)

// JobTask is a unit of work run on one of the job system workers. OnStart
// may push a result on output, which OnComplete then receives.
type JobTask struct {
	Name                 string
	InputParams          interface{}
	OnStart              func(input interface{}, output chan<- interface{}) error
	OnComplete           func(output <-chan interface{})
	OnFailure            func(err error)
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	output := make(chan interface{}, 1)
	if job.OnStart != nil {
		if err := job.OnStart(job.InputParams, output); err != nil {
			core.LogError("job %q failed: %s", job.Name, err)
			if job.OnFailure != nil {
				job.OnFailure(err)
			}
		} else if job.OnComplete != nil {
			job.OnComplete(output)
		}
	}

	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

// Shutdown stops accepting jobs and waits for the queued ones to finish.
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

// Submit queues the job, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// AddWorkNonBlocking queues the job from a new goroutine and returns immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go func() {
		if err := js.Submit(jt); err != nil {
			core.LogWarn("dropping job %q: %s", jt.Name, err)
		}
	}()
}
