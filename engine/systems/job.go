package systems

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
)

/** @brief Describes a unit of work run by the job system. */
type JobTask struct {
	/** @brief Used in log messages. */
	Name string
	/** @brief The work itself. ctx is cancelled when the job system shuts down. */
	Run func(ctx context.Context) error
	/** @brief Called after Run succeeded. Optional. */
	OnComplete func()
	/** @brief Called with the error returned by Run. Optional. */
	OnFailure func(err error)
}

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemStopped    = errors.New("job system is shut down")
)

/**
 * @brief A fixed pool of workers draining a job queue. Wait blocks until
 * every submitted job has finished and reports their combined failures.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	workers    sync.WaitGroup
	pending    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// Held for reading while sending so Shutdown never closes under a sender.
	stateMu sync.RWMutex
	stopped bool

	errMu sync.Mutex
	errs  error
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.workers.Add(1)
		go func() {
			defer js.workers.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.pending.Done()
	err := job.Run(js.ctx)
	if err != nil {
		err = errors.Wrapf(err, "job %s", job.Name)
		core.LogError(err.Error())
		js.errMu.Lock()
		js.errs = errors.CombineErrors(js.errs, err)
		js.errMu.Unlock()
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.Run == nil {
		return core.InvalidArgumentf("job %q has no Run function", jt.Name)
	}
	js.stateMu.RLock()
	defer js.stateMu.RUnlock()
	if js.stopped {
		return ErrJobSystemStopped
	}
	js.pending.Add(1)
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Blocks until the outstanding job count reaches zero. Returns the
 * failures of the jobs completed since the previous Wait.
 */
func (js *JobSystem) Wait() error {
	js.pending.Wait()
	js.errMu.Lock()
	defer js.errMu.Unlock()
	err := js.errs
	js.errs = nil
	return err
}

/**
 * @brief Shuts the job system down. Queued jobs still run, with a cancelled context.
 */
func (js *JobSystem) Shutdown() error {
	js.stateMu.Lock()
	if js.stopped {
		js.stateMu.Unlock()
		return nil
	}
	js.stopped = true
	js.stateMu.Unlock()

	js.cancel()
	close(js.jobQueue)
	js.workers.Wait()
	return nil
}
