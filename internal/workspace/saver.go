package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codepad/internal/core"
	"codepad/internal/metrics"
	"codepad/internal/util"

	"github.com/rs/zerolog"
)

var (
	// ErrPersistence wraps every failure to write a tree to the store.
	ErrPersistence = errors.New("persistence failed")
	// ErrClosed is returned by a saver or workspace after shutdown.
	ErrClosed = errors.New("workspace closed")
)

const defaultSaveTimeout = 10 * time.Second

// Store loads and persists project trees.
type Store interface {
	LoadTree(ctx context.Context, projectID string) (core.Tree, error)
	SaveTree(ctx context.Context, projectID string, tree core.Tree) error
}

// SaveResult reports the outcome of one write. A write of generation N also
// covers every earlier generation that was superseded before it started.
type SaveResult struct {
	Generation uint64
	Err        error
}

// Saver writes trees to a Store on a background goroutine.
//
// Requests coalesce: the worker always writes the newest pending tree, so
// an older tree never reaches the store after a newer one.
type Saver struct {
	projectID string
	store     Store
	timeout   time.Duration
	listener  func(SaveResult)
	logger    zerolog.Logger

	mu         sync.Mutex
	pending    *core.Tree
	pendingGen uint64
	requested  uint64
	doneGen    uint64
	doneErr    error
	savedGen   uint64
	progress   chan struct{}
	closed     bool
	results    []SaveResult

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	ready     chan struct{}
	delivered chan struct{}
}

// NewSaver starts a saver for projectID. listener, if not nil, receives the
// result of every write, in order, on a delivery goroutine of its own; a
// slow listener delays neither writes nor waiters.
func NewSaver(projectID string, store Store, timeout time.Duration, listener func(SaveResult)) *Saver {
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	s := &Saver{
		projectID: projectID,
		store:     store,
		timeout:   timeout,
		listener:  listener,
		logger:    util.GetLogger("saver").With().Str("project_id", projectID).Logger(),
		progress:  make(chan struct{}),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		ready:     make(chan struct{}, 1),
		delivered: make(chan struct{}),
	}
	go s.run()
	go s.deliver()
	return s
}

// Save queues tree for writing and returns its generation. It never blocks
// on the store.
func (s *Saver) Save(tree core.Tree) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.requested++
	s.pending = &tree
	s.pendingGen = s.requested
	gen := s.requested
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return gen, nil
}

// Wait blocks until generation gen, or a later one, has been written and
// returns the result of that write.
func (s *Saver) Wait(ctx context.Context, gen uint64) error {
	for {
		s.mu.Lock()
		if s.doneGen >= gen {
			err := s.doneErr
			s.mu.Unlock()
			return err
		}
		ch := s.progress
		s.mu.Unlock()

		select {
		case <-ch:
		case <-s.done:
			s.mu.Lock()
			finished := s.doneGen >= gen
			err := s.doneErr
			s.mu.Unlock()
			if finished {
				return err
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Requested returns the newest generation handed to Save.
func (s *Saver) Requested() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Saved returns the newest generation written successfully.
func (s *Saver) Saved() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedGen
}

// Close writes whatever is pending, hands the last results to the listener
// and stops the worker. ctx bounds the wait.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()

	select {
	case <-s.delivered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *Saver) flush() {
	for {
		s.mu.Lock()
		if s.pending == nil {
			s.mu.Unlock()
			return
		}
		tree, gen := *s.pending, s.pendingGen
		s.pending = nil
		s.mu.Unlock()

		err := s.write(tree, gen)

		s.mu.Lock()
		s.doneGen, s.doneErr = gen, err
		if err == nil {
			s.savedGen = gen
		}
		close(s.progress)
		s.progress = make(chan struct{})
		if s.listener != nil {
			s.results = append(s.results, SaveResult{Generation: gen, Err: err})
		}
		s.mu.Unlock()

		select {
		case s.ready <- struct{}{}:
		default:
		}
	}
}

// deliver passes queued results to the listener until the worker has
// stopped and the queue is empty.
func (s *Saver) deliver() {
	defer close(s.delivered)
	for {
		select {
		case <-s.ready:
			s.drain()
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Saver) drain() {
	for {
		s.mu.Lock()
		batch := s.results
		s.results = nil
		s.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, r := range batch {
			s.listener(r)
		}
	}
}

func (s *Saver) write(tree core.Tree, gen uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.store.SaveTree(ctx, s.projectID, tree)
	metrics.RecordSave(time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Uint64("generation", gen).Msg("save failed")
		return fmt.Errorf("%w: generation %d: %w", ErrPersistence, gen, err)
	}
	s.logger.Debug().
		Uint64("generation", gen).
		Dur("took", time.Since(start)).
		Msg("tree saved")
	return nil
}
