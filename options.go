// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package corogo

import "runtime"

// defaultWorkerCount returns the default Processor count when WithWorkers is
// not given.
func defaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// schedulerOptions holds configuration resolved from Option values passed to
// NewScheduler.
type schedulerOptions struct {
	workers          int
	defaultStackSize int
	maxStackBytes    int64
	metricsEnabled   bool
	logger           Logger
}

// --- Scheduler Options ---

// Option configures a Scheduler at construction.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option via a closure, the same pattern used
// throughout this package for SpawnOption.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithWorkers sets the number of Processor worker threads. Must be >= 1;
// defaults to runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n < 1 {
			return &RangeError{Message: "WithWorkers: n must be >= 1"}
		}
		opts.workers = n
		return nil
	}}
}

// WithDefaultStackSize sets the default stack-memory weight charged against
// the aggregate stack ceiling for coroutines spawned without an explicit
// SpawnOption override. Go coroutines are goroutines with runtime-managed
// growable stacks, so this is an accounting unit for the ceiling policy
// rather than a literal allocation size.
func WithDefaultStackSize(bytes int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if bytes <= 0 {
			return &RangeError{Message: "WithDefaultStackSize: bytes must be > 0"}
		}
		opts.defaultStackSize = bytes
		return nil
	}}
}

// WithMaxStackBytes sets the aggregate stack-memory ceiling charged against
// by every live coroutine's stack weight (see WithDefaultStackSize and
// WithStackSize). Spawn blocks until enough weight is freed by exiting
// coroutines rather than failing outright, trading latency for a hard memory
// bound. Defaults to 1024 coroutines' worth of the default stack size per
// worker.
func WithMaxStackBytes(bytes int64) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if bytes <= 0 {
			return &RangeError{Message: "WithMaxStackBytes: bytes must be > 0"}
		}
		opts.maxStackBytes = bytes
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Scheduler.
// When enabled, metrics can be accessed via Scheduler.Metrics().
// This adds minimal overhead (record latency after each run-slice, update
// queue depths). For zero-allocation hot paths, disable metrics in production.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithLogger sets the Logger the Scheduler, its processors, and the reactor
// report structured events to. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = l
		return nil
	}}
}

// defaultStackBytes is the default stack-ceiling weight charged per spawned
// coroutine when no WithDefaultStackSize or SpawnOption override is given.
const defaultStackBytes = 64 * 1024

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		workers:          defaultWorkerCount(),
		defaultStackSize: defaultStackBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.maxStackBytes == 0 {
		cfg.maxStackBytes = int64(cfg.workers) * 1024 * int64(cfg.defaultStackSize)
	}
	return cfg, nil
}

// spawnOptions holds per-coroutine configuration for spawn_opts.
type spawnOptions struct {
	name      string
	stackSize int
}

// SpawnOption configures a single Spawn call.
type SpawnOption interface {
	applySpawn(*spawnOptions)
}

type spawnOptionImpl struct {
	apply func(*spawnOptions)
}

func (o *spawnOptionImpl) applySpawn(opts *spawnOptions) { o.apply(opts) }

// WithName sets a coroutine's name, reported as PanicError.Coro when the
// coroutine panics.
func WithName(name string) SpawnOption {
	return &spawnOptionImpl{func(opts *spawnOptions) { opts.name = name }}
}

// WithStackSize overrides the stack-ceiling weight charged for a single
// spawned coroutine; see WithDefaultStackSize.
func WithStackSize(bytes int) SpawnOption {
	return &spawnOptionImpl{func(opts *spawnOptions) { opts.stackSize = bytes }}
}

func resolveSpawnOptions(s *Scheduler, opts []SpawnOption) *spawnOptions {
	cfg := &spawnOptions{stackSize: s.opts.defaultStackSize}
	for _, opt := range opts {
		if opt != nil {
			opt.applySpawn(cfg)
		}
	}
	return cfg
}
