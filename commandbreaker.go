// Package commandbreaker implements a Hystrix-style command execution
// runtime: per-command circuit breakers, bounded worker pools, request
// caching, and fallbacks, wired together by a process-wide Runtime.
//
// Basic usage:
//
//	rt := commandbreaker.NewRuntime(nil, commandbreaker.MetricsConfig{})
//	cmd := rt.NewCommand(commandbreaker.Config{
//	    CommandKey: commandbreaker.NewCommandKey("charge-card"),
//	    Run: func(ctx context.Context) (interface{}, error) {
//	        return paymentGateway.Charge(ctx, amount)
//	    },
//	})
//	result, err := cmd.Execute(ctx)
package commandbreaker

import (
	"github.com/vnykmshr/commandbreaker/internal/breaker"
	"github.com/vnykmshr/commandbreaker/internal/command"
	"github.com/vnykmshr/commandbreaker/internal/hystrixconfig"
	"github.com/vnykmshr/commandbreaker/internal/publish"
	"github.com/vnykmshr/commandbreaker/internal/reqcontext"
)

// Core Types
//
// These types form the public API of the command runtime. Each is a direct
// alias onto its owning internal package, following the teacher library's
// own autobreaker.go facade pattern (type X = internalpkg.X) rather than
// wrapper types, so the facade adds zero indirection over the internal
// implementation.

// Runtime owns the process-wide registries (metrics, breakers, worker
// pools, semaphores) shared across every Command constructed from it.
type Runtime = command.Runtime

// Command is a single-shot execution of one command class.
type Command = command.Command

// Config configures one Command.
type Config = command.Config

// RunFunc is a command body.
type RunFunc = command.RunFunc

// FallbackFunc produces a degraded result when Run cannot.
type FallbackFunc = command.FallbackFunc

// CommandKey, GroupKey, and PoolKey identify a command class, its reporting
// group, and the worker pool a Thread-isolated command submits to.
type CommandKey = command.CommandKey
type GroupKey = command.GroupKey
type PoolKey = command.PoolKey

// IsolationStrategy selects how a command's executions are bounded.
type IsolationStrategy = command.IsolationStrategy

const (
	Thread    = command.Thread
	Semaphore = command.Semaphore
)

// FailureType enumerates the originating cause of a RuntimeFailureError.
type FailureType = command.FailureType

const (
	CommandException           = command.CommandException
	Timeout                    = command.Timeout
	Shortcircuit               = command.Shortcircuit
	RejectedThreadExecution    = command.RejectedThreadExecution
	RejectedSemaphoreExecution = command.RejectedSemaphoreExecution
	RejectedSemaphoreFallback  = command.RejectedSemaphoreFallback
)

// BadRequestError, RuntimeFailureError, and IllegalStateError are the three
// error kinds a Command can surface to its caller, per spec.md §7.
type BadRequestError = command.BadRequestError
type RuntimeFailureError = command.RuntimeFailureError
type IllegalStateError = command.IllegalStateError

// ExecutionHook, EventNotifier, and ConcurrencyStrategy are the collaborator
// ports a Config may supply; NoopHook, NoopNotifier, and
// PassthroughConcurrencyStrategy are their defaults.
type ExecutionHook = command.ExecutionHook
type EventNotifier = command.EventNotifier
type ConcurrencyStrategy = command.ConcurrencyStrategy
type NoopHook = command.NoopHook
type NoopNotifier = command.NoopNotifier
type PassthroughConcurrencyStrategy = command.PassthroughConcurrencyStrategy

// Logger is the narrow logging port the runtime depends on. ZapLogger is
// the ambient default; NoopLogger discards everything.
type Logger = command.Logger
type ZapLogger = command.ZapLogger
type NoopLogger = command.NoopLogger

// RequestContext, Future, and LogEntry carry the per-request cache and
// executed-command log a caller activates via WithContext.
type RequestContext = reqcontext.RequestContext
type Future = reqcontext.Future
type LogEntry = reqcontext.LogEntry

// CircuitBreakerState is the three-state machine (Closed/Open/HalfOpen) a
// CircuitBreaker moves through, matching the sony/gobreaker naming the
// teacher library advertised compatibility with.
type CircuitBreakerState = breaker.State

const (
	StateClosed   = breaker.StateClosed
	StateOpen     = breaker.StateOpen
	StateHalfOpen = breaker.StateHalfOpen
)

// PropertiesStrategy, CommandProperties, and ThreadPoolProperties resolve
// per-command configuration snapshots; see internal/hystrixconfig.
type PropertiesStrategy = hystrixconfig.PropertiesStrategy
type CommandProperties = hystrixconfig.CommandProperties
type ThreadPoolProperties = hystrixconfig.ThreadPoolProperties

// MetricsPublisher receives periodic command/pool metric snapshots; see
// internal/publish.
type MetricsPublisher = publish.MetricsPublisher

// Constructors and Helper Functions
//
// Exposed as package variables aliasing the internal constructors (var New
// = pkg.New), the same "cleaner import path, zero wrapper overhead" pattern
// the teacher library's autobreaker.go documents and defends.

var (
	NewRuntime    = command.NewRuntime
	NewCommandKey = command.NewCommandKey
	NewGroupKey   = command.NewGroupKey
	NewPoolKey    = command.NewPoolKey

	BadRequest     = command.BadRequest
	RuntimeFailure = command.RuntimeFailure
	IllegalState   = command.IllegalState

	NewZapLogger = command.NewZapLogger

	ConfigFromProperties = command.ConfigFromProperties

	Initialize  = reqcontext.Initialize
	WithContext = reqcontext.WithContext
	FromContext = reqcontext.FromContext

	NewStaticPropertiesStrategy = hystrixconfig.NewStaticPropertiesStrategy
	NewYAMLPropertiesStrategy   = hystrixconfig.NewYAMLPropertiesStrategy
	DefaultCommandProperties    = hystrixconfig.DefaultCommandProperties
	DefaultThreadPoolProperties = hystrixconfig.DefaultThreadPoolProperties

	NewPoller              = publish.NewPoller
	NewLogPublisher        = publish.NewLogPublisher
	NewPrometheusCollector = publish.NewPrometheusCollector
)
