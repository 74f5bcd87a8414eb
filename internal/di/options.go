package di

import "time"

// WaitInterval is the polling interval handed to collaborators that wait on
// remote executions.
type WaitInterval time.Duration

// RunnerMode selects the sub-workflow execution backend ("local" or "sfn").
// When empty, the mode from application configuration wins.
type RunnerMode string

// AccountsTable overrides the accounts table the hub account lookup queries.
// When empty, the table from application configuration wins.
type AccountsTable string

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithWaitInterval sets the polling interval for stack and execution status.
func WithWaitInterval(interval time.Duration) Option {
	return func(opts *options) {
		opts.waitInterval = WaitInterval(interval)
	}
}

// WithRunnerMode overrides the configured sub-workflow execution backend.
func WithRunnerMode(mode string) Option {
	return func(opts *options) {
		opts.runnerMode = RunnerMode(mode)
	}
}

// WithAccountsTable overrides the configured accounts table with the
// caller-supplied one.
func WithAccountsTable(tableName string) Option {
	return func(opts *options) {
		opts.accountsTable = AccountsTable(tableName)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *accountdao.DAO { return dao },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	waitInterval  WaitInterval
	runnerMode    RunnerMode
	accountsTable AccountsTable
	providers     []any
}
