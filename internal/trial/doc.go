// Package trial defines the unit of work the harness searches over.
//
// A trial is a pure function of its parameters and its own random source:
//
//	func(params models.TrialParams, inv Invocation) (models.TrialResult, error)
//
// Every invocation receives an Invocation carrying its index within the run
// and an independently derived seed, so trials can run concurrently on any
// number of goroutines or processes without sharing generator state.
//
// Trials that must run out of process are resolved by name through the
// package registry; the worker process and the parent agree on the name,
// never on a function value.
package trial
