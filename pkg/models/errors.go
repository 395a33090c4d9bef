package models

import "errors"

var (
	// ErrInvalidConfiguration is returned before any worker is allocated.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrTrialFailure aborts the current run.
	ErrTrialFailure = errors.New("trial failure")
	// ErrEmptyRun is returned when a run consumed no results.
	ErrEmptyRun = errors.New("empty run: no trials completed")
	// ErrResourceCleanup reports workers that did not exit within their grace period.
	ErrResourceCleanup = errors.New("resource cleanup failure")
)
