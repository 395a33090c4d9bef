// Package strategy implements the execution backends a harness run can use.
//
// Every backend produces trial results as a lazy, unordered sequence and
// shares one contract: Stop asks it to cease producing results, Shutdown
// blocks until everything it owns has been released. The backends differ in
// what Stop costs and what it guarantees:
//
//   - Sequential runs trials one at a time on the consuming goroutine. After
//     Stop no further trial starts, so work performed equals work observed.
//   - ThreadPool enqueues the whole budget up front and drains it with a fixed
//     set of goroutines. Stop only ends consumption: queued and running trials
//     keep going until Shutdown joins the workers. Early exit bounds the work
//     observed, not the work performed.
//   - ProcessPool feeds a fixed set of child processes one trial at a time.
//     Stop kills the children (optionally after a grace period); whatever a
//     killed child was computing is lost and never reported.
//
// DrainsInFlightWork reports which of the last two behaviors a backend has.
package strategy
