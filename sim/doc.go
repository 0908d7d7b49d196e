// Package sim provides the continuous-time contact process (SIS) engine.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - site.go: a site's heal and per-direction infection clocks, and how each event advances them
//   - scheduler.go: the Scheduler interface and the handles it hands out
//   - simulator.go: the event loop that repeatedly fires the globally earliest clock
//
// # Architecture
//
// Every materialized site holds one absolute clock per possible event. The
// driver asks its scheduler for the infected site with the smallest clock,
// applies that event and asks again. Two schedulers are provided:
//   - lattice.go: coordinate map plus a linear scan (scan)
//   - tree.go: arena red-black tree keyed by (state, min clock) with intrusive neighbor links (tree)
//
// Both pick the same event on every step for the same random stream, so their
// traces are identical.
//
// Sub-packages:
//   - sim/trace/: per-replica event recording
//   - sim/sweep/: parallel Monte Carlo over a (λ, α) grid
//   - sim/sweep/report/: CSV, summary table and SQLite output for sweeps
package sim
