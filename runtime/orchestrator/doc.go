// Package orchestrator drives workflow runs: it creates one job per stage,
// promotes jobs whose dependencies succeeded, dispatches every active job one
// phase per step, and persists each transition.
//
// A run is advanced cooperatively by Step (or the Run loop calling it). Within
// a step jobs are dispatched concurrently, results are applied serially under
// the run lock.
package orchestrator
