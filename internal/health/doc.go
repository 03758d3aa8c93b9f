// Package health turns probe outcomes into health states and keeps
// per-target time-in-state statistics.
//
// Classify is pure: an HTTP outcome reachable through the local endpoint is
// Up, through the remote fallback Degraded, and Down otherwise. Every other
// kind is Up or Down.
//
// Aggregator accumulates how long each target spent in each state. Samples
// may arrive at irregular intervals; each one credits the time since the
// previous sample to the previous state, so the three accumulators always
// sum to the time between the first and the latest sample. Uptime
// percentages are derived from the accumulators when read.
package health
