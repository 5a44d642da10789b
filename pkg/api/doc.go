// Package api contains the data model shared by the keycase engine, its
// workers and its transports.
//
// Most users interact with the higher-level keycase package, which re-exports
// selected types and helpers from this package. The api package is intended
// for integrations that read or produce plan and result documents directly.
//
// # Plans
//
// An ExecutionPlan is a declarative document: a flat list of
// KeywordInstances (a registered keyword plus concrete params) and a list of
// Flows. Each Flow orders Steps by sequenceOrder and wires output params of
// earlier steps into input params of later steps through Connections.
//
// Plan ids arrive either as JSON numbers or strings; both decode to ID. Param
// values are opaque text (Text). A null or empty literal means "no value".
//
// # Results
//
// Executing a plan produces a RunResult with one FlowResult per flow, always
// ordered by the flows' sequenceOrder. A FlowResult is PASSED or FAILED; a
// failed flow names the first failing step and a human-readable message.
// Failures of the run as a whole (validation, wiring, cancellation) are
// reported in RunResult.Error instead of being returned as Go errors.
//
// # Errors
//
// PlanValidationError, MissingRequiredParameterError, KeywordExecutionError,
// WiringError and InvalidChoiceError form the engine's error taxonomy. Each
// unwraps to a sentinel so callers can use errors.Is.
//
// # Observability
//
// The Observer interface reports run, flow and step lifecycle events.
// LoggingObserver, BasicMetrics and CompositeObserver are ready-made
// implementations.
package api
