// Package keycase is an embeddable keyword-driven test execution engine.
//
// A controller (or a local plan file) describes a test run as an
// ExecutionPlan: keyword instances with literal params, flows of ordered
// steps, and connections that feed one step's output into a later step's
// input. The engine validates the plan against a frozen keyword Registry,
// executes the flows and returns a RunResult with one FlowResult per flow.
//
// # Keywords
//
// A Keyword is a named, typed-by-convention function over string values:
//
//	keycase.NewKeyword("Calculator Add").
//	    Input("num1", keyword.Required()).
//	    Input("num2", keyword.Required()).
//	    Output("result").
//	    Handle(add).
//	    MustRegister(reg)
//
// Typed derives the param specs from plain structs instead. The
// pkg/keywords package ships a ready-made library (calculator, strings and
// a few demo keywords) loaded with keywords.RegisterAll.
//
// # Engine
//
// The Engine resolves each step's inputs in a fixed order: a connection
// from a passed source step, then the instance's literal value, then the
// keyword default. Within a flow, steps run in sequenceOrder; a failing
// step ends the flow unless its runMode is continueOnError. Flows are
// isolated from each other and run in their own sequenceOrder.
//
// Engines can persist run records and audit events in:
//
//   - memory (tests, one-shot CLI runs)
//   - SQLite
//   - Postgres
//   - Redis
//   - MongoDB
//
// # Worker
//
// A Worker takes execute and cancel tasks off a Queue and drives them
// through an Engine. Results can be pushed to a Reporter, which is how the
// agent forwards them to its controller.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, queue and worker for development
// and tests. It is not crash-durable; NewSQLiteBundle is the durable
// variant.
package keycase
