// Package remote provides keyword.Invoker implementations that run keywords
// outside the engine's process.
//
// HTTPInvoker performs a synchronous POST per invocation. AsyncInvoker hands
// the invocation to a Dispatcher and parks the step on a future until
// Complete is called, typically from the agent's HTTP API.
package remote
