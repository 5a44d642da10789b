// Package server implements the agent's HTTP API
//
// It exposes the keyword registry, synchronous and queued plan execution,
// stored runs with their audit events, and the completion endpoint for
// asynchronously invoked keywords
package server
