// Package agent connects a keycase worker to a remote controller.
//
// The agent authenticates with its agent token, opens a websocket to the
// URL handed out by the controller and announces itself with a hello
// message. Execute and cancel messages are forwarded to the worker; finished
// runs travel back as result messages followed by a status update. Results
// produced while disconnected are buffered and flushed on the next session.
package agent
