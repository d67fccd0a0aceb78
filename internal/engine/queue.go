package engine

import "github.com/roach88/showrunner/internal/dispatch"

// DefaultQueueSize is the capacity of the command queue.
const DefaultQueueSize = 64

// request is one queued unit of work for the Run loop.
type request struct {
	name    string
	payload any
	source  dispatch.Source

	// barrier marks a request that carries no command. It is answered once
	// everything queued before it has been handled.
	barrier bool

	// reply is buffered (size 1) so the loop never blocks on a caller that
	// gave up waiting.
	reply chan response
}

type response struct {
	result dispatch.Result
	err    error
}

func newRequest(name string, payload any, source dispatch.Source) request {
	return request{
		name:    name,
		payload: payload,
		source:  source,
		reply:   make(chan response, 1),
	}
}

func newBarrier() request {
	return request{barrier: true, reply: make(chan response, 1)}
}
