// Package events declares the values published on the event bus while a
// request is served. Subscribers get the request context with each event, so
// the request id is available through reqid.
package events

import "time"

type HTTPStart struct {
	Method     string
	Path       string
	RemoteAddr string
}

// HTTPFinish follows every HTTPStart, including requests refused before any
// operation ran.
type HTTPFinish struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// GraphQLStart is published once per operation, so a batch of n requests
// publishes it n times under the same request id.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

type GraphQLFinish struct {
	OperationName string
	OperationType string
	// Errors are the field and request errors of the response.
	Errors   []error
	Duration time.Duration
}
