// Package asyncworker is the background task scheduler for thumbnail work
// that is not tied to a live request.
//
// A single consumer goroutine drains two FIFO queues. Whenever the
// foreground queue holds a task it runs next; background tasks run only
// when the foreground queue is empty. Between tasks the worker rests so
// bulk generation does not starve the rest of the process: background
// tasks rest after every run and take a long rest periodically, foreground
// tasks rest only periodically.
//
// Interrupt drops pending background work (for example when the device
// becomes busy); Stop drops everything and ends the consumer. Queued work is
// never persisted.
package asyncworker
