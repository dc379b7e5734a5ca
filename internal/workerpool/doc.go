// Package workerpool runs crawl tasks on a fixed number of goroutines.
//
// Unlike a batch executor, the queue is open: tasks may be added at any
// time, including from inside a running task, which is how a crawl grows
// its own frontier. The pool reports when it has drained (nothing queued,
// nothing running) and can be terminated, discarding queued work while
// running tasks finish.
//
// The newest queued task is dequeued first. Depth-first order keeps the
// queue short on wide graphs.
package workerpool
