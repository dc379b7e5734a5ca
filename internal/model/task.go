package model

import "fmt"

// CrawlTask is one unit of crawl work for the worker pool.
type CrawlTask struct {
	Token     string
	Address   string
	Direction Direction
	// Depth is the hop distance from the root address. Roots are depth 0.
	Depth int
}

// Child returns the task for counterparty one hop further in the same direction.
func (t CrawlTask) Child(address string) CrawlTask {
	return CrawlTask{Token: t.Token, Address: address, Direction: t.Direction, Depth: t.Depth + 1}
}

// String returns a compact identifier for logs.
func (t CrawlTask) String() string {
	return fmt.Sprintf("%s/%s@%d", t.Address, t.Direction, t.Depth)
}
