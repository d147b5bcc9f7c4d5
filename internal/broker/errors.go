package broker

import "fmt"

// ConsistencyError signals a registry double-removal: an order believed
// open was not found when its terminal transition tried to unregister
// it. This is a concurrency bug, never a normal exchange condition, and
// must not be silently swallowed.
type ConsistencyError struct {
	Op      string
	OrderID string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error in %s: order %s not in registry", e.Op, e.OrderID)
}
