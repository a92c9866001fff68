package page

import "errors"

// ErrPageFull signals that a leaf or internal page has reached max_items
// and cannot admit another key without a split. It is an internal control
// signal consumed exactly once per page by the split cascade in the tree
// package; it must never be returned to a caller of Tree.Set.
var ErrPageFull = errors.New("page: full")

// ErrOutOfRange is returned by a setter called with a slot index past the
// page's current item count.
var ErrOutOfRange = errors.New("page: slot index out of range")

// ErrInvariantViolation marks a condition the page layer asserts rather
// than recovers from — e.g. calling a meta accessor on a non-meta page, or
// inserting a pointer into an internal page whose ptr[0] was never set.
// The Tree holding a page that returns this must not continue to be used.
var ErrInvariantViolation = errors.New("page: invariant violation")
