// Package prioritylock provides a blocking lock whose waiters are served in
// descending pid order. Ownership is handed directly from the releaser to the
// next waiter, so a woken waiter never contends again.
package prioritylock
