// Package shm manages a fixed pool of shared pages identified by small
// integers. A page is allocated on the first open of its id, mapped into
// every process that opens it and released when the last mapping is closed.
package shm
