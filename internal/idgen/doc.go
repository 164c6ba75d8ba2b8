// Package idgen wraps the identifier generators used by the kernel so that
// they can be stubbed in tests. Boot identifiers are opaque UUID strings;
// process identifiers come from a strictly increasing Sequence.
package idgen
