// Package vseries implements the equation combinator for virtual series:
// expressions like a + b/c whose leaves are readings from real series at a
// given instant. It is an optional collaborator on top of pkg/ringdb, not
// part of the storage engine itself.
package vseries
