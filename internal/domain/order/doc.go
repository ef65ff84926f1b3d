// Package order holds the order record kept in the document store, the rules
// for merging repeated observations of the same order, and the store port the
// sync pipeline writes through.
//
// A record lives in exactly one lifecycle partition (pending, open, closed) and
// only moves forward. Flags are monotonic, timestamps other than LastUpdatedAt
// are write-once, and line items are replaced wholesale on every transform.
package order
