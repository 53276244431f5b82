// Package memory holds the typed object pool used to reuse scratch
// buffers on the encoding path, so building and archiving a round does
// not allocate a fresh buffer per book.
package memory
