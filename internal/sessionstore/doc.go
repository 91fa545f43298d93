// Package sessionstore provides core.SessionStore implementations.
//
// Memory keeps sessions in an expiring LRU inside the process and suits a
// single instance. Redis shares sessions between instances. Both store the
// JSON encoding of a session, so a value read back never aliases the one
// that was saved.
package sessionstore
