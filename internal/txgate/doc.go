// Package txgate serializes write transactions against the asset store.
//
// A Gate is created once per process and shared by every component that
// persists cache metadata. Each write is an Operation: Start waits up to the
// gate's timeout for the current holder to finish, then begins the store
// transaction; Finish commits and wakes all waiters. Close rolls back an
// operation that started and never finished, so a deferred Close covers
// every early return.
package txgate
