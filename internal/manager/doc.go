// Package manager serves asynchronous thumbnail pixel requests.
//
// A request names a source and a target size. Requests of at least thumb
// size first take a fast pass on a fixed pool (3 workers by default) that
// decodes an already persisted smaller artifact into shared memory and
// delivers it at once. The quality pass, on its own pool (2 workers by
// default), asks the thumbnail engine for the tier matching the size,
// generating it if missing, and delivers the fitted result.
//
// Deliveries are posted to the caller's delivery.Executor. A request can be
// cancelled with RemoveRequest at any time; work in flight completes but is
// not delivered.
package manager
