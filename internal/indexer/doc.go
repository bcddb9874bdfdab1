// Package indexer keeps the asset table in step with the media directory.
//
// A full pass walks the tree with a pool of stat workers, upserts assets in
// batches inside gated write transactions, prunes rows whose files are gone
// and queues background THUMB generation for new or changed assets.
//
// The Watcher reacts to file close and import events reported by fsnotify.
// Events are debounced per path; the file's current state then decides
// whether the asset is refreshed (artifacts invalidated, foreground
// generation queued) or removed.
//
// Hidden files and directories (prefixed with '.') are never indexed.
package indexer
