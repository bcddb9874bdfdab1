/*
Package filesystem provides the file operations used for source assets and
derived thumbnail artifacts.

# Retries

StatWithRetry and OpenWithRetry wrap os.Stat and os.Open with exponential
backoff for NFS stale file handle errors (ESTALE). Other errors fail
immediately. Defaults are 3 retries, 50ms initial backoff and 500ms cap:

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())

# Atomic writes

Artifact existence is the only signal that a thumbnail tier is done, so
artifacts are written with WriteFileAtomic: a temporary file in the target
directory is synced and renamed over the destination. Readers see either no
file or the complete file.

# Metrics

Operations report through an Observer installed with SetObserver. The
metrics package provides the Prometheus implementation; with no observer
installed recording is skipped, which keeps tests free of global state.
Paths are labelled by volume ("media", "cache", "database") through a
VolumeResolver.
*/
package filesystem
