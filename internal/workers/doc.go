/*
Package workers sizes goroutine pools.

Two kinds of sizing are provided.

CPU-scaled counts for batch work such as the indexer walk. These use
GOMAXPROCS, which Go 1.19+ sets from the container CPU limit, rather than
runtime.NumCPU, which reports host CPUs:

	numWorkers := workers.ForIO(16) // 2 per CPU, at most 16

INDEX_WORKERS overrides the computed value.

Fixed pool sizes for the thumbnail request manager. The fast pool defaults to
3 workers and the quality pool to 2; both may be pinned from the environment:

	env:
	- name: FAST_THUMB_WORKERS
	  value: "4"
	- name: QUALITY_THUMB_WORKERS
	  value: "2"

Invalid or non-positive overrides are logged and ignored. All functions are
safe for concurrent use.
*/
package workers
