// Package shm provides shared-memory pixel buffers and read-only file
// mappings.
//
// On Linux a Region is an anonymous memfd mapped MAP_SHARED, so its file
// descriptor can be handed to another process. Other platforms fall back to
// heap memory and report an Fd of -1.
package shm
