// Package handlers implements the HTTP operations API of the media library
// service.
//
// # Endpoints
//
//	GET  /healthz                          - Health with index and database state
//	GET  /livez                            - Liveness probe (GET and HEAD)
//	GET  /readyz                           - Ready after the first index pass
//	GET  /version                          - Build information
//	GET  /metrics                          - Prometheus metrics (when enabled)
//	GET  /api/stats                        - Library counts and pipeline depths
//	POST /api/reindex                      - Start an index pass
//	POST /api/thumbnails/generate?limit=N  - Queue missing THUMB chains
//	POST /api/thumbnails/aging?keep=N      - Delete LCD artifacts beyond keep
//	POST /api/thumbnails/interrupt         - Drop queued background tasks
//	GET  /api/assets/{id}/pixelmap         - Run a pixel request, return JPEG
//
// The pixelmap endpoint accepts size=WxH (default 256x256) and
// mode=both|fast|quality. The X-Pixelmap-Pass response header names the
// pass that produced the image.
//
// Handlers depend on small interfaces rather than concrete services so the
// routes can be tested with fakes.
package handlers
