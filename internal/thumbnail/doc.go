// Package thumbnail generates and serves the derived image artifacts of
// media assets.
//
// Every asset has up to four artifacts stored under a deterministic path
// derived from its source path: THM (short edge 256), MTH (128 square),
// YEAR (64 square) and LCD (fit to the screen). THM, MTH and YEAR are
// produced together from one decode; LCD is produced on demand. The
// existence of an artifact file is the only signal that it is ready.
//
// Concurrent requests for the same asset are collapsed by a Registry so
// only one caller decodes the source. Metadata writes go through a
// txgate.Gate.
package thumbnail
