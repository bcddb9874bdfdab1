// Package mediatypes classifies source files into asset kinds.
//
// It is a dependency-free leaf package so that the database, indexer and
// thumbnail packages can share AssetKind without import cycles.
//
//	kind := mediatypes.KindForPath("/media/song.mp3") // KindAudio
package mediatypes
