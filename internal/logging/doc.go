// Package logging provides the leveled logger shared by the thumbnail
// pipeline, the indexer and the ops HTTP server.
//
// Levels are DEBUG, INFO, WARN and ERROR, plus Fatal which exits. The level
// comes from DEBUG=true or LOG_LEVEL and can be overridden with SetLevel.
// Long-lived components use Component to get a prefixed logger:
//
//	log := logging.Component("scheduler")
//	log.Infof("interrupted, dropped %d background tasks", n)
package logging
