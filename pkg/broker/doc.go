// Package broker implements the long-lived process that owns every open
// series file, serializes per-series access, and exposes the create,
// update, append, fetch, info, exists, delete, list, and get_config
// operations over a newline-delimited JSON wire protocol.
package broker
