// Package collector defines the connector contract shared by all upstream
// data sources, together with the rate-limiting, backoff, and retry machinery
// that drives a single collection cycle.
//
// A connector fetches one logical target (a unit of work such as a
// complex/area pair), parses the raw payload into normalized records, and is
// driven uniformly by Collect regardless of the data kind it produces.
package collector
