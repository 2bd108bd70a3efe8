// Package feed streams committed trades to WebSocket subscribers.
//
// Each subscriber gets its own bounded queue; a slow reader drops its oldest
// events instead of stalling ingestion or other subscribers.
package feed
