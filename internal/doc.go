// Package internal holds helpers private to edgeauth.
//
// Sub-packages:
//
//   - audit: asynchronous audit dispatch and sinks
//   - rate: Redis fixed-window counters for login and refresh throttling
package internal
