// Package prometheus exposes edgeauth engine metrics as a prometheus.Collector.
//
// Register [NewCollector] on an existing registry, or mount [Handler] for a
// standalone scrape endpoint. Counters are exported as-is. The resolve latency
// histogram is exported with the engine's fixed bucket bounds and a zero sum.
package prometheus
