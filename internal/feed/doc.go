// Package feed keeps the short verdict history an operator sees next to each
// machine: the last few weighed items, oldest evicted first, each fading out
// after a fixed lifespan.
package feed
