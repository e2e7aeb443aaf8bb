// Package ratelimit paces requests to the feed service.
//
// A Pacer sleeps a uniformly random delay between a lower and upper bound
// before each request after the first, so page fetches never arrive at a
// fixed cadence. Wait honours context cancellation.
package ratelimit
