// Package proxy implements the edge request pipeline.
//
// A Pipeline serves one resolved request through a fixed sequence of states:
//
//	ADMITTED -> CACHE_CHECK -> CACHE_HIT -> DONE
//	                        -> CACHE_MISS -> UPSTREAM_ATTEMPT -> SUCCESS -> CACHE_WRITE -> DONE
//	                                                          -> ALL_FAILED -> ERROR
//
// An admission ticket is held for the whole sequence and released exactly
// once. For streamed responses the ticket travels with the response body
// and is released when the body is closed.
//
// Routes with failover try their candidates in priority order and accept
// only an exact 200; any other status or a transport fault moves on to the
// next candidate. Routes without failover have one candidate and relay its
// status verbatim, including 4xx and 5xx.
//
// Only bodiless GET and HEAD requests are cached. The cache key is built
// once from the first candidate's URL, so a response served by a mirror is
// stored under the primary's key. Cache faults degrade to a miss on read
// and to no write on write; they never fail the request.
//
// EdgeHandler is the HTTP front: it resolves routes, answers preflight and
// HEAD requests without touching upstream, and relays pipeline responses.
package proxy
