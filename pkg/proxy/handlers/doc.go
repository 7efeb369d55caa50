// Package handlers provides the HTTP handlers that sit in front of the
// proxy pipeline.
//
// EdgeHandler serves every proxied path:
//
//   - OPTIONS is answered locally with the CORS header set and a
//     preflight Max-Age.
//   - HEAD is answered from the route's cache only; a miss returns 200
//     with the policy headers and no body.
//   - Every other method resolves a route and runs the pipeline.
//
// RootHandler answers "GET /" with a plain "OK" for load balancer checks.
//
// # Error Handling
//
// Pipeline errors are written in the JSON error envelope:
//
//	{
//	  "error": {
//	    "message": "All upstream origins failed",
//	    "type": "bad_gateway",
//	    "code": "origins_exhausted"
//	  }
//	}
//
// Error responses carry the CORS headers so browser clients can read them.
package handlers
