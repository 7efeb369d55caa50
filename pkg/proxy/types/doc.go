// Package types defines the JSON error envelope the edge returns when a
// request cannot be served:
//
//	{"error": {"message": "...", "type": "bad_gateway", "code": "origins_exhausted"}}
//
// The type selects the HTTP status; the code names the specific failure.
package types
