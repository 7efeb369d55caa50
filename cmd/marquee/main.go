// Marquee is a caching reverse proxy for a movie metadata API and its image
// CDN.
//
// It sits in front of the upstream origins, providing:
//   - Prefix routing of API and image paths to origin groups
//   - Ordered failover across mirrors for images
//   - An in-memory and a durable (SQLite or Redis) response cache
//   - Bounded upstream concurrency
//   - CORS and Cache-Control headers on every response
//
// Usage:
//
//	# Start the proxy with default configuration
//	marquee run
//
//	# Start with a custom configuration file
//	marquee run --config /etc/marquee/config.yaml
//
//	# Check a configuration file and print the resolved routes
//	marquee validate --config config.yaml
//
//	# Inspect or purge the durable cache
//	marquee cache list --prefix "GET https://image.tmdb.org/"
//	marquee cache purge --prefix "GET https://api.themoviedb.org/3/movie/"
package main

func main() {
	Execute()
}
