// Package config provides configuration management for the marquee edge proxy.
//
// Configuration is read from a YAML file, decoded on top of the defaults in
// defaults.go, overridden by environment variables, and validated.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MARQUEE_SECTION_FIELD:
//
//   - MARQUEE_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - MARQUEE_ADMISSION_MAX_CONCURRENT overrides admission.max_concurrent
//   - MARQUEE_CACHE_DURABLE_BACKEND overrides cache.durable.backend
//
// Routes are only configurable from the file.
//
// # Hot Reload
//
// When watch.enabled is set, a Watcher observes the file and the Holder
// swaps in the new configuration if it validates. Only routes and the log
// level take effect without a restart.
//
// # Example Configuration
//
//	proxy:
//	  listen_address: "0.0.0.0:8080"
//	admission:
//	  max_concurrent: 5
//	routes:
//	  - name: api
//	    class: api
//	    prefixes: ["/3/", "/4/"]
//	    origins:
//	      - url: https://api.themoviedb.org
//	    ttl: 600s
//	    store: memory
//	  - name: media
//	    class: media
//	    prefixes: ["/t/p/"]
//	    origins:
//	      - {name: primary, url: https://image.tmdb.org, priority: 0}
//	      - {name: mirror, url: https://images.example.net, priority: 1}
//	    ttl: 24h
//	    store: durable
//	    failover: true
//	    follow_redirects: true
//	cache:
//	  durable:
//	    backend: sqlite
//	    sqlite:
//	      path: data/cache.db
package config
