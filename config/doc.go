// Package config loads runtime settings from YAML and the environment.
//
//	pool:
//	  driver: postgres
//	  url: postgres://localhost:5432/app?sslmode=disable
//	  max_active: 20
//	  time_to_wait: 5s
//	executor:
//	  default_type: reuse
//	caches:
//	  blog.posts:
//	    eviction: fifo
//	    size: 500
//	    flush_interval: 10m
//	  blog.comments:
//	    ref: blog.posts
//
// Every key can be overridden with an environment variable prefixed with
// SQLSESSION_, e.g. SQLSESSION_POOL_MAX_ACTIVE=20. Keys are case-insensitive,
// so namespaces are lower-cased on load.
package config
