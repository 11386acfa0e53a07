// Package config loads and validates the clinic core configuration.
//
// Configuration comes from a YAML file with CLINICCORE_* environment
// variable overrides. The surface is deliberately small: where the store
// lives, how it is pooled and synced, and how the core logs. The config
// object carries no behaviour of its own.
//
// Example config.yaml:
//
//	storage:
//	  path: "data/clinic.db"
//	  pool_size: 2
//	  busy_timeout: 5
//	  durability: "full"
//	export:
//	  default_page_size: 10
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
package config
