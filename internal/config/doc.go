// Package config loads the steward configuration directory.
//
// A configuration directory holds config.yaml with process wide settings and
// a clusters/ subdirectory with one YAML file per cluster definition:
//
//	~/.config/steward/
//	├── config.yaml
//	└── clusters/
//	    ├── search.yaml
//	    └── web.yaml
//
// A missing config.yaml means defaults. Cluster files are loaded
// independently: a broken file is reported in FileErrors
// while the valid definitions are still returned, so one typo does not take
// every cluster down.
//
// Durations use Go syntax ("500ms", "5m"). Port ranges accept "N", "N-M",
// "N+" and comma separated combinations.
package config
