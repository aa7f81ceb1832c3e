// Package util provides common utility functions and constants used across
// termgrid. This package is intentionally kept dependency-free (no imports
// from other internal/* packages) so every layer can use it without
// introducing import cycles.
package util

import "time"

const (
	// AppName names the config/data directories and the default log file.
	AppName = "termgrid"

	// DatabaseFile is the inventory file inside the data directory. Older
	// unversioned inventories use the same name and are adopted in place.
	DatabaseFile = "servers.db"

	// LogFile is the default log file inside the data directory.
	LogFile = "termgrid.log"

	// DefaultSpawnTimeout bounds the spawn call of an external client. It does
	// not limit the lifetime of the launched session, only how long we wait
	// for the OS to accept the new process.
	// Used by: internal/dispatch (ProcessLauncher) and
	//          internal/appconfig (Default, normalize).
	DefaultSpawnTimeout = 5 * time.Second

	// ProbeTimeout is the default TCP dial timeout for reachability probes.
	// Used by: internal/probe and the `probe` CLI command.
	ProbeTimeout = 2 * time.Second

	// NotesPreviewLen is how many runes of a record's notes the list views
	// show before truncating.
	NotesPreviewLen = 30
)
