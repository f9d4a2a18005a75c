// Package backup persists SceneBackup records taken before repairs.
//
// The collection is a flat JSON array in a single file. Backups are only
// ever appended; the same scene may appear many times. Every append
// rewrites the whole file through a temp file and rename. A missing or
// unreadable file loads as an empty collection.
//
// The file carries no schema version.
package backup
