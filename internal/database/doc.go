// Package database opens the optional PostgreSQL pool shared by the audit
// mirror and the budget tracker.
package database
