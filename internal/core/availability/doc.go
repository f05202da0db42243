// Package availability holds the pure rules of the stashpoint search:
// which stashpoints are candidates for a query, how many bags existing
// bookings commit during a window, and how candidates become results.
//
// Nothing here performs I/O. Repositories that can push these rules into
// a database (PostGIS, SQL aggregates) must produce the same answers.
package availability
