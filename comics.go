// Package comics provides the catalog, matching and synchronization engine
// behind a comic lookup command. A comic is resolved by number, by free-text
// query, or at random, and the local catalog is kept up to date with a remote
// archive.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, bolt/, http/).
package comics
