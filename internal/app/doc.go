// Package app wires configuration, storage, providers and the traversal
// engines into one object owned by the CLI.
//
// New validates the configuration, opens the scoped database and picks the
// transfer source for the chain. Track, Report and Mark run on the built
// components. Shutdown stops the worker pool and then closes the database.
package app
