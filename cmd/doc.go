// Package cmd implements the command-line interface for the akv distributed
// document store. It provides a hierarchical command structure with operations
// for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - doc: Commands for document operations (get, upsert, insert, replace, remove, etc.)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the akv server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See akv -help for a list of all commands.
package cmd
