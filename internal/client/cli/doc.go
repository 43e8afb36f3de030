// Package cli provides the interactive authkeeper command-line client.
//
// It wires configuration, the local session database, the gRPC API client
// and an interactive REPL. A session saved by a previous run is restored on
// start, and every token rotation is written back so the next run resumes
// where this one stopped.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
