// Package client contains client-side building blocks for authkeeper.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     authkeeper session endpoints.
//  2. A concrete gRPC implementation (see GRPCClient) that attaches the
//     access token to every call, transparently rotates the token pair when
//     the server reports an expired access token, and maps gRPC statuses to
//     errors callers can match with errors.Is.
//  3. InitDatabase, which opens and migrates the CLI's local SQLite file.
//
// # Error Handling
//
// Transport conditions surface as ErrUnavailable and ErrUnauthorized. Domain
// failures reported by the server come back as *common.Error values, so
// errors.Is(err, common.ErrEmailAlreadyExists) works on the client too.
package client
