// Package server implements the MCP (Model Context Protocol) server for the
// radiomics toolkit.
//
// The server exposes stored datasets and experiment results to
// MCP-compatible clients so they can be inspected without the CLI.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Datasets:
//   - dataset_analyze: label counts and depth/size distributions of a 3D set
//   - dataset_folds: cross-validation fold boundaries of an organised dataset
//
// Volumes:
//   - volume_statistics: intensity, shape and texture statistics of a sample
//   - volume_preview: PNG rendering of a slice with the mask outline
//
// Experiments:
//   - results_search: filter a results document by hyper-parameter value
//
// # Caching
//
// Decoded 3D sets are cached by folder and name for the lifetime of the
// process, so repeated statistics and previews do not re-read the archive.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Undefined scores (NaN) are reported as null.
//
// # Usage
//
//	srv := server.New()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
