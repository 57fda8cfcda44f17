// Package rocker drives the docker CLI through typed command builders and
// records the merged output of every run.
package rocker

// Version is the Rocker release, reported by the CLI and the MCP server.
const Version = "0.3.0"
