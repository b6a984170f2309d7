// Package logging configures structured slog output for ontosearch.
// Logs go to a size-rotated JSON file under ~/.ontosearch/logs/ and,
// outside MCP mode, to stderr as well.
package logging
