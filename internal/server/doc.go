// Package server implements the MCP (Model Context Protocol) server that
// exposes the pixel mosaic engine as tools.
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
// Image information:
//   - image_load: Load image, report metadata and optional block grid size
//   - image_dimensions: Get width and height
//
// Analysis:
//   - image_edge_map: Edge strength map as grayscale PNG
//   - image_grid_overlay: Fitted block grid drawn over the image
//
// Pixelation:
//   - image_pixelate: Edge-aware adaptive pixelation
//   - image_pixelate_naive: Fixed-grid pixelation for comparison
//   - image_quantize: Palette reduction
//   - image_pixelate_batch: image_pixelate over many files in parallel
//
// Image-producing tools return {width, height, image_base64, mime_type} plus
// tool-specific statistics, and save a copy when output_path is given.
//
// # Image Caching
//
// Decoded source images are cached by absolute path for the lifetime of the
// process. Every tool call converts the cached image into its own pixel
// buffer, so concurrent calls never share mutable pixels.
//
// # Error Handling
//
//   - -32601: unknown method
//   - -32602: malformed params, missing path, unknown tool
//   - -32000: the tool ran and failed (unreadable file, failed save)
//
// The error data field carries the Go error string.
package server
