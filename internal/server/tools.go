package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type props map[string]interface{}

func objectSchema(properties props, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}(properties),
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(kind, description string) map[string]interface{} {
	return map[string]interface{}{"type": kind, "description": description}
}

func propDefault(kind, description string, def interface{}) map[string]interface{} {
	p := prop(kind, description)
	p["default"] = def
	return p
}

func enumProp(description string, def string, values ...string) map[string]interface{} {
	p := propDefault("string", description, def)
	p["enum"] = values
	return p
}

// Shared property descriptions.
var (
	pathProp       = prop("string", "Absolute path to the image file")
	outputPathProp = prop("string", "Optional path to also save the result. Format follows the extension (.png, .jpg, .gif, .bmp, .tif)")
	blockSizeProp  = propDefault("integer", "Target block edge length in pixels", 8)
	sharpnessProp  = propDefault("number", "0..1. Higher keeps only stronger edges, snaps corners harder and favors the block median over the mean", 0.5)
)

// edgeProps are the edge detection knobs shared by several tools.
func edgeProps(p props) props {
	p["threshold_mode"] = enumProp("Edge thresholding strategy", "percentile", "percentile", "hysteresis")
	p["binarize"] = propDefault("boolean", "Set surviving edge pixels to full strength", true)
	p["blur_radius"] = propDefault("number", "Gaussian pre-blur radius before edge detection. 0 disables", 0)
	return p
}

// optimizerProps are the grid fitting knobs shared by several tools.
func optimizerProps(p props) props {
	p["search_radius"] = propDefault("integer", "Corner search neighborhood; the candidate square has side floor(sqrt(search_radius))", 25)
	p["iterations"] = propDefault("integer", "Relaxation passes of the corner optimizer", 3)
	p["step_size"] = propDefault("number", "Spacing in pixels between corner candidates", 1.0)
	p["curve_degree"] = enumPropInt("Bezier degree of curved cell edges", 2, 2, 3)
	p["curve_smoothness"] = propDefault("number", "0..1, how far curved edges may bend", 0.5)
	return p
}

func enumPropInt(description string, def int, values ...int) map[string]interface{} {
	p := propDefault("integer", description, def)
	p["enum"] = values
	return p
}

// pixelateProps describes every option of the adaptive pipeline.
func pixelateProps(p props) props {
	p["block_size"] = blockSizeProp
	p["sharpness"] = sharpnessProp
	p["mode"] = enumProp("Block layout: uniform edge-gated blocks, blocks following the fitted grid, or the fitted grid with curved cell edges",
		"blocks", "blocks", "adaptive", "curved")
	p["max_colors"] = propDefault("integer", "Reduce the output to at most this many colors. 0 keeps all", 0)
	p["palette_method"] = enumProp("Palette candidate source", "diverse", "diverse", "kmeans", "dominant")
	p["color_distance"] = enumProp("Color distance used by palette selection and remapping", "rgb", "rgb", "lab")
	return optimizerProps(edgeProps(p))
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and, when block_size is given, the block grid it produces.",
			InputSchema: objectSchema(props{
				"path":       pathProp,
				"block_size": prop("integer", "Optional block size to report the resulting cols x rows"),
			}, "path"),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: objectSchema(props{
				"path": pathProp,
			}, "path"),
		},

		// Analysis
		{
			Name:        "image_edge_map",
			Description: "Compute the edge strength map used to fit mosaic blocks. Returns a grayscale PNG where white marks edges.",
			InputSchema: objectSchema(edgeProps(props{
				"path":        pathProp,
				"sharpness":   sharpnessProp,
				"output_path": outputPathProp,
			}), "path"),
		},
		{
			Name:        "image_grid_overlay",
			Description: "Fit the deformable block grid to the image edges and draw it over the source image.",
			InputSchema: objectSchema(optimizerProps(edgeProps(props{
				"path":         pathProp,
				"block_size":   blockSizeProp,
				"sharpness":    sharpnessProp,
				"optimize":     propDefault("boolean", "Run the corner optimizer. false draws the uniform lattice", true),
				"curved":       propDefault("boolean", "Fit and draw curved cell edges", false),
				"grid_color":   propDefault("string", "Line color as hex (#RRGGBB or #RRGGBBAA)", "#FF000080"),
				"line_width":   propDefault("number", "Line width in pixels", 1.0),
				"show_corners": propDefault("boolean", "Mark interior corners with dots", false),
				"output_path":  outputPathProp,
			})), "path"),
		},

		// Pixelation
		{
			Name:        "image_pixelate",
			Description: "Turn an image into edge-aware pixel art: blocks bend toward the image's own edges and edge blocks keep crisp colors.",
			InputSchema: objectSchema(pixelateProps(props{
				"path":        pathProp,
				"output_path": outputPathProp,
			}), "path"),
		},
		{
			Name:        "image_pixelate_naive",
			Description: "Fixed-grid pixelation (box downsample, nearest-neighbor upsample) for comparison with image_pixelate.",
			InputSchema: objectSchema(props{
				"path":        pathProp,
				"block_size":  blockSizeProp,
				"output_path": outputPathProp,
			}, "path"),
		},
		{
			Name:        "image_quantize",
			Description: "Reduce an image to at most max_colors colors, keeping the most frequent color and the most distinct others.",
			InputSchema: objectSchema(props{
				"path":           pathProp,
				"max_colors":     propDefault("integer", "Maximum number of colors", 16),
				"method":         enumProp("Palette candidate source", "diverse", "diverse", "kmeans", "dominant"),
				"color_distance": enumProp("Color distance", "rgb", "rgb", "lab"),
				"output_path":    outputPathProp,
			}, "path"),
		},
		{
			Name:        "image_pixelate_batch",
			Description: "Run image_pixelate over many images in parallel. Top-level options apply to every item; an item may override any of them. Each item is saved to its output_path; items without one return base64 PNG.",
			InputSchema: objectSchema(pixelateProps(props{
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Images to process",
					"items": objectSchema(pixelateProps(props{
						"path":        pathProp,
						"output_path": outputPathProp,
					}), "path"),
				},
				"workers": propDefault("integer", "Maximum images processed at once. 0 uses all CPUs", 0),
			}), "items"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
