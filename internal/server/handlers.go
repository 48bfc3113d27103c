package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/grid"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/mosaic"
	"github.com/ironsheep/pixel-mosaic-mcp/internal/palette"
)

// errInvalidArgs marks tool calls rejected before any work was done. They
// are reported as JSON-RPC invalid params instead of tool failures.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_pixelate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments return -32602; failures while running the tool return -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, errInvalidArgs) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Analysis
	case "image_edge_map":
		return s.handleImageEdgeMap(args)
	case "image_grid_overlay":
		return s.handleImageGridOverlay(args)

	// Pixelation
	case "image_pixelate":
		return s.handleImagePixelate(args)
	case "image_pixelate_naive":
		return s.handleImagePixelateNaive(args)
	case "image_quantize":
		return s.handleImageQuantize(args)
	case "image_pixelate_batch":
		return s.handleImagePixelateBatch(ctx, args)

	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidArgs, name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments into v. Missing arguments decode as
// an empty object so every option falls back to its default.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

func requirePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return nil
}

// saveOutput writes img to path when one was requested and returns the
// path it wrote.
func saveOutput(img image.Image, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if err := imaging.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}

// === Shared option arguments ===

const defaultSharpness = 0.5

// Upper bounds on the arguments whose cost grows without limit. Larger
// requests are clamped so one call cannot stall the server.
const (
	maxSearchRadius = 1024 // 32x32 candidates per corner
	maxIterations   = 100
	maxBlurRadius   = 50.0
)

// clampArg caps v at limit, logging when it had to.
func clampArg[T int | float64](name string, v, limit T) T {
	if v > limit {
		log.Printf("%s %v exceeds limit, using %v", name, v, limit)
		return limit
	}
	return v
}

// edgeArgs are the edge detection arguments. Pointer fields distinguish an
// explicit zero from an omitted value.
type edgeArgs struct {
	Sharpness     *float64 `json:"sharpness"`
	ThresholdMode string   `json:"threshold_mode"`
	Binarize      *bool    `json:"binarize"`
	BlurRadius    float64  `json:"blur_radius"`
}

func (a edgeArgs) sharpness() float64 {
	if a.Sharpness == nil {
		return defaultSharpness
	}
	return *a.Sharpness
}

func (a edgeArgs) edgeOptions() imaging.EdgeOptions {
	opts := imaging.DefaultEdgeOptions()
	opts.Sharpness = a.sharpness()
	opts.Mode = imaging.ParseThresholdMode(a.ThresholdMode)
	if a.Binarize != nil {
		opts.Binarize = *a.Binarize
	}
	opts.BlurRadius = clampArg("blur_radius", a.BlurRadius, maxBlurRadius)
	return opts
}

// optimizerArgs are the corner optimizer arguments.
type optimizerArgs struct {
	SearchRadius    int      `json:"search_radius"`
	Iterations      *int     `json:"iterations"`
	StepSize        float64  `json:"step_size"`
	CurveDegree     int      `json:"curve_degree"`
	CurveSmoothness *float64 `json:"curve_smoothness"`
}

func (a optimizerArgs) optimizerOptions(sharpness float64) grid.Options {
	opts := grid.DefaultOptions()
	opts.Sharpness = sharpness
	if a.SearchRadius > 0 {
		opts.SearchRadius = clampArg("search_radius", a.SearchRadius, maxSearchRadius)
	}
	if a.Iterations != nil {
		opts.Iterations = clampArg("iterations", *a.Iterations, maxIterations)
	}
	if a.StepSize > 0 {
		opts.StepSize = a.StepSize
	}
	if a.CurveDegree != 0 {
		opts.CurveDegree = a.CurveDegree
	}
	if a.CurveSmoothness != nil {
		opts.CurveSmoothness = *a.CurveSmoothness
	}
	return opts
}

// pipelineArgs are the arguments of the adaptive pipeline, shared by
// image_pixelate and image_pixelate_batch.
type pipelineArgs struct {
	edgeArgs
	optimizerArgs
	BlockSize     int    `json:"block_size"`
	Mode          string `json:"mode"`
	MaxColors     int    `json:"max_colors"`
	PaletteMethod string `json:"palette_method"`
	ColorDistance string `json:"color_distance"`
}

func (a pipelineArgs) options() mosaic.Options {
	opts := mosaic.DefaultOptions()
	if a.BlockSize != 0 {
		opts.BlockSize = a.BlockSize
	}
	opts.Sharpness = a.sharpness()
	opts.Mode = mosaic.ParseRenderMode(a.Mode)
	opts.Edge = a.edgeOptions()
	opts.Optimizer = a.optimizerOptions(opts.Sharpness)
	opts.MaxColors = a.MaxColors
	opts.Palette = palette.Options{
		Method:   palette.ParseMethod(a.PaletteMethod),
		Distance: palette.ParseDistance(a.ColorDistance),
	}
	return opts
}

// === Image information handlers ===

type imageLoadArgs struct {
	Path      string `json:"path"`
	BlockSize int    `json:"block_size"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path, a.BlockSize)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Analysis handlers ===

type imageEdgeMapArgs struct {
	edgeArgs
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

type edgeMapResult struct {
	*imaging.ImageResult
	Mode        string `json:"threshold_mode"`
	EdgePixels  int    `json:"edge_pixels"`
	Accelerated bool   `json:"accelerated"`
	SavedTo     string `json:"saved_to,omitempty"`
}

func (s *Server) handleImageEdgeMap(args json.RawMessage) (interface{}, error) {
	var a imageEdgeMapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	buf, err := imaging.LoadBuffer(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	opts := a.edgeOptions()
	edges, accelerated := imaging.DetectEdges(buf, opts)
	img := edges.ToImage()

	encoded, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	saved, err := saveOutput(img, a.OutputPath)
	if err != nil {
		return nil, err
	}

	return &edgeMapResult{
		ImageResult: encoded,
		Mode:        opts.Mode.String(),
		EdgePixels:  edges.EdgeCount(),
		Accelerated: accelerated,
		SavedTo:     saved,
	}, nil
}

type imageGridOverlayArgs struct {
	edgeArgs
	optimizerArgs
	Path        string  `json:"path"`
	BlockSize   int     `json:"block_size"`
	Optimize    *bool   `json:"optimize"`
	Curved      bool    `json:"curved"`
	GridColor   string  `json:"grid_color"`
	LineWidth   float64 `json:"line_width"`
	ShowCorners bool    `json:"show_corners"`
	OutputPath  string  `json:"output_path"`
}

type gridOverlayResult struct {
	*imaging.ImageResult
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	EdgePixels int        `json:"edge_pixels"`
	Optimizer  grid.Stats `json:"optimizer"`
	SavedTo    string     `json:"saved_to,omitempty"`
}

func (s *Server) handleImageGridOverlay(args json.RawMessage) (interface{}, error) {
	var a imageGridOverlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if a.BlockSize == 0 {
		a.BlockSize = mosaic.DefaultOptions().BlockSize
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}

	buf, err := imaging.LoadBuffer(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	g := grid.New(buf.Width, buf.Height, a.BlockSize)
	opts := a.optimizerOptions(a.sharpness())
	opts.UseCurvedEdges = a.Curved

	result := &gridOverlayResult{Rows: g.Rows, Cols: g.Cols}
	if a.Optimize == nil || *a.Optimize {
		edges, _ := imaging.DetectEdges(buf, a.edgeOptions())
		result.EdgePixels = edges.EdgeCount()
		result.Optimizer = grid.Optimize(g, edges, opts)
	}

	img, err := grid.Overlay(buf.ToImage(), g, grid.OverlayOptions{
		Color:       a.GridColor,
		LineWidth:   a.LineWidth,
		ShowCorners: a.ShowCorners,
		Curve:       opts.Curve(),
	})
	if err != nil {
		return nil, err
	}

	if result.ImageResult, err = imaging.EncodePNG(img); err != nil {
		return nil, err
	}
	if result.SavedTo, err = saveOutput(img, a.OutputPath); err != nil {
		return nil, err
	}
	return result, nil
}

// === Pixelation handlers ===

type imagePixelateArgs struct {
	pipelineArgs
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

type pixelateResult struct {
	*imaging.ImageResult
	Mode        string     `json:"mode"`
	BlockSize   int        `json:"block_size"`
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	EdgePixels  int        `json:"edge_pixels"`
	Accelerated bool       `json:"accelerated"`
	Colors      int        `json:"colors"`
	Optimizer   grid.Stats `json:"optimizer"`
	SavedTo     string     `json:"saved_to,omitempty"`
}

// summarize builds the tool result for one pipeline run. The image is
// encoded only when encode is true.
func summarize(res *mosaic.Result, opts mosaic.Options, encode bool) (*pixelateResult, error) {
	out := &pixelateResult{
		Mode:        opts.Mode.String(),
		BlockSize:   opts.BlockSize,
		EdgePixels:  res.Edges.EdgeCount(),
		Accelerated: res.Accelerated,
		Colors:      palette.CountColors(res.Buffer),
		Optimizer:   res.Stats,
	}
	if res.Grid != nil {
		out.Rows, out.Cols = res.Grid.Rows, res.Grid.Cols
	}
	if encode {
		encoded, err := imaging.EncodePNG(res.Buffer.ToImage())
		if err != nil {
			return nil, err
		}
		out.ImageResult = encoded
	}
	return out, nil
}

func (s *Server) handleImagePixelate(args json.RawMessage) (interface{}, error) {
	var a imagePixelateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	buf, err := imaging.LoadBuffer(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	opts := a.options()
	res := mosaic.Pixelate(buf, opts)

	out, err := summarize(res, opts, true)
	if err != nil {
		return nil, err
	}
	if out.SavedTo, err = saveOutput(res.Buffer.ToImage(), a.OutputPath); err != nil {
		return nil, err
	}
	return out, nil
}

type imagePixelateNaiveArgs struct {
	Path       string `json:"path"`
	BlockSize  int    `json:"block_size"`
	OutputPath string `json:"output_path"`
}

type naiveResult struct {
	*imaging.ImageResult
	BlockSize int    `json:"block_size"`
	SavedTo   string `json:"saved_to,omitempty"`
}

func (s *Server) handleImagePixelateNaive(args json.RawMessage) (interface{}, error) {
	var a imagePixelateNaiveArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if a.BlockSize == 0 {
		a.BlockSize = mosaic.DefaultOptions().BlockSize
	}
	buf, err := imaging.LoadBuffer(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	img := imaging.PixelateBlocks(buf, a.BlockSize).ToImage()
	encoded, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	saved, err := saveOutput(img, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &naiveResult{ImageResult: encoded, BlockSize: a.BlockSize, SavedTo: saved}, nil
}

type imageQuantizeArgs struct {
	Path          string `json:"path"`
	MaxColors     int    `json:"max_colors"`
	Method        string `json:"method"`
	ColorDistance string `json:"color_distance"`
	OutputPath    string `json:"output_path"`
}

type quantizeResult struct {
	*imaging.ImageResult
	Method       string `json:"method"`
	ColorsBefore int    `json:"colors_before"`
	ColorsAfter  int    `json:"colors_after"`
	SavedTo      string `json:"saved_to,omitempty"`
}

func (s *Server) handleImageQuantize(args json.RawMessage) (interface{}, error) {
	var a imageQuantizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	if a.MaxColors == 0 {
		a.MaxColors = 16
	}
	buf, err := imaging.LoadBuffer(s.cache, a.Path)
	if err != nil {
		return nil, err
	}

	opts := palette.Options{
		Method:   palette.ParseMethod(a.Method),
		Distance: palette.ParseDistance(a.ColorDistance),
	}
	out := palette.Quantize(buf, a.MaxColors, opts)
	img := out.ToImage()

	encoded, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	saved, err := saveOutput(img, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &quantizeResult{
		ImageResult:  encoded,
		Method:       opts.Method.String(),
		ColorsBefore: palette.CountColors(buf),
		ColorsAfter:  palette.CountColors(out),
		SavedTo:      saved,
	}, nil
}

// batchItem is one image of a batch. Pipeline fields set on the item
// override the batch-level ones.
type batchItem struct {
	pipelineArgs
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

type imagePixelateBatchArgs struct {
	Items   []json.RawMessage `json:"items"`
	Workers int               `json:"workers"`
}

// decodeBatchItem layers item over the batch-level pipeline arguments in
// args. Both are decoded fresh so pointer fields are never shared between
// items.
func decodeBatchItem(args, item json.RawMessage) (batchItem, error) {
	var it batchItem
	if err := decodeArgs(args, &it.pipelineArgs); err != nil {
		return it, err
	}
	if err := decodeArgs(item, &it); err != nil {
		return it, err
	}
	return it, nil
}

type batchItemResult struct {
	Path string `json:"path"`
	*pixelateResult
}

type batchResult struct {
	Count int               `json:"count"`
	Items []batchItemResult `json:"items"`
}

func (s *Server) handleImagePixelateBatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imagePixelateBatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", errInvalidArgs)
	}

	items := make([]batchItem, len(a.Items))
	jobs := make([]mosaic.Job, len(a.Items))
	for i, raw := range a.Items {
		item, err := decodeBatchItem(args, raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item.Path == "" {
			return nil, fmt.Errorf("%w: item %d has no path", errInvalidArgs, i)
		}
		buf, err := imaging.LoadBuffer(s.cache, item.Path)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items[i] = item
		jobs[i] = mosaic.Job{Source: buf, Options: item.options()}
	}

	results, err := mosaic.PixelateBatch(ctx, jobs, a.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to run batch: %w", err)
	}

	out := batchResult{Count: len(results), Items: make([]batchItemResult, len(results))}
	for i, res := range results {
		item := items[i]
		summary, err := summarize(res, jobs[i].Options, item.OutputPath == "")
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if summary.SavedTo, err = saveOutput(res.Buffer.ToImage(), item.OutputPath); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out.Items[i] = batchItemResult{Path: item.Path, pixelateResult: summary}
	}
	return out, nil
}
