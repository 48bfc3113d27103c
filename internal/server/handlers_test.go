package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// createTestImageFile writes a solid-color PNG and returns its path.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writeTestPNG(t, img)
}

// createLineImageFile writes a black PNG with a vertical white line.
func createLineImageFile(t *testing.T, width, height, x0, lineWidth int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if x >= x0 && x < x0+lineWidth {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return writeTestPNG(t, img)
}

func writeTestPNG(t *testing.T, img image.Image) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return f.Name()
}

// callTool runs a tools/call request for name with args.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult calls name and decodes the JSON text content of a successful
// result.
func toolResult(t *testing.T, s *Server, name string, args interface{}) map[string]interface{} {
	t.Helper()

	resp := callTool(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s failed: %+v", name, resp.Error)
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content %v", content)
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	return out
}

// assertImage checks the base64 PNG fields of a result.
func assertImage(t *testing.T, result map[string]interface{}, width, height int) {
	t.Helper()

	if result["mime_type"] != "image/png" {
		t.Errorf("mime_type = %v", result["mime_type"])
	}
	if s, _ := result["image_base64"].(string); s == "" {
		t.Error("image_base64 is empty")
	}
	if result["width"] != float64(width) || result["height"] != float64(height) {
		t.Errorf("size = %vx%v, want %dx%d", result["width"], result["height"], width, height)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New()
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	result := toolResult(t, s, "image_load", map[string]interface{}{"path": path, "block_size": 30})
	if result["width"] != float64(100) || result["format"] != "png" {
		t.Errorf("unexpected info %v", result)
	}
	blocks := result["block_grid"].(map[string]interface{})
	if blocks["cols"] != float64(4) || blocks["rows"] != float64(3) {
		t.Errorf("block grid = %v, want 4x3", blocks)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New()
	path := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	result := toolResult(t, s, "image_dimensions", map[string]interface{}{"path": path})
	if result["width"] != float64(200) || result["height"] != float64(150) {
		t.Errorf("dimensions = %v", result)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := New()

	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
	}{
		{"missing file", "image_load", map[string]interface{}{"path": "/nonexistent/image.png"}, codeToolFailed},
		{"missing path", "image_pixelate", map[string]interface{}{}, codeInvalidParams},
		{"wrong type", "image_pixelate", map[string]interface{}{"path": 5}, codeInvalidParams},
		{"unknown tool", "image_crop", map[string]interface{}{"path": "/x.png"}, codeInvalidParams},
		{"empty batch", "image_pixelate_batch", map[string]interface{}{"items": []interface{}{}}, codeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d (%v)", resp.Error.Code, tt.wantCode, resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`[1,2,3]`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("error = %+v, want invalid params", resp.Error)
	}
}

func TestHandleImageEdgeMap(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 40, 30, 15, 3)

	for _, mode := range []string{"percentile", "hysteresis"} {
		result := toolResult(t, s, "image_edge_map", map[string]interface{}{
			"path":           path,
			"threshold_mode": mode,
		})
		assertImage(t, result, 40, 30)
		if result["threshold_mode"] != mode {
			t.Errorf("threshold_mode = %v, want %s", result["threshold_mode"], mode)
		}
		if n, _ := result["edge_pixels"].(float64); n <= 0 {
			t.Errorf("%s: no edge pixels reported", mode)
		}
		if result["accelerated"] != false {
			t.Error("no backend registered, should not be accelerated")
		}
	}
}

func TestHandleImagePixelate(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 60, 60, 24, 3)

	for _, mode := range []string{"blocks", "adaptive", "curved"} {
		t.Run(mode, func(t *testing.T) {
			result := toolResult(t, s, "image_pixelate", map[string]interface{}{
				"path":       path,
				"block_size": 10,
				"sharpness":  1.0,
				"mode":       mode,
			})
			assertImage(t, result, 60, 60)

			if result["mode"] != mode {
				t.Errorf("mode = %v", result["mode"])
			}
			if result["rows"] != float64(6) || result["cols"] != float64(6) {
				t.Errorf("grid = %vx%v, want 6x6", result["cols"], result["rows"])
			}
			if _, ok := result["optimizer"].(map[string]interface{}); !ok {
				t.Error("optimizer stats missing")
			}
			if _, saved := result["saved_to"]; saved {
				t.Error("saved_to reported without output_path")
			}
		})
	}
}

func TestHandleImagePixelate_ExplicitZeroSharpness(t *testing.T) {
	a := imagePixelateArgs{}
	if err := decodeArgs(json.RawMessage(`{"path":"x","sharpness":0,"binarize":false,"iterations":0}`), &a); err != nil {
		t.Fatalf("decodeArgs failed: %v", err)
	}

	opts := a.options()
	if opts.Sharpness != 0 || opts.Edge.Sharpness != 0 || opts.Optimizer.Sharpness != 0 {
		t.Errorf("explicit zero sharpness lost: %v", opts.Sharpness)
	}
	if opts.Edge.Binarize {
		t.Error("explicit binarize=false lost")
	}
	if opts.Optimizer.Iterations != 0 {
		t.Errorf("explicit iterations=0 lost: %d", opts.Optimizer.Iterations)
	}

	var defaults imagePixelateArgs
	if err := decodeArgs(nil, &defaults); err != nil {
		t.Fatalf("decodeArgs(nil) failed: %v", err)
	}
	d := defaults.options()
	if d.Sharpness != 0.5 || d.BlockSize != 8 || !d.Edge.Binarize || d.Optimizer.Iterations != 3 {
		t.Errorf("defaults not applied: %+v", d)
	}
}

func TestHandleImagePixelate_OutputPath(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 30, 20, 10, 2)
	out := filepath.Join(t.TempDir(), "mosaic.png")

	result := toolResult(t, s, "image_pixelate", map[string]interface{}{
		"path":        path,
		"output_path": out,
		"max_colors":  2,
	})
	if result["saved_to"] != out {
		t.Errorf("saved_to = %v, want %s", result["saved_to"], out)
	}
	if n, _ := result["colors"].(float64); n > 2 {
		t.Errorf("colors = %v, want <= 2", n)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 20 {
		t.Errorf("saved image is %dx%d", cfg.Width, cfg.Height)
	}
}

func TestHandleImagePixelate_BadOutputPath(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 20, 20, 5, 2)

	resp := callTool(t, s, "image_pixelate", map[string]interface{}{
		"path":        path,
		"output_path": filepath.Join(t.TempDir(), "mosaic.xyz"),
	})
	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Errorf("error = %+v, want tool failure", resp.Error)
	}
}

func TestHandleImagePixelateNaive(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 32, 24, 8, 4)

	result := toolResult(t, s, "image_pixelate_naive", map[string]interface{}{"path": path, "block_size": 8})
	assertImage(t, result, 32, 24)
	if result["block_size"] != float64(8) {
		t.Errorf("block_size = %v", result["block_size"])
	}
}

func TestHandleImageQuantize(t *testing.T) {
	s := New()

	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 20), 100, 255})
		}
	}
	path := writeTestPNG(t, img)

	for _, method := range []string{"diverse", "kmeans", "dominant"} {
		t.Run(method, func(t *testing.T) {
			result := toolResult(t, s, "image_quantize", map[string]interface{}{
				"path":       path,
				"max_colors": 4,
				"method":     method,
			})
			assertImage(t, result, 30, 10)

			if result["method"] != method {
				t.Errorf("method = %v", result["method"])
			}
			if result["colors_before"] != float64(300) {
				t.Errorf("colors_before = %v, want 300", result["colors_before"])
			}
			if n, _ := result["colors_after"].(float64); n < 1 || n > 4 {
				t.Errorf("colors_after = %v, want 1..4", n)
			}
		})
	}
}

func TestHandleImageGridOverlay(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 60, 40, 24, 3)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"optimized", map[string]interface{}{"path": path, "block_size": 10}},
		{"curved", map[string]interface{}{"path": path, "block_size": 10, "curved": true, "show_corners": true}},
		{"lattice only", map[string]interface{}{"path": path, "block_size": 10, "optimize": false, "grid_color": "#00FF00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResult(t, s, "image_grid_overlay", tt.args)
			assertImage(t, result, 60, 40)
			if result["cols"] != float64(6) || result["rows"] != float64(4) {
				t.Errorf("grid = %vx%v, want 6x4", result["cols"], result["rows"])
			}
		})
	}
}

func TestHandleImagePixelateBatch(t *testing.T) {
	s := New()
	dir := t.TempDir()
	a := createLineImageFile(t, 40, 40, 10, 3)
	b := createTestImageFile(t, 24, 16, color.RGBA{20, 40, 60, 255})
	savedPath := filepath.Join(dir, "b-mosaic.png")

	result := toolResult(t, s, "image_pixelate_batch", map[string]interface{}{
		"items": []map[string]interface{}{
			{"path": a},
			{"path": b, "output_path": savedPath},
		},
		"block_size": 8,
		"mode":       "adaptive",
		"workers":    2,
	})

	if result["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", result["count"])
	}
	items := result["items"].([]interface{})

	first := items[0].(map[string]interface{})
	if first["path"] != a {
		t.Errorf("items out of order: %v", first["path"])
	}
	assertImage(t, first, 40, 40)

	second := items[1].(map[string]interface{})
	if second["saved_to"] != savedPath {
		t.Errorf("saved_to = %v", second["saved_to"])
	}
	if _, ok := second["image_base64"]; ok {
		t.Error("saved item should not carry base64 data")
	}
	if _, err := os.Stat(savedPath); err != nil {
		t.Errorf("batch output not written: %v", err)
	}
}

func TestHandleImagePixelateBatch_ItemOverrides(t *testing.T) {
	s := New()
	path := createLineImageFile(t, 30, 30, 12, 3)

	result := toolResult(t, s, "image_pixelate_batch", map[string]interface{}{
		"items": []map[string]interface{}{
			{"path": path},
			{"path": path, "mode": "curved", "block_size": 5, "sharpness": 0},
			{"path": path},
		},
		"block_size": 10,
		"mode":       "adaptive",
		"sharpness":  0.8,
	})

	items := result["items"].([]interface{})
	want := []struct {
		mode string
		cols float64
	}{{"adaptive", 3}, {"curved", 6}, {"adaptive", 3}}
	for i, w := range want {
		item := items[i].(map[string]interface{})
		if item["mode"] != w.mode || item["cols"] != w.cols {
			t.Errorf("item %d: mode %v cols %v, want %s and %v", i, item["mode"], item["cols"], w.mode, w.cols)
		}
	}
}

func TestDecodeBatchItem(t *testing.T) {
	args := json.RawMessage(`{"sharpness":0.8,"block_size":10,"items":[]}`)

	first, err := decodeBatchItem(args, json.RawMessage(`{"path":"a.png","sharpness":0.2}`))
	if err != nil {
		t.Fatal(err)
	}
	second, err := decodeBatchItem(args, json.RawMessage(`{"path":"b.png"}`))
	if err != nil {
		t.Fatal(err)
	}

	if first.sharpness() != 0.2 || first.BlockSize != 10 {
		t.Errorf("first item = sharpness %v block %d", first.sharpness(), first.BlockSize)
	}
	if second.sharpness() != 0.8 {
		t.Errorf("override leaked into the next item: sharpness %v", second.sharpness())
	}

	if _, err := decodeBatchItem(args, json.RawMessage(`{"path":"c.png","block_size":"big"}`)); !errors.Is(err, errInvalidArgs) {
		t.Errorf("bad item error = %v, want errInvalidArgs", err)
	}
}

func TestPipelineArgs_Limits(t *testing.T) {
	iterations := 1 << 40
	var a pipelineArgs
	if err := json.Unmarshal([]byte(`{"search_radius":1000000000000,"blur_radius":1e9}`), &a); err != nil {
		t.Fatal(err)
	}
	a.Iterations = &iterations

	opts := a.options()
	if opts.Optimizer.SearchRadius != maxSearchRadius {
		t.Errorf("search radius = %d, want %d", opts.Optimizer.SearchRadius, maxSearchRadius)
	}
	if opts.Optimizer.Iterations != maxIterations {
		t.Errorf("iterations = %d, want %d", opts.Optimizer.Iterations, maxIterations)
	}
	if opts.Edge.BlurRadius != maxBlurRadius {
		t.Errorf("blur radius = %v, want %v", opts.Edge.BlurRadius, maxBlurRadius)
	}

	small := pipelineArgs{optimizerArgs: optimizerArgs{SearchRadius: 9}}
	if got := small.options().Optimizer.SearchRadius; got != 9 {
		t.Errorf("search radius within limits changed to %d", got)
	}
}

func TestHandleImagePixelateBatch_MissingFile(t *testing.T) {
	s := New()
	good := createTestImageFile(t, 10, 10, color.White)

	resp := callTool(t, s, "image_pixelate_batch", map[string]interface{}{
		"items": []map[string]interface{}{{"path": good}, {"path": "/nonexistent/image.png"}},
	})
	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Errorf("error = %+v, want tool failure", resp.Error)
	}
}

func TestHandleImagePixelateBatch_Cancelled(t *testing.T) {
	s := New()
	path := createTestImageFile(t, 10, 10, color.White)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	args, _ := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{{"path": path}},
	})
	if _, err := s.handleImagePixelateBatch(ctx, args); err == nil {
		t.Error("cancelled batch should fail")
	}
}
