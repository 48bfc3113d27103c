package server

import (
	"encoding/json"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"image_edge_map",
		"image_grid_overlay",
		"image_pixelate",
		"image_pixelate_naive",
		"image_quantize",
		"image_pixelate_batch",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("tool %s defined twice", tool.Name)
		}
		toolMap[tool.Name] = tool
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			properties, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok || len(properties) == 0 {
				t.Fatal("InputSchema has no properties")
			}

			required, _ := tool.InputSchema["required"].([]string)
			for _, name := range required {
				if _, ok := properties[name]; !ok {
					t.Errorf("required property %s is not declared", name)
				}
			}

			for name, p := range properties {
				schema, ok := p.(map[string]interface{})
				if !ok || schema["type"] == nil {
					t.Errorf("property %s has no type", name)
				}
			}
		})
	}
}

func TestToolDefinitions_PixelateOptions(t *testing.T) {
	var pixelate Tool
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "image_pixelate" {
			pixelate = tool
		}
	}

	properties := pixelate.InputSchema["properties"].(map[string]interface{})
	for _, name := range []string{
		"block_size", "sharpness", "mode", "threshold_mode", "binarize", "blur_radius",
		"search_radius", "iterations", "step_size", "curve_degree", "curve_smoothness",
		"max_colors", "palette_method", "color_distance", "output_path",
	} {
		if _, ok := properties[name]; !ok {
			t.Errorf("image_pixelate lacks %s", name)
		}
	}

	mode := properties["mode"].(map[string]interface{})
	if mode["default"] != "blocks" {
		t.Errorf("mode default = %v, want blocks", mode["default"])
	}
}

func TestToolDefinitions_JSON(t *testing.T) {
	data, err := json.Marshal(GetToolDefinitions())
	if err != nil {
		t.Fatalf("tool definitions do not marshal: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("tool definitions do not round trip: %v", err)
	}
	for _, tool := range decoded {
		if _, ok := tool["inputSchema"]; !ok {
			t.Errorf("%v: missing inputSchema key", tool["name"])
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	tools, ok := result["tools"].([]Tool)
	if !ok || len(tools) == 0 {
		t.Fatalf("tools = %v", result["tools"])
	}
}
