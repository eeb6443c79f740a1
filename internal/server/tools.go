package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var (
	dirProperty = map[string]interface{}{
		"type":        "string",
		"description": "Folder holding the stored set",
	}
	nameProperty = map[string]interface{}{
		"type":        "string",
		"description": "Stored set name without extension (default \"dataset\")",
	}
	indexProperty = map[string]interface{}{
		"type":        "integer",
		"description": "0-based sample index in the set",
	}
)

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Datasets
		{
			Name:        "dataset_analyze",
			Description: "Analyse an imported 3D set: per-label sample counts, slice depth, tumour size and bounding-box size distributions, with histograms over a range shared by both labels.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir":  dirProperty,
					"name": nameProperty,
					"bins": map[string]interface{}{
						"type":        "integer",
						"description": "Histogram buckets per measure (default: 10)",
						"minimum":     1,
					},
				},
				"required": []string{"dir"},
			},
		},
		{
			Name:        "dataset_folds",
			Description: "Show the cross-validation fold boundaries of an organised dataset (training and test sets merged), at slice or patient level.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir": map[string]interface{}{
						"type":        "string",
						"description": "Organised dataset folder holding training_set and test_set",
					},
					"patient_level": map[string]interface{}{
						"type":        "boolean",
						"description": "Align folds to patients. Default false",
						"default":     false,
					},
					"folds": map[string]interface{}{
						"type":        "integer",
						"description": "Number of folds. Default 10 at slice level, 11 at patient level",
					},
				},
				"required": []string{"dir"},
			},
		},

		// Volumes
		{
			Name:        "volume_statistics",
			Description: "Compute intensity statistics, mask surface and volume, and GLCM texture features of one sample.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir":   dirProperty,
					"name":  nameProperty,
					"index": indexProperty,
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Intensity multiplier applied first. Default 255",
						"default":     255,
					},
				},
				"required": []string{"dir", "index"},
			},
		},
		{
			Name:        "volume_preview",
			Description: "Render one slice of a sample as base64-encoded PNG, with the tumour outline drawn in the label colour.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dir":   dirProperty,
					"name":  nameProperty,
					"index": indexProperty,
					"slice": map[string]interface{}{
						"type":        "integer",
						"description": "z index of the slice. Default is the middle slice",
					},
					"zoom": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor of the rendered image. Default 4",
						"default":     4,
					},
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw the mask outline. Default true",
						"default":     true,
					},
				},
				"required": []string{"dir", "index"},
			},
		},

		// Experiments
		{
			Name:        "results_search",
			Description: "Filter the samples of an experiment results document by hyper-parameter value. Blank or missing filters match everything.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "results.yaml file, or the run folder holding it",
					},
					"filters": map[string]interface{}{
						"type":                 "object",
						"additionalProperties": map[string]interface{}{"type": "string"},
						"description":          "Parameter name to value, e.g. {\"filters\": \"16\"}",
					},
				},
				"required": []string{"path"},
			},
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
