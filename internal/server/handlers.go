package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/crossval"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/dataset"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/imaging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/results"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/stats"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "dataset_analyze").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
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
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Datasets
	case "dataset_analyze":
		return s.handleDatasetAnalyze(args)
	case "dataset_folds":
		return s.handleDatasetFolds(args)

	// Volumes
	case "volume_statistics":
		return s.handleVolumeStatistics(args)
	case "volume_preview":
		return s.handleVolumePreview(args)

	// Experiments
	case "results_search":
		return s.handleResultsSearch(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// finite maps NaN and infinities to nil, which JSON encodes as null.
func finite(x float64) interface{} {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

// jsonSafe replaces non-finite floats in decoded YAML values.
func jsonSafe(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		return finite(x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = jsonSafe(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = jsonSafe(e)
		}
		return out
	}
	return v
}

func summary(s stats.Summary) map[string]interface{} {
	return map[string]interface{}{
		"count":    s.Count,
		"mean":     finite(s.Mean),
		"median":   finite(s.Median),
		"variance": finite(s.Variance),
		"min":      finite(s.Min),
		"max":      finite(s.Max),
	}
}

// === Dataset Handlers ===

type datasetArgs struct {
	Dir  string `json:"dir"`
	Name string `json:"name"`
}

func (a *datasetArgs) defaults() error {
	if a.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if a.Name == "" {
		a.Name = dataset.RawName(dataset.FormatFull)
	}
	return nil
}

type datasetAnalyzeArgs struct {
	datasetArgs
	Bins *int `json:"bins"`
}

func (s *Server) handleDatasetAnalyze(args json.RawMessage) (interface{}, error) {
	var a datasetAnalyzeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.defaults(); err != nil {
		return nil, err
	}
	bins := dataset.HistogramBins
	if a.Bins != nil {
		bins = *a.Bins
	}
	set, err := s.sets.Load(a.Dir, a.Name)
	if err != nil {
		return nil, err
	}
	an := dataset.Analyze(set)
	hists, err := an.Histograms(bins)
	if err != nil {
		return nil, err
	}

	labels := make([]map[string]interface{}, 2)
	for l := 0; l < 2; l++ {
		labels[l] = map[string]interface{}{
			"label":         l,
			"samples":       an.NumLabels[l],
			"median_slices": finite(an.Medians[l]),
			"slices":        summary(stats.Describe(stats.Ints(an.Slices[l]))),
			"sizes":         summary(stats.Describe(stats.Ints(an.Sizes[l]))),
			"box_sizes":     summary(stats.Describe(stats.Ints(an.BoxSizes[l]))),
			"mean_box":      []interface{}{finite(an.MeanBox[l][0]), finite(an.MeanBox[l][1]), finite(an.MeanBox[l][2])},
		}
	}
	return map[string]interface{}{
		"samples":         set.Len(),
		"analysed":        an.Total(),
		"patients":        dataset.NumPatients(set.Patients()),
		"label_frequency": dataset.FormatFrequency(dataset.LabelFrequency(set.Labels())),
		"labels":          labels,
		"abs_slices":      an.AbsSlices,
		"histograms":      hists,
	}, nil
}

type datasetFoldsArgs struct {
	Dir          string `json:"dir"`
	PatientLevel bool   `json:"patient_level"`
	Folds        int    `json:"folds"`
}

// handleDatasetFolds reports where cross-validation would cut an organised
// dataset.
func (s *Server) handleDatasetFolds(args json.RawMessage) (interface{}, error) {
	var a datasetFoldsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	train, test, err := dataset.LoadOrganized(context.Background(), a.Dir)
	if err != nil {
		return nil, err
	}
	whole := &dataset.SliceSet{}
	whole.Append(train)
	whole.Append(test)
	patients := whole.Patients()
	numPatients := crossval.UniquePatients(patients)

	var bounds []int
	if a.PatientLevel {
		if a.Folds == 0 {
			a.Folds = crossval.DefaultPatientFolds
		}
		bounds, err = crossval.PatientFolds(patients, numPatients, a.Folds)
	} else {
		if a.Folds == 0 {
			a.Folds = crossval.DefaultSliceFolds
		}
		bounds, err = crossval.SliceFolds(whole.Len(), a.Folds)
	}
	if err != nil {
		return nil, err
	}

	folds := make([]map[string]interface{}, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		var label1 int
		for _, sl := range whole.Slices[lo:hi] {
			label1 += sl.Label
		}
		folds = append(folds, map[string]interface{}{
			"fold":     i + 1,
			"start":    lo,
			"end":      hi,
			"slices":   hi - lo,
			"patients": crossval.UniquePatients(patients[lo:hi]),
			"label1":   label1,
		})
	}
	return map[string]interface{}{
		"slices":        whole.Len(),
		"patients":      numPatients,
		"patient_level": a.PatientLevel,
		"boundaries":    bounds,
		"folds":         folds,
	}, nil
}

// === Volume Handlers ===

type volumeArgs struct {
	datasetArgs
	Index int     `json:"index"`
	Scale float64 `json:"scale"`
}

func (s *Server) loadSample(a *volumeArgs) (dataset.Sample, error) {
	if err := a.defaults(); err != nil {
		return dataset.Sample{}, err
	}
	set, err := s.sets.Load(a.Dir, a.Name)
	if err != nil {
		return dataset.Sample{}, err
	}
	if a.Index < 0 || a.Index >= set.Len() {
		return dataset.Sample{}, fmt.Errorf("index %d outside set of %d samples", a.Index, set.Len())
	}
	return set.Samples[a.Index], nil
}

func (s *Server) handleVolumeStatistics(args json.RawMessage) (interface{}, error) {
	var a volumeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 255
	}
	smp, err := s.loadSample(&a)
	if err != nil {
		return nil, err
	}
	st, err := volume.Compute(smp.Volume, smp.Mask, a.Scale)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{}
	for i, v := range st.Row() {
		values[volume.StatisticsHeader[i]] = finite(v)
	}
	return map[string]interface{}{
		"patient":    smp.Patient,
		"label":      smp.Label,
		"shape":      smp.Volume.Shape.String(),
		"statistics": values,
	}, nil
}

type volumePreviewArgs struct {
	volumeArgs
	Slice   *int    `json:"slice"`
	Zoom    float64 `json:"zoom"`
	Overlay *bool   `json:"overlay"`
}

func (s *Server) handleVolumePreview(args json.RawMessage) (interface{}, error) {
	var a volumePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Zoom == 0 {
		a.Zoom = 4
	}
	smp, err := s.loadSample(&a.volumeArgs)
	if err != nil {
		return nil, err
	}
	z := smp.Volume.Z / 2
	if a.Slice != nil {
		z = *a.Slice
	}

	var img image.Image
	if a.Overlay == nil || *a.Overlay {
		img, err = imaging.Overlay(smp.Volume, smp.Mask, z, smp.Label)
	} else {
		img, err = imaging.SliceImage(smp.Volume, z)
	}
	if err != nil {
		return nil, err
	}
	return imaging.Encode(imaging.Scale(img, a.Zoom))
}

// === Experiment Handlers ===

type resultsSearchArgs struct {
	Path    string            `json:"path"`
	Filters map[string]string `json:"filters"`
}

func (s *Server) handleResultsSearch(args json.RawMessage) (interface{}, error) {
	var a resultsSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	doc, err := results.Load(a.Path)
	if err != nil {
		return nil, err
	}

	params := map[string][]string{}
	for k, vals := range doc.Parameters() {
		for _, v := range vals {
			params[k] = append(params[k], results.FormatValue(v))
		}
	}
	keys := doc.Filter(a.Filters)
	matches := make([]map[string]interface{}, len(keys))
	for i, k := range keys {
		smp := doc.Samples[k]
		matches[i] = map[string]interface{}{
			"key":    k,
			"params": jsonSafe(smp.Params),
			"result": jsonSafe(smp.Result),
		}
	}
	return map[string]interface{}{
		"path":        doc.Path,
		"samples":     len(doc.Keys),
		"parameters":  params,
		"prompt_keys": doc.PromptKeys(),
		"matches":     matches,
	}, nil
}
