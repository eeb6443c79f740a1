// Package results loads the results document written by an experiment run
// and filters its samples by hyper-parameter value.
package results

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the document looked up when Load is given a folder.
const DefaultFile = "results.yaml"

// Prompt bounds: a parameter is offered for filtering only when it takes
// between MinChoices and MaxChoices distinct values.
const (
	MinChoices = 2
	MaxChoices = 20
)

// ErrNotMapping is returned for documents whose top level is not a mapping
// of sample keys.
var ErrNotMapping = errors.New("results: document is not a mapping of samples")

const cardRule = "---------------------------------------------------"

// Sample is one cross-validated hyper-parameter combination.
type Sample struct {
	Params map[string]any `yaml:"params" json:"params"`
	Result map[string]any `yaml:"result" json:"result"`
}

// Document holds the samples in file order.
type Document struct {
	Path    string
	Keys    []string
	Samples map[string]Sample
}

// Load reads path, or path/results.yaml when path is a folder.
func Load(path string) (*Document, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("results: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("results: parse %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes a results document, keeping the order of its samples.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	doc := &Document{Samples: map[string]Sample{}}
	if root.Kind == 0 {
		return doc, nil
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		var s Sample
		if err := m.Content[i+1].Decode(&s); err != nil {
			return nil, fmt.Errorf("sample %s: %w", key, err)
		}
		if _, dup := doc.Samples[key]; !dup {
			doc.Keys = append(doc.Keys, key)
		}
		doc.Samples[key] = s
	}
	return doc, nil
}

// Parameters returns every value each parameter key takes across the
// samples, sorted.
func (d *Document) Parameters() map[string][]any {
	seen := map[string]map[string]any{}
	for _, s := range d.Samples {
		for k, v := range s.Params {
			if seen[k] == nil {
				seen[k] = map[string]any{}
			}
			seen[k][FormatValue(v)] = v
		}
	}
	out := make(map[string][]any, len(seen))
	for k, vals := range seen {
		list := make([]any, 0, len(vals))
		for _, v := range vals {
			list = append(list, v)
		}
		sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })
		out[k] = list
	}
	return out
}

// ParamKeys returns the parameter keys in alphabetical order.
func (d *Document) ParamKeys() []string {
	params := d.Parameters()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PromptKeys returns the parameter keys worth filtering on.
func (d *Document) PromptKeys() []string {
	params := d.Parameters()
	var keys []string
	for _, k := range d.ParamKeys() {
		if n := len(params[k]); n >= MinChoices && n <= MaxChoices {
			keys = append(keys, k)
		}
	}
	return keys
}

// Filter returns the keys of the samples whose parameters match every
// non-blank value, in file order. Values are compared as text.
func (d *Document) Filter(values map[string]string) []string {
	var out []string
	for _, key := range d.Keys {
		if matches(d.Samples[key], values) {
			out = append(out, key)
		}
	}
	return out
}

func matches(s Sample, values map[string]string) bool {
	for k, want := range values {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		v, ok := s.Params[k]
		if !ok || FormatValue(v) != want {
			return false
		}
	}
	return true
}

// Format writes a sample card: its parameters, then its results, each in
// key order.
func Format(w io.Writer, key string, s Sample) {
	fmt.Fprintf(w, "Sample %s:\n", key)
	fmt.Fprintln(w, cardRule)
	writeFields(w, s.Params)
	fmt.Fprintln(w, cardRule)
	writeFields(w, s.Result)
	fmt.Fprintln(w, cardRule)
}

func writeFields(w io.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %20s: %s\n", k, FormatValue(fields[k]))
	}
}

// Print writes the card of every sample matching values.
func (d *Document) Print(w io.Writer, values map[string]string) int {
	keys := d.Filter(values)
	for _, key := range keys {
		Format(w, key, d.Samples[key])
		fmt.Fprintln(w)
	}
	return len(keys)
}

// FormatValue renders a decoded YAML scalar the way filters are typed.
func FormatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}

func less(a, b any) bool {
	fa, aok := number(a)
	fb, bok := number(b)
	switch {
	case aok && bok:
		return fa < fb
	case aok != bok:
		return aok
	}
	return FormatValue(a) < FormatValue(b)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
