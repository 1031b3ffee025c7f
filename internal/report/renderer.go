package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sync"
)

// RenderResult is the finished report document.
type RenderResult struct {
	Content     []byte
	ContentType string
	Ext         string
}

// Renderer turns report figures into a document in one concrete format.
type Renderer interface {
	Render(data *Data, cfg RenderConfig) (*RenderResult, error)
}

// Registry maps output formats to renderers. Lookups for unregistered
// formats fail rather than falling back.
type Registry struct {
	mu        sync.RWMutex
	renderers map[Format]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[Format]Renderer)}
}

func (r *Registry) Register(format Format, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[format] = renderer
}

// Supports reports whether a renderer is bound to the format. Schedule and
// one-off validation use it so an unbound format is rejected up front instead
// of failing on every run.
func (r *Registry) Supports(format Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.renderers[format]
	return ok
}

func (r *Registry) Get(format Format) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("no renderer registered for format %q", format)
	}
	return renderer, nil
}

// Render looks up the renderer for cfg.Format and runs it, rejecting empty
// output so that a broken renderer never produces a zero-byte artifact.
func (r *Registry) Render(data *Data, cfg RenderConfig) (*RenderResult, error) {
	renderer, err := r.Get(cfg.Format)
	if err != nil {
		return nil, err
	}
	result, err := renderer.Render(data, cfg)
	if err != nil {
		return nil, &ExecutionError{Stage: "render", Err: err}
	}
	if result == nil || len(result.Content) == 0 {
		return nil, &ExecutionError{Stage: "render", Err: fmt.Errorf("renderer for %q returned empty content", cfg.Format)}
	}
	return result, nil
}

// CSVRenderer writes the summary metrics followed by the tabular rows.
type CSVRenderer struct{}

func (CSVRenderer) Render(data *Data, cfg RenderConfig) (*RenderResult, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{data.Type.Title()},
		{"Period", data.Range.Start.Format("2006-01-02"), data.Range.End.Format("2006-01-02")},
		{},
	}
	for _, m := range data.Summary {
		records = append(records, []string{m.Label, m.Value})
	}
	if cfg.IncludeDetails && len(data.Header) > 0 {
		records = append(records, []string{})
		records = append(records, data.Header)
		records = append(records, data.Rows...)
	}

	// Pad to a uniform width so a default csv.Reader accepts the output.
	// Blank separator records stay empty; readers skip blank lines.
	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		records[i] = rec
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &RenderResult{
		Content:     buf.Bytes(),
		ContentType: FormatCSV.ContentType(),
		Ext:         FormatCSV.Ext(),
	}, nil
}
