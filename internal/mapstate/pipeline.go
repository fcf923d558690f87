package mapstate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"drrm-api/internal/geo"
	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"
)

// FitPolicy decides which layers of an upload batch move the viewport.
type FitPolicy string

const (
	FitFirst FitPolicy = "first"
	FitEach  FitPolicy = "each"
	FitNone  FitPolicy = "none"
)

// ParseFitPolicy falls back to FitFirst for empty or unknown values.
func ParseFitPolicy(s string) FitPolicy {
	switch FitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case FitEach:
		return FitEach
	case FitNone:
		return FitNone
	}
	return FitFirst
}

// File is one entry of an upload batch.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// UploadResult reports one batch. Errors holds user-facing messages, one
// per rejected or failed file.
type UploadResult struct {
	Added    []LayerInfo `json:"added"`
	Errors   []string    `json:"errors"`
	Fitted   bool        `json:"fitted"`
	Viewport *Viewport   `json:"viewport,omitempty"`
}

// Pipeline turns uploaded files into registered layers.
type Pipeline struct {
	reg      *Registry
	policy   FitPolicy
	maxBytes int64
	exts     map[string]bool
	decode   func(name string, data []byte) (*geo.Document, error)
}

type PipelineOption func(*Pipeline)

func WithFitPolicy(p FitPolicy) PipelineOption { return func(pl *Pipeline) { pl.policy = p } }

// WithMaxBytes caps a single file; n<=0 removes the cap.
func WithMaxBytes(n int64) PipelineOption { return func(pl *Pipeline) { pl.maxBytes = n } }

// WithDecoder replaces the KML/KMZ decoder.
func WithDecoder(fn func(name string, data []byte) (*geo.Document, error)) PipelineOption {
	return func(pl *Pipeline) { pl.decode = fn }
}

// MaxBytes is the per-file cap; 0 means uncapped.
func (p *Pipeline) MaxBytes() int64 {
	if p.maxBytes <= 0 {
		return 0
	}
	return p.maxBytes
}

func NewPipeline(reg *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		reg:      reg,
		policy:   FitFirst,
		maxBytes: 20 << 20,
		exts:     map[string]bool{".kml": true, ".kmz": true},
		decode:   geo.Decode,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Accepts reports whether the file name has an accepted extension.
func (p *Pipeline) Accepts(name string) bool {
	return p.exts[strings.ToLower(filepath.Ext(name))]
}

// Upload processes files in order. A failing file adds a message to Errors
// and the batch continues. When ctx ends, the remaining files are reported
// as cancelled.
func (p *Pipeline) Upload(ctx context.Context, files []File) UploadResult {
	res := UploadResult{Added: []LayerInfo{}, Errors: []string{}}
	fitDone := false

	for i, f := range files {
		if ctx.Err() != nil {
			for _, rest := range files[i:] {
				res.Errors = append(res.Errors, fmt.Sprintf("Upload cancelled for %s", rest.Name))
				metrics.UploadFilesTotal.WithLabelValues("cancelled").Inc()
			}
			break
		}
		if !p.Accepts(f.Name) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s is not a KML file", f.Name))
			metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
			continue
		}
		data, err := p.read(f)
		if err != nil {
			logger.L().Warn("upload_read_error", "file", f.Name, "err", err)
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to read %s", f.Name))
			metrics.UploadFilesTotal.WithLabelValues("read_error").Inc()
			continue
		}
		doc, err := p.decode(f.Name, data)
		if err != nil {
			logger.L().Warn("upload_decode_error", "file", f.Name, "err", err)
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to load %s", f.Name))
			metrics.UploadFilesTotal.WithLabelValues("decode_error").Inc()
			continue
		}

		li := p.reg.Add(Layer{
			Name:       f.Name,
			Features:   doc.Features,
			Visible:    true,
			SourceFile: f.Name,
			Kind:       KindKML,
		})
		res.Added = append(res.Added, li)
		metrics.UploadFilesTotal.WithLabelValues("added").Inc()

		if p.policy == FitEach || (p.policy == FitFirst && !fitDone) {
			if fitted, _ := p.reg.ZoomTo(li.ID); fitted {
				res.Fitted = true
				fitDone = true
			}
		}
	}
	return res
}

func (p *Pipeline) read(f File) ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if p.maxBytes <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, p.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", p.maxBytes)
	}
	return data, nil
}

// LoadDataset registers the fixed CSV point dataset as a visible layer.
// The viewport is left alone.
func (p *Pipeline) LoadDataset(name string, r io.Reader) (LayerInfo, error) {
	doc, err := geo.DecodeCSV(r)
	if err != nil {
		return LayerInfo{}, fmt.Errorf("load dataset %s: %w", name, err)
	}
	display := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	li := p.reg.Add(Layer{
		Name:       display,
		Features:   doc.Features,
		Visible:    true,
		SourceFile: filepath.Base(name),
		Kind:       KindCSV,
	})
	return li, nil
}
