package api

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/pcbmesh/pkg/buildinfo"
	"github.com/matzehuels/pcbmesh/pkg/errors"
	"github.com/matzehuels/pcbmesh/pkg/export"
	pcbio "github.com/matzehuels/pcbmesh/pkg/io"
	"github.com/matzehuels/pcbmesh/pkg/layer"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = s.opts.Metrics.WriteText(w)
}

// AnalyzeResponse is the body of a successful analyze request.
type AnalyzeResponse struct {
	Layers []pipeline.LayerReport `json:"layers" yaml:"layers"`
	Errors []pipeline.LayerError  `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	detailed, err := boolParam(q.Get("detailed"), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	enc := pcbio.EncodingJSON
	if v := q.Get("output"); v != "" {
		if enc, err = pcbio.ParseEncoding(v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	uploads, err := s.readUploads(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	opts := pipeline.AnalyzeOptions{Geometry: s.opts.Defaults.Geometry}
	var resp AnalyzeResponse
	var firstErr error
	for _, u := range uploads {
		o := opts
		if k, err := layer.ParseKind(u.field); err == nil {
			o.Kind = &k
		}
		rep, err := pipeline.AnalyzeData(u.name, u.data, detailed, o)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			kind := ""
			if o.Kind != nil {
				kind = o.Kind.String()
			}
			resp.Errors = append(resp.Errors, pipeline.LayerError{
				Path:  u.name,
				Kind:  kind,
				Code:  string(errors.GetCode(err)),
				Error: errors.UserMessage(err),
			})
			continue
		}
		resp.Layers = append(resp.Layers, *rep)
	}
	if len(resp.Layers) == 0 {
		writeError(w, r, firstErr)
		return
	}

	var buf bytes.Buffer
	if err := pcbio.WriteReport(&buf, resp, enc); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", enc.ContentType())
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	opts, err := s.convertOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	uploads, err := s.readUploads(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inputs := make([]pipeline.LayerInput, 0, len(uploads))
	for _, u := range uploads {
		k, ok := kindFor(u)
		if !ok {
			writeError(w, r, errors.New(errors.ErrCodeInvalidInput,
				"cannot tell which layer %s is; name the form field after the layer (%s)", u.name, strings.Join(layer.Names(), ", ")))
			return
		}
		inputs = append(inputs, pipeline.LayerInput{Kind: k, Name: u.name, Data: u.data})
	}

	id := uuid.New().String()
	w.Header().Set(HeaderConversionID, id)
	logger := s.logger.With("conversion", id)
	opts.Logger = logger
	logger.Info("conversion started", "layers", len(inputs), "format", opts.Format, "thickness", opts.Thickness)

	res, err := s.runner.Build(r.Context(), inputs, opts)
	if err != nil {
		logger.Warn("conversion failed", "err", err)
		writeError(w, r, err)
		return
	}
	w.Header().Set(HeaderWarnings, strconv.Itoa(len(res.Warnings)))
	logger.Info("conversion finished",
		"bytes", res.Stats.Bytes,
		"warnings", len(res.Warnings),
		"cached", res.CacheInfo.ArtifactHit)

	if len(res.Artifacts) == 1 {
		a := res.Artifacts[0]
		w.Header().Set("Content-Type", opts.Format.ContentType())
		w.Header().Set("Content-Disposition", attachment(a.Name))
		_, _ = w.Write(a.Data)
		return
	}
	data, err := zipArtifacts(res.Artifacts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(opts.Stem+".zip"))
	_, _ = w.Write(data)
}

// convertOptions applies the query parameters to the server defaults.
func (s *Server) convertOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.opts.Defaults
	opts.Layers, opts.Output = nil, ""
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	if v := q.Get("thickness"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "thickness %q is not a number", v)
		}
		opts.Thickness = t
	}
	colors, err := boolParam(q.Get("colors"), opts.Colors)
	if err != nil {
		return opts, err
	}
	opts.Colors = colors
	if v := q.Get("name"); v != "" {
		opts.Stem = v
	}
	if opts.Stem == "" {
		opts.Stem = "board"
	}
	opts.SetDefaults()
	return opts, opts.Validate()
}

type upload struct {
	field string
	name  string
	data  []byte
}

// readUploads reads every file part of a multipart request, ordered by
// form field and then file name.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	if err := r.ParseMultipartForm(s.opts.MaxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart/form-data upload")
	}
	defer r.MultipartForm.RemoveAll()

	var out []upload
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			if err := errors.ValidateUploadName(fh.Filename); err != nil {
				return nil, err
			}
			f, err := fh.Open()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload %s", fh.Filename)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload %s", fh.Filename)
			}
			out = append(out, upload{field: field, name: fh.Filename, data: data})
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no files uploaded")
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].field != out[j].field {
			return out[i].field < out[j].field
		}
		return out[i].name < out[j].name
	})
	return out, nil
}

// kindFor resolves an upload's layer from its form field, falling back to
// its file name.
func kindFor(u upload) (layer.Kind, bool) {
	if k, err := layer.ParseKind(u.field); err == nil {
		return k, true
	}
	return layer.Classify(u.name)
}

func boolParam(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(errors.ErrCodeInvalidInput, "%q is not a boolean", v)
	}
	return b, nil
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

// zipArtifacts packs artifacts into one deflated archive.
func zipArtifacts(artifacts []export.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range artifacts {
		f, err := zw.Create(a.Name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncoding, err, "zip %s", a.Name)
		}
		if _, err := f.Write(a.Data); err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncoding, err, "zip %s", a.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncoding, err, "zip artifacts")
	}
	return buf.Bytes(), nil
}
