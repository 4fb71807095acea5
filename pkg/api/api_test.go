package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pcbmesh/pkg/buildinfo"
	"github.com/matzehuels/pcbmesh/pkg/observability"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

const header = "%FSLAX46Y46*%\n%MOMM*%\n"

const edge = header + "%ADD10C,0.1*%\nD10*\n" +
	"X0.0Y0.0D02*\nX10.0Y0.0D01*\nX10.0Y10.0D01*\nX0.0Y10.0D01*\nX0.0Y0.0D01*\nM02*\n"

const pad = header + "%ADD11R,2.0X2.0*%\nD11*\nX5.0Y5.0D03*\nM02*\n"

const truncated = header + "%ADD10C,0.1*%\nD10*\nX0.0Y0.0D02*\n"

type part struct {
	field, name, data string
}

func newTestServer(t *testing.T, defaults pipeline.Options) *Server {
	t.Helper()
	logger := log.New(io.Discard)
	return New(pipeline.NewRunner(nil, nil, logger), Options{
		Defaults: defaults,
		Metrics:  observability.NewCounters(),
		Logger:   logger,
	})
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(p.data))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/version", nil))
	var info buildinfo.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != buildinfo.Version || info.GoVersion == "" {
		t.Errorf("version = %+v", info)
	}
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/v1/convert", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/convert status = %d", rec.Code)
	}
}

func TestConvertSingleArtifact(t *testing.T) {
	s := newTestServer(t, pipeline.Options{Thickness: 1.6})
	rec := serve(s, multipartRequest(t, "/v1/convert?format=stl", part{"edge_cuts", "board.gbr", edge}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "model/stl" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"board.stl"`) {
		t.Errorf("content disposition = %q", cd)
	}
	if _, err := uuid.Parse(rec.Header().Get(HeaderConversionID)); err != nil {
		t.Errorf("conversion id: %v", err)
	}
	if rec.Header().Get(HeaderWarnings) != "0" {
		t.Errorf("warnings = %q", rec.Header().Get(HeaderWarnings))
	}
	if got, want := rec.Body.Len(), 84+50*12; got != want {
		t.Errorf("stl size = %d, want %d", got, want)
	}
}

func TestConvertZip(t *testing.T) {
	s := newTestServer(t, pipeline.Options{Thickness: 1.6})
	rec := serve(s, multipartRequest(t, "/v1/convert?format=obj&colors=true&name=blinky",
		part{"file", "blinky-Edge_Cuts.gbr", edge},
		part{"file", "blinky-F_Cu.gbr", pad}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "blinky.mtl,blinky.obj" {
		t.Errorf("zip entries = %v", names)
	}
}

func TestConvertWarnings(t *testing.T) {
	s := newTestServer(t, pipeline.Options{Thickness: 1.6})
	rec := serve(s, multipartRequest(t, "/v1/convert?format=stl",
		part{"edge_cuts", "a.gbr", edge},
		part{"top_silk", "b.gbr", truncated}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get(HeaderWarnings) != "1" {
		t.Errorf("warnings = %q", rec.Header().Get(HeaderWarnings))
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name     string
		defaults pipeline.Options
		target   string
		parts    []part
		status   int
		code     string
	}{
		{"no thickness", pipeline.Options{}, "/v1/convert", []part{{"edge_cuts", "a.gbr", edge}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad thickness", pipeline.Options{}, "/v1/convert?thickness=thick", []part{{"edge_cuts", "a.gbr", edge}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad format", pipeline.Options{Thickness: 1.6}, "/v1/convert?format=step", []part{{"edge_cuts", "a.gbr", edge}}, http.StatusBadRequest, "INVALID_FORMAT"},
		{"bad colors", pipeline.Options{Thickness: 1.6}, "/v1/convert?colors=maybe", []part{{"edge_cuts", "a.gbr", edge}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unclassified", pipeline.Options{Thickness: 1.6}, "/v1/convert", []part{{"file", "a.gbr", edge}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"duplicate", pipeline.Options{Thickness: 1.6}, "/v1/convert", []part{{"edge_cuts", "a.gbr", edge}, {"outline", "b.gbr", edge}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing edge", pipeline.Options{Thickness: 1.6}, "/v1/convert", []part{{"top_copper", "a.gbr", pad}}, http.StatusUnprocessableEntity, "MISSING_EDGE_CUTS"},
		{"truncated edge", pipeline.Options{Thickness: 1.6}, "/v1/convert", []part{{"edge_cuts", "a.gbr", truncated}}, http.StatusUnprocessableEntity, "TRUNCATED_FILE"},
		{"no files", pipeline.Options{Thickness: 1.6}, "/v1/convert", nil, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.defaults)
			rec := serve(s, multipartRequest(t, tt.target, tt.parts...))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if d := decodeError(t, rec); d.Code != tt.code {
				t.Errorf("code = %q, want %q", d.Code, tt.code)
			}
		})
	}
}

func TestConvertNotMultipart(t *testing.T) {
	s := newTestServer(t, pipeline.Options{Thickness: 1.6})
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", strings.NewReader(edge))
	req.Header.Set("Content-Type", "text/plain")
	rec := serve(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestConvertTooLarge(t *testing.T) {
	s := New(pipeline.NewRunner(nil, nil, log.New(io.Discard)), Options{
		Defaults:  pipeline.Options{Thickness: 1.6},
		MaxUpload: 64,
		Logger:    log.New(io.Discard),
	})
	rec := serve(s, multipartRequest(t, "/v1/convert", part{"edge_cuts", "a.gbr", edge + strings.Repeat("G04 padding*\n", 100)}))
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("status = %d, want a client error", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})
	rec := serve(s, multipartRequest(t, "/v1/analyze?detailed=true",
		part{"edge_cuts", "outline.gbr", edge},
		part{"file", "pads.gbr", pad}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp AnalyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Layers) != 2 {
		t.Fatalf("layers = %+v", resp.Layers)
	}
	if resp.Layers[0].Kind != "edge_cuts" || resp.Layers[0].Mode != "outline" || resp.Layers[0].CommandCounts == nil {
		t.Errorf("edge report = %+v", resp.Layers[0])
	}
	if resp.Layers[1].Kind != "" || resp.Layers[1].Mode != "fill" || resp.Layers[1].Polygons != 1 {
		t.Errorf("pads report = %+v", resp.Layers[1])
	}
}

func TestAnalyzeYAML(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})
	rec := serve(s, multipartRequest(t, "/v1/analyze?output=yaml", part{"edge_cuts", "outline.gbr", edge}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "layers:\n") || !strings.Contains(rec.Body.String(), "kind: edge_cuts") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestAnalyzePartialFailure(t *testing.T) {
	s := newTestServer(t, pipeline.Options{})
	rec := serve(s, multipartRequest(t, "/v1/analyze",
		part{"edge_cuts", "outline.gbr", edge},
		part{"top_copper", "broken.gbr", truncated}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp AnalyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Layers) != 1 || len(resp.Errors) != 1 || resp.Errors[0].Code != "TRUNCATED_FILE" || resp.Errors[0].Kind != "top_copper" {
		t.Errorf("response = %+v", resp)
	}

	rec = serve(s, multipartRequest(t, "/v1/analyze", part{"top_copper", "broken.gbr", truncated}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("all failed: status = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetHTTPHooks(counters)
	t.Cleanup(observability.Reset)

	s := New(pipeline.NewRunner(nil, nil, log.New(io.Discard)), Options{Metrics: counters})
	serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/v1/version", nil))

	if got := counters.Get(`pcbmesh_http_requests_total{method="GET",route="/healthz",code="200"}`); got != 1 {
		t.Errorf("healthz requests = %v", got)
	}
	if got := counters.Get(`pcbmesh_http_requests_total{method="GET",route="/v1/version",code="200"}`); got != 1 {
		t.Errorf("version requests = %v\n%v", got, counters.Snapshot())
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `pcbmesh_http_requests_total{method="GET",route="/healthz",code="200"} 1`) {
		t.Errorf("metrics body = %s", rec.Body)
	}
}
