package chi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/compfilter/compfilter/internal/analysis"
	"github.com/compfilter/compfilter/internal/codes"
	"github.com/compfilter/compfilter/internal/dataset"
	"github.com/compfilter/compfilter/internal/dedupe"
	"github.com/compfilter/compfilter/internal/geo"
	"github.com/compfilter/compfilter/internal/pipeline"
)

const serverCSV = "kvknumber,economischactief,rechtsvorm,contactpersoon,longitude,latitude\n" +
	"11111111,JA,BV,Jan,5.0,53.0\n" +
	"22222222,JA,NV,,5.0,53.0\n" +
	"33333333,NEE,BV,Piet,1.0,1.0\n"

const serverRegions = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"naam": "Noordvlakte"},
      "geometry": {"type": "Polygon", "coordinates": [[[4,52],[6,52],[6,54],[4,54],[4,52]]]}
    }
  ]
}`

const serverAOI = `{"type": "Polygon", "coordinates": [[[4,52],[6,52],[6,54],[4,54],[4,52]]]}`

func newTestRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "dataset.csv")
	if err := os.WriteFile(datasetPath, []byte(serverCSV), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	regionsPath := filepath.Join(dir, "regions.geojson")
	if err := os.WriteFile(regionsPath, []byte(serverRegions), 0o644); err != nil {
		t.Fatalf("write regions: %v", err)
	}

	areas := geo.NewStore(regionsPath, filepath.Join(dir, "custom_aoi"), nil, nil)
	codeLists := codes.NewStore(filepath.Join(dir, "codes"), nil)
	source := dataset.NewSource(datasetPath, ',', "utf-8")
	pipe := pipeline.New(source, areas, codeLists, dedupe.NewLoader(nil), nil)
	analyzer := analysis.New(pipe, areas, nil)

	r := chi.NewRouter()
	r.Mount("/api", NewServer(pipe, analyzer, areas, codeLists, nil).Routes())
	return r, dir
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func uploadFile(t *testing.T, r chi.Router, path, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFiltersEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/filters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	filters, ok := body["filters"].([]any)
	if !ok || len(filters) != 10 {
		t.Fatalf("expected 10 filters, got %v", body["filters"])
	}
	first := filters[0].(map[string]any)
	if first["key"] != "activity" || first["kind"] != "multiselect" {
		t.Errorf("unexpected first filter: %v", first)
	}
	if opts, ok := first["options"].([]any); !ok || len(opts) != 2 {
		t.Errorf("activity options = %v, want [JA NEE]", first["options"])
	}
}

func TestPreviewEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/preview", map[string]any{
		"selection": map[string]any{"activity": []string{"JA"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["ok"] != true || body["count"] != float64(2) {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestPreviewEndpoint_BadSelection(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/preview", map[string]any{
		"selection": map[string]any{"workforce": "not-a-range"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["ok"] != false {
		t.Errorf("expected ok=false, got %v", body)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/download", map[string]any{
		"selection": map[string]any{"legalform": []string{"BV"}},
		"filename":  "bv.csv",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "bv.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	out := rec.Body.String()
	if !strings.HasPrefix(out, "\uFEFFkvknumber") {
		t.Error("body must start with BOM then header")
	}
	if !strings.Contains(out, "11111111") || strings.Contains(out, "22222222") {
		t.Errorf("wrong rows exported:\n%s", out)
	}
}

func TestSaveEndpoint(t *testing.T) {
	r, dir := newTestRouter(t)
	outDir := filepath.Join(dir, "out")

	rec := doJSON(t, r, http.MethodPost, "/api/save", map[string]any{
		"selection": map[string]any{},
		"destinations": []map[string]any{
			{"directory": outDir, "baseFilename": "everything", "rest": true},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	report := body["report"].(map[string]any)
	if report["totalRows"] != float64(3) {
		t.Errorf("totalRows = %v, want 3", report["totalRows"])
	}
	if _, err := os.Stat(filepath.Join(outDir, "everything.csv")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestSaveEndpoint_QuotaShortfall(t *testing.T) {
	r, dir := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/save", map[string]any{
		"selection": map[string]any{},
		"destinations": []map[string]any{
			{"directory": filepath.Join(dir, "out"), "baseFilename": "partial", "quota": 1},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/analysis", map[string]any{
		"selection":  map[string]any{"activity": []string{"JA"}},
		"dimensions": []string{"legalform"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	report := body["report"].(map[string]any)
	if report["filteredTotal"] != float64(2) || report["baselineTotal"] != float64(3) {
		t.Errorf("totals = %v/%v, want 2/3", report["filteredTotal"], report["baselineTotal"])
	}
	dims := report["dimensions"].([]any)
	if len(dims) != 2 {
		t.Errorf("expected summary + legalform dimensions, got %d", len(dims))
	}
}

func TestLocationEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := uploadFile(t, r, "/api/location/upload", "haven gebied.geojson", serverAOI, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	label := decodeBody(t, rec)["storedLabel"].(string)
	if label != "custom:haven_gebied" {
		t.Fatalf("label = %q", label)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/location/list", nil)
	if !strings.Contains(rec.Body.String(), label) || !strings.Contains(rec.Body.String(), "Noordvlakte") {
		t.Errorf("list missing labels: %s", rec.Body.String())
	}

	// The uploaded area is immediately usable.
	rec = doJSON(t, r, http.MethodPost, "/api/preview", map[string]any{
		"selection": map[string]any{"location": []string{label}},
	})
	if body := decodeBody(t, rec); body["count"] != float64(2) {
		t.Errorf("preview in uploaded area = %v, want 2", body["count"])
	}

	rec = doJSON(t, r, http.MethodPost, "/api/location/delete", map[string]any{"label": label})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/location/delete", map[string]any{"label": label})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPost, "/api/location/delete", map[string]any{"label": "Noordvlakte"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("builtin delete status = %d, want 400", rec.Code)
	}
}

func TestCodesEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := uploadFile(t, r, "/api/codes/upload", "agri.csv", "code;naam\n0161;Akkerbouw\n", map[string]string{"bucket": "main"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["storedFileName"] != "agri" {
		t.Errorf("unexpected stored name: %s", rec.Body.String())
	}

	rec = uploadFile(t, r, "/api/codes/upload", "x.csv", "0161\n", map[string]string{"bucket": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad bucket status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/codes/list", nil)
	body := decodeBody(t, rec)
	files := body["files"].(map[string]any)
	main := files["main"].([]any)
	if len(main) != 1 || main[0] != "agri" {
		t.Errorf("main bucket = %v", main)
	}
}
