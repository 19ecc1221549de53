package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"surveypos/internal/engine"
	"surveypos/internal/gnss"
	"surveypos/internal/ned"
)

type fakeReceiver struct {
	rd   gnss.Reading
	have bool
}

func (f *fakeReceiver) Latest() (gnss.Reading, bool) { return f.rd, f.have }
func (f *fakeReceiver) Write(p []byte) (int, error)  { return len(p), nil }
func (f *fakeReceiver) Close() error                 { return nil }

func vec(n float64) ned.Vector {
	return ned.Vector{N: n}
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	rcv := &fakeReceiver{
		rd: gnss.Reading{
			RelPosValid: true,
			RelNCm:      150,
			FixType:     gnss.Fix3D,
			FixOK:       true,
		},
		have: true,
	}
	eng := engine.New(rcv, nil, nil, engine.Config{
		SampleInterval: 100 * time.Millisecond,
		SurveyDuration: time.Minute,
	})
	eng.Pass(time.Now().UTC())

	srv := httptest.NewServer(Handler(eng, NewBroadcaster(), StatusSources{Device: "/dev/ttyACM0"}))
	t.Cleanup(srv.Close)
	return srv, eng
}

// noRedirect returns a client that reports redirects instead of following them.
func noRedirect(srv *httptest.Server) *http.Client {
	c := srv.Client()
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func decodeData(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("data json decode: %v", err)
	}
	return m
}

func TestDataEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, body := get(t, c, srv.URL+"/api/data")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	m := decodeData(t, body)

	if got := m["current_index"].(float64); got != -1 {
		t.Fatalf("current_index=%v want -1", got)
	}
	relPos := m["rel_pos"].(map[string]any)
	if got := relPos["n"].(float64); got != 1.5 {
		t.Fatalf("rel_pos.n=%v want 1.5", got)
	}
	fixM := m["fix"].(map[string]any)
	if got := fixM["type"].(string); got != "FIX_3D" {
		t.Fatalf("fix.type=%q want FIX_3D", got)
	}
	surveyM := m["survey"].(map[string]any)
	if got := surveyM["state"].(string); got != "idle" {
		t.Fatalf("survey.state=%q want idle", got)
	}
	if surveyM["average"] != nil {
		t.Fatalf("survey.average=%v want null before any run", surveyM["average"])
	}
}

func TestDataMethodGuard(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Post(srv.URL+"/api/data", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want 405", resp.StatusCode)
	}
}

func TestAddOffsetValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, body := get(t, c, srv.URL+"/api/add_offset?n=1&e=2")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for missing d", resp.StatusCode)
	}
	if !strings.Contains(body, "d parameter") {
		t.Fatalf("body=%q want mention of d parameter", body)
	}

	resp, _ = get(t, c, srv.URL+"/api/add_offset?n=1&e=2&d=3")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status=%d want 303", resp.StatusCode)
	}

	_, body = get(t, c, srv.URL+"/api/data")
	m := decodeData(t, body)
	offsets := m["offsets"].([]any)
	if len(offsets) != 1 {
		t.Fatalf("offsets len=%d want 1", len(offsets))
	}
}

func TestAddOffsetCapacity(t *testing.T) {
	srv, eng := newTestServer(t)
	c := noRedirect(srv)

	for i := 0; i < 20; i++ {
		if err := eng.AddOffset(vec(float64(i))); err != nil {
			t.Fatalf("AddOffset(%d) error: %v", i, err)
		}
	}
	resp, body := get(t, c, srv.URL+"/api/add_offset?n=1&e=1&d=1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 at capacity", resp.StatusCode)
	}
	if !strings.Contains(body, "full") {
		t.Fatalf("body=%q want capacity message", body)
	}
}

func TestSelectOffset(t *testing.T) {
	srv, eng := newTestServer(t)
	c := noRedirect(srv)

	_ = eng.AddOffset(vec(1))
	_ = eng.AddOffset(vec(2))

	resp, _ := get(t, c, srv.URL+"/api/select_offset?index=5")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for out-of-range index", resp.StatusCode)
	}
	resp, _ = get(t, c, srv.URL+"/api/select_offset?index=notanumber")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for non-numeric index", resp.StatusCode)
	}
	resp, _ = get(t, c, srv.URL+"/api/select_offset?index=1")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status=%d want 303", resp.StatusCode)
	}
}

func TestNextOffsetOnEmptyCatalog(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, body := get(t, c, srv.URL+"/api/next_offset")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200 notice", resp.StatusCode)
	}
	if !strings.Contains(body, "empty") {
		t.Fatalf("body=%q want empty-catalog notice", body)
	}
}

func TestUploadCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, err := c.Post(srv.URL+"/api/upload_csv", "text/plain", strings.NewReader(""))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 for empty body", resp.StatusCode)
	}

	resp, err = c.Post(srv.URL+"/api/upload_csv", "text/plain", strings.NewReader("1.0,2.0,3.0\nbad-line\n4.0,5.0,6.0"))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	var out struct {
		Added int `json:"added"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Added != 2 {
		t.Fatalf("added=%d want 2", out.Added)
	}
}

func TestSurveyLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, _ := get(t, c, srv.URL+"/api/stop_survey")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 stopping idle survey", resp.StatusCode)
	}

	resp, _ = get(t, c, srv.URL+"/api/start_survey")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status=%d want 303", resp.StatusCode)
	}
	resp, body := get(t, c, srv.URL+"/api/start_survey")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d want 400 starting twice, body=%q", resp.StatusCode, body)
	}

	resp, _ = get(t, c, srv.URL+"/api/stop_survey")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status=%d want 303", resp.StatusCode)
	}
}

func TestSetTargetRedirects(t *testing.T) {
	srv, _ := newTestServer(t)
	c := noRedirect(srv)

	resp, _ := get(t, c, srv.URL+"/api/set_target")
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status=%d want 303", resp.StatusCode)
	}

	_, body := get(t, c, srv.URL+"/api/data")
	m := decodeData(t, body)
	target := m["target"].(map[string]any)
	if got := target["n"].(float64); got != 1.5 {
		t.Fatalf("target.n=%v want 1.5", got)
	}
	offset := m["offset"].(map[string]any)
	if got := offset["n"].(float64); got != 0 {
		t.Fatalf("offset.n=%v want 0 after set_target", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.Client(), srv.URL+"/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	m := decodeData(t, body)
	if m["service"] != "surveypos" {
		t.Fatalf("service=%v", m["service"])
	}
	if m["device"] != "/dev/ttyACM0" {
		t.Fatalf("device=%v", m["device"])
	}
}
