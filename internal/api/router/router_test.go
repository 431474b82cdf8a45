package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/nano-editor/internal/api/handlers/catalog"
	exporthandler "github.com/aliskhannn/nano-editor/internal/api/handlers/export"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/project"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/session"
	"github.com/aliskhannn/nano-editor/internal/api/middleware"
	"github.com/aliskhannn/nano-editor/internal/api/router"
	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/history"
	"github.com/aliskhannn/nano-editor/internal/model"
	"github.com/aliskhannn/nano-editor/internal/notify"
	"github.com/aliskhannn/nano-editor/internal/processor"
	imagerepo "github.com/aliskhannn/nano-editor/internal/repository/image"
	editorsvc "github.com/aliskhannn/nano-editor/internal/service/editor"
	"github.com/aliskhannn/nano-editor/internal/store"
	"github.com/aliskhannn/nano-editor/internal/testutil"
)

type memImages struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.StoredImage
}

func (m *memImages) SaveImage(_ context.Context, img model.StoredImage) (model.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = map[uuid.UUID]model.StoredImage{}
	}
	m.byID[img.ID] = img
	return img, nil
}

func (m *memImages) GetImage(_ context.Context, id uuid.UUID) (model.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.byID[id]
	if !ok {
		return model.StoredImage{}, imagerepo.ErrImageNotFound
	}
	return img, nil
}

func (m *memImages) ListImages(_ context.Context, owner string, _ int) ([]model.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.StoredImage{}
	for _, img := range m.byID {
		if img.Owner == owner {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *memImages) DeleteImage(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return imagerepo.ErrImageNotFound
	}
	delete(m.byID, id)
	return nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = data
	return "https://cdn.test/images/" + name, nil
}

func (m *memObjects) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memObjects) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

func newRouter(t *testing.T, modify ...func(*editorsvc.Deps)) *ginext.Engine {
	t.Helper()

	clock := testutil.FixedClock()
	projects, err := store.NewJSONStore(filepath.Join(t.TempDir(), "projects.json"), 0, clock)
	if err != nil {
		t.Fatal(err)
	}

	notices := notify.New(notify.DefaultCapacity, clock)
	proc := processor.New(nil, nil)
	queue := export.NewQueue(proc, nil, notices, export.Options{Clock: clock})

	deps := editorsvc.Deps{
		Sessions:  editor.NewManager(history.Options{MinInterval: -1}, clock),
		Generator: generation.Mock{},
		Fetcher:   proc,
		Projects:  projects,
		Queue:     queue,
		Notices:   notices,
		Clock:     clock,
	}
	for _, m := range modify {
		m(&deps)
	}

	svc := editorsvc.NewService(deps, editorsvc.Options{})
	t.Cleanup(svc.Close)

	return router.Setup(router.Handlers{
		Session: session.NewHandler(svc),
		Export:  exporthandler.NewHandler(svc),
		Project: project.NewHandler(svc),
		Catalog: catalog.NewHandler(svc),
	})
}

func pngDataURL(t *testing.T) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return generation.EncodeDataURL(buf.Bytes(), "image/png")
}

func call(t *testing.T, r http.Handler, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return callAs(t, r, "alice", method, path, body, out)
}

func callAs(t *testing.T, r http.Handler, owner, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.OwnerHeader, owner)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		var envelope struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			t.Fatalf("%s %s: decode result: %v", method, path, err)
		}
	}

	return w
}

func TestEditingFlow(t *testing.T) {
	r := newRouter(t)

	var st editor.State
	if w := call(t, r, http.MethodPost, "/api/sessions", nil, &st); w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body)
	}
	if st.Owner != "alice" || st.CSSFilter != "none" {
		t.Errorf("new session = %+v", st)
	}
	base := "/api/sessions/" + st.ID.String()

	if w := call(t, r, http.MethodPut, base+"/image", map[string]string{"url": pngDataURL(t), "name": "beach.png"}, &st); w.Code != http.StatusOK {
		t.Fatalf("set image: %d %s", w.Code, w.Body)
	}

	call(t, r, http.MethodPut, base+"/adjustments/saturation", map[string]float64{"value": -100}, &st)
	if st.CSSFilter != "saturate(0)" || !st.CanUndo {
		t.Errorf("after saturation: css %q, can undo %v", st.CSSFilter, st.CanUndo)
	}

	call(t, r, http.MethodPost, base+"/undo", nil, &st)
	if st.CSSFilter != "none" || !st.CanRedo {
		t.Errorf("after undo: css %q, can redo %v", st.CSSFilter, st.CanRedo)
	}
	call(t, r, http.MethodPost, base+"/redo", nil, &st)
	if st.CSSFilter != "saturate(0)" {
		t.Errorf("after redo: css %q", st.CSSFilter)
	}

	if w := call(t, r, http.MethodPut, base+"/adjustments/sparkle", map[string]float64{"value": 1}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field: %d, want 400", w.Code)
	}
	if w := call(t, r, http.MethodPut, base+"/filter", map[string]string{"name": "lomo"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown filter: %d, want 400", w.Code)
	}

	if w := call(t, r, http.MethodPost, base+"/generate", map[string]string{"prompt": "golden hour", "aspect_ratio": "4:3"}, &st); w.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", w.Code, w.Body)
	}
	if len(st.Versions) != 1 || st.Image == nil || st.Image.ID != st.Versions[0].ID {
		t.Fatalf("after generate: %+v", st)
	}
	if w := call(t, r, http.MethodPost, base+"/generate", map[string]string{"prompt": ""}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty prompt: %d, want 400", w.Code)
	}

	var queued struct {
		JobIDs []string `json:"job_ids"`
	}
	configs := map[string]interface{}{"configs": []model.ExportConfig{
		{Format: "png"},
		{Format: "jpeg", Quality: 80, Resize: model.Resize{Mode: model.ResizeFit, Width: 4}},
	}}
	if w := call(t, r, http.MethodPost, base+"/exports", configs, &queued); w.Code != http.StatusCreated || len(queued.JobIDs) != 2 {
		t.Fatalf("queue exports: %d %s", w.Code, w.Body)
	}

	if w := call(t, r, http.MethodPost, "/api/exports/start", nil, nil); w.Code != http.StatusAccepted {
		t.Fatalf("start exports: %d %s", w.Code, w.Body)
	}
	waitForExports(t, r)

	var other exporthandler.QueueStatus
	callAs(t, r, "bob", http.MethodGet, "/api/exports", nil, &other)
	if len(other.Jobs) != 0 {
		t.Errorf("bob sees %d export jobs, want 0", len(other.Jobs))
	}
	if w := callAs(t, r, "bob", http.MethodGet, "/api/exports/"+queued.JobIDs[0]+"/download", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("download as another owner: %d, want 404", w.Code)
	}
	var cleared map[string]int
	callAs(t, r, "bob", http.MethodDelete, "/api/exports?all=true", nil, &cleared)
	if cleared["removed"] != 0 {
		t.Errorf("bob cleared %d jobs, want 0", cleared["removed"])
	}

	var job model.ExportJob
	call(t, r, http.MethodGet, "/api/exports/"+queued.JobIDs[1], nil, &job)
	if job.Status != model.StatusCompleted || job.Filename != "beach-edit-002.jpg" {
		t.Errorf("job = %s %q %q", job.Status, job.Filename, job.Error)
	}

	w := call(t, r, http.MethodGet, "/api/exports/"+queued.JobIDs[0]+"/download", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("download: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "beach-edit-001.png") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("downloaded file is not a png: %v", err)
	}

	var notes []notify.Notification
	call(t, r, http.MethodGet, "/api/notifications", nil, &notes)
	if len(notes) != 1 || !strings.Contains(notes[0].Message, "2 succeeded") {
		t.Errorf("notifications = %+v", notes)
	}

	var p model.Project
	if w := call(t, r, http.MethodPost, base+"/projects", map[string]string{"name": "Trip"}, &p); w.Code != http.StatusCreated {
		t.Fatalf("save project: %d %s", w.Code, w.Body)
	}
	if p.Name != "Trip" || p.Adjustments.Saturation != -100 {
		t.Errorf("project = %+v", p)
	}

	var projects []model.Project
	call(t, r, http.MethodGet, "/api/projects", nil, &projects)
	if len(projects) != 1 {
		t.Errorf("projects = %d, want 1", len(projects))
	}

	var opened editor.State
	if w := call(t, r, http.MethodPost, "/api/projects/"+p.ID.String()+"/open", nil, &opened); w.Code != http.StatusCreated {
		t.Fatalf("open project: %d %s", w.Code, w.Body)
	}
	if opened.ID == st.ID || opened.CSSFilter != "saturate(0)" || opened.CanUndo {
		t.Errorf("opened = %+v", opened)
	}
}

func TestErrors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"malformed session id", http.MethodGet, "/api/sessions/nope", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/sessions/7f1c3a52-4a57-4b7b-9a43-0c6a3f5c2f10", nil, http.StatusNotFound},
		{"unknown export", http.MethodGet, "/api/exports/7f1c3a52-4a57-4b7b-9a43-0c6a3f5c2f10", nil, http.StatusNotFound},
		{"unknown project", http.MethodDelete, "/api/projects/7f1c3a52-4a57-4b7b-9a43-0c6a3f5c2f10", nil, http.StatusNotFound},
		{"unknown notification", http.MethodDelete, "/api/notifications/7f1c3a52-4a57-4b7b-9a43-0c6a3f5c2f10", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := call(t, r, tt.method, tt.path, tt.body, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestExportsWithoutImage(t *testing.T) {
	r := newRouter(t)

	var st editor.State
	call(t, r, http.MethodPost, "/api/sessions", nil, &st)

	body := map[string]interface{}{"configs": []model.ExportConfig{{Format: "png"}}}
	if w := call(t, r, http.MethodPost, "/api/sessions/"+st.ID.String()+"/exports", body, nil); w.Code != http.StatusConflict {
		t.Errorf("export without image: %d, want 409", w.Code)
	}
}

func TestCatalog(t *testing.T) {
	r := newRouter(t)

	var presets []struct {
		Name string `json:"name"`
	}
	call(t, r, http.MethodGet, "/api/presets", nil, &presets)
	if len(presets) == 0 || presets[0].Name > presets[len(presets)-1].Name {
		t.Errorf("presets = %+v", presets)
	}

	var formats []model.Format
	call(t, r, http.MethodGet, "/api/formats", nil, &formats)
	if len(formats) != len(model.Formats) {
		t.Errorf("formats = %d, want %d", len(formats), len(model.Formats))
	}

	var images []model.StoredImage
	if w := call(t, r, http.MethodGet, "/api/images", nil, &images); w.Code != http.StatusOK || len(images) != 0 {
		t.Errorf("images: %d %v", w.Code, images)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: %d %v", w.Code, w.Header())
	}
}

func TestImages_GetAndDelete(t *testing.T) {
	images := &memImages{}
	objects := &memObjects{}
	r := newRouter(t, func(d *editorsvc.Deps) {
		d.Images = images
		d.Storage = objects
	})
	ctx := context.Background()

	mine := model.StoredImage{ID: uuid.New(), Name: "beach.png", Kind: model.KindPrimary, Owner: "alice"}
	object := "primary/" + mine.ID.String() + ".png"
	mine.URL, _ = objects.Upload(ctx, object, []byte("png"), "image/png")
	images.SaveImage(ctx, mine)

	path := "/api/images/" + mine.ID.String()

	var got model.StoredImage
	if w := call(t, r, http.MethodGet, path, nil, &got); w.Code != http.StatusOK {
		t.Fatalf("get image: %d %s", w.Code, w.Body)
	}
	if got.ID != mine.ID || got.Name != "beach.png" {
		t.Errorf("image = %+v", got)
	}

	tests := []struct {
		name   string
		owner  string
		method string
		path   string
		want   int
	}{
		{"malformed id", "alice", http.MethodGet, "/api/images/nope", http.StatusBadRequest},
		{"unknown image", "alice", http.MethodGet, "/api/images/" + uuid.NewString(), http.StatusNotFound},
		{"other owner get", "bob", http.MethodGet, path, http.StatusNotFound},
		{"other owner delete", "bob", http.MethodDelete, path, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := callAs(t, r, tt.owner, tt.method, tt.path, nil, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
	if !objects.has(object) {
		t.Fatal("object removed by another owner")
	}

	if w := call(t, r, http.MethodDelete, path, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete image: %d %s", w.Code, w.Body)
	}
	if objects.has(object) {
		t.Errorf("object %s still stored", object)
	}
	if _, err := images.GetImage(ctx, mine.ID); err == nil {
		t.Error("image record still present")
	}

	if w := call(t, r, http.MethodDelete, path, nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: %d, want 404", w.Code)
	}
}

func waitForExports(t *testing.T, r http.Handler) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var status exporthandler.QueueStatus
		call(t, r, http.MethodGet, "/api/exports", nil, &status)

		done := !status.Processing
		for _, j := range status.Jobs {
			if !j.Finished() {
				done = false
			}
		}
		if done {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("exports did not finish")
}
