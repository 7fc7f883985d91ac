package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/editor/internal/audit"
	"arbor/editor/internal/client"
	"arbor/editor/internal/config"
	"arbor/editor/internal/domain"
	"arbor/editor/internal/stubserver"
)

const sessionFixture = `
models:
  blog-post:
    fields:
      - {name: title, label: Title, type: string}
      - {name: body, label: Body, type: text}
      - {name: published, label: Published, type: boolean}
root:
  label: Welcome
  data:
    title: Welcome
    body: Demo site.
  children:
    - id: blog
      label: Blog
      data:
        title: Blog
      children:
        - id: post-1
          label: First Post
          model: blog-post
          data:
            title: First Post
            body: Hello world.
            published: "yes"
`

func newStubSession(t *testing.T, auditLog audit.Logger) *Session {
	t.Helper()
	stub, err := stubserver.FromBytes([]byte(sessionFixture))
	require.NoError(t, err)
	ts := httptest.NewServer(stub.Handler())
	t.Cleanup(ts.Close)

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL + "/admin/api",
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	return New(cl, config.EditorConfig{LoadTimeout: 5}, nil, auditLog)
}

func navigateReady(t *testing.T, s *Session, path string) {
	t.Helper()
	require.NoError(t, s.Navigate(context.Background(), path, ""))
	state, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, state)
}

func fieldByName(t *testing.T, s *Session, name string) domain.FieldDescriptor {
	t.Helper()
	for _, f := range s.Form().Model {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no field %q in model", name)
	return domain.FieldDescriptor{}
}

func TestNavigateLoadsRecordAndTrail(t *testing.T) {
	s := newStubSession(t, nil)

	require.Equal(t, StateUnloaded, s.State())
	navigateReady(t, s, "/blog/post-1")

	form := s.Form()
	assert.True(t, form.Info.Exists)
	assert.Equal(t, "First Post", form.Info.Label)
	assert.Equal(t, "First Post", form.DisplayValue(fieldByName(t, s, "title")))
	assert.Equal(t, true, form.DisplayValue(fieldByName(t, s, "published")))

	require.Equal(t, StateReady, s.TrailState())
	trail := s.Trail()
	require.Len(t, trail.Crumbs, 3)
	assert.Equal(t, "/blog/post-1", trail.Crumbs[2].RecordPath)
	assert.False(t, trail.Fallback)

	path, alt := s.Location()
	assert.Equal(t, "/blog/post-1", path)
	assert.Equal(t, "_primary", alt)
}

func TestNavigateCanonicalizesPath(t *testing.T) {
	s := newStubSession(t, nil)

	navigateReady(t, s, "//blog/./post-1/")
	path, _ := s.Location()
	assert.Equal(t, "/blog/post-1", path)
}

func TestNavigateRejectsMalformedPathBeforeRequest(t *testing.T) {
	s := newStubSession(t, nil)

	err := s.Navigate(context.Background(), "/blog/../../etc", "")
	require.Error(t, err)
	assert.Equal(t, StateUnloaded, s.State())
}

func TestNavigateMissingRecordIsReady(t *testing.T) {
	s := newStubSession(t, nil)

	navigateReady(t, s, "/blog/not-yet-written")

	form := s.Form()
	assert.False(t, form.Info.Exists)
	assert.Equal(t, "not-yet-written", form.Info.ID)

	trail := s.Trail()
	require.Len(t, trail.Crumbs, 3)
	assert.True(t, trail.Crumbs[2].Missing)
	assert.Equal(t, "not-yet-written", trail.Crumbs[2].Label)
}

func TestEditsDoNotCarryAcrossNavigation(t *testing.T) {
	s := newStubSession(t, nil)

	navigateReady(t, s, "/blog/post-1")
	s.SetFieldValue(fieldByName(t, s, "title"), "Edited Title")
	require.True(t, s.Form().Dirty())

	navigateReady(t, s, "/blog")
	form := s.Form()
	assert.False(t, form.Dirty())
	assert.Equal(t, "Blog", form.DisplayValue(domain.FieldDescriptor{Name: "title", Type: "string"}))
}

func TestSaveSubmitsAndCleansSnapshot(t *testing.T) {
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer auditLog.Close()

	s := newStubSession(t, auditLog)
	navigateReady(t, s, "/blog/post-1")

	title := fieldByName(t, s, "title")
	published := fieldByName(t, s, "published")
	s.SetFieldValue(title, "Updated Post")
	s.SetFieldValue(published, false)

	require.NoError(t, s.Save(context.Background()))

	form := s.Form()
	assert.False(t, form.Dirty())
	assert.Equal(t, "Updated Post", form.DisplayValue(title))
	assert.Equal(t, "no", form.InitialData["published"])

	// The server side reflects the save on the next load.
	navigateReady(t, s, "/blog/post-1")
	assert.Equal(t, "Updated Post", s.Form().DisplayValue(title))

	events, err := auditLog.Events(context.Background(), s.ID())
	require.NoError(t, err)
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, audit.EventRecordLoad)
	assert.Contains(t, types, audit.EventRecordSave)
}

func TestSaveRequiresLoadedRecord(t *testing.T) {
	s := newStubSession(t, nil)

	err := s.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unloaded")
}

func TestAddChildAndDelete(t *testing.T) {
	s := newStubSession(t, nil)
	navigateReady(t, s, "/blog")

	result, err := s.AddChild(context.Background(), "", map[string]string{"title": "Second Post"})
	require.NoError(t, err)
	assert.True(t, result.ValidID)
	assert.False(t, result.Exists)
	assert.Equal(t, "/blog/second-post", result.Path)

	navigateReady(t, s, result.Path)
	require.True(t, s.Form().Info.Exists)

	require.NoError(t, s.Delete(context.Background(), true))
	state, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, state)

	path, _ := s.Location()
	assert.Equal(t, "/blog", path)
}

func TestSubscribeObservesLifecycle(t *testing.T) {
	s := newStubSession(t, nil)

	var mu sync.Mutex
	var seen []EventType
	s.Subscribe(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	})

	navigateReady(t, s, "/blog/post-1")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, EventNavigated)
	assert.Contains(t, seen, EventTrailLoaded)
	assert.Contains(t, seen, EventRecordLoaded)
}

// flakyHandler serves pathinfo normally and fails the first rawrecord load.
type flakyHandler struct {
	mu       sync.Mutex
	failures int
}

func (h *flakyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/pathinfo":
		writeTestJSON(w, domain.PathInfo{Segments: []domain.PathSegment{
			{Path: "/", ID: "", Label: "Welcome", Exists: true, CanHaveChildren: true},
		}})
	case "/rawrecord":
		h.mu.Lock()
		fail := h.failures > 0
		if fail {
			h.failures--
		}
		h.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeTestJSON(w, testRecord("/", "Welcome"))
	default:
		http.NotFound(w, r)
	}
}

func TestLoadFailureEntersErrorStateAndRetryRecovers(t *testing.T) {
	ts := httptest.NewServer(&flakyHandler{failures: 1})
	defer ts.Close()

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL,
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	s := New(cl, config.EditorConfig{LoadTimeout: 5}, nil, nil)

	require.NoError(t, s.Navigate(context.Background(), "/", ""))
	state, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateError, state)

	var reqErr *client.RequestError
	require.ErrorAs(t, s.LastError(), &reqErr)

	// The breadcrumb side is unaffected by the record failure.
	assert.Equal(t, StateReady, s.TrailState())

	require.NoError(t, s.Retry(context.Background()))
	state, err = s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
	assert.NoError(t, s.LastError())
}

func TestRetryOnlyValidInErrorState(t *testing.T) {
	s := newStubSession(t, nil)
	navigateReady(t, s, "/")

	require.Error(t, s.Retry(context.Background()))
}

func TestTrailDegradesToFallbackOnPathInfoFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pathinfo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/rawrecord", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, testRecord("/blog", "Blog"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL,
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	s := New(cl, config.EditorConfig{LoadTimeout: 5}, nil, nil)

	require.NoError(t, s.Navigate(context.Background(), "/blog", ""))
	state, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, state)

	trail := s.Trail()
	assert.True(t, trail.Fallback)
	require.Len(t, trail.Crumbs, 1)
	assert.Equal(t, "root", trail.Crumbs[0].Link.Path)
	assert.Equal(t, StateReady, s.TrailState())
}

// gatedHandler blocks the rawrecord response for one path until released.
type gatedHandler struct {
	gatedPath string
	arrived   chan struct{}
	release   chan struct{}
	once      sync.Once
}

func (h *gatedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	switch r.URL.Path {
	case "/pathinfo":
		writeTestJSON(w, domain.PathInfo{Segments: []domain.PathSegment{
			{Path: path, ID: path[1:], Label: path, Exists: true},
		}})
	case "/rawrecord":
		if path == h.gatedPath {
			h.once.Do(func() { close(h.arrived) })
			select {
			case <-h.release:
			case <-r.Context().Done():
				return
			}
		}
		writeTestJSON(w, testRecord(path, "record "+path))
	default:
		http.NotFound(w, r)
	}
}

func TestStaleResponseIsRejected(t *testing.T) {
	h := &gatedHandler{
		gatedPath: "/a",
		arrived:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	ts := httptest.NewServer(h)
	defer ts.Close()

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL,
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	s := New(cl, config.EditorConfig{LoadTimeout: 5}, nil, nil)

	var mu sync.Mutex
	recordLoads := map[string]int{}
	s.Subscribe(func(ev Event) {
		if ev.Type == EventRecordLoaded {
			mu.Lock()
			recordLoads[ev.Path]++
			mu.Unlock()
		}
	})

	// Start loading /a and let the request reach the server.
	require.NoError(t, s.Navigate(context.Background(), "/a", ""))
	select {
	case <-h.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("rawrecord request for /a never arrived")
	}

	// Supersede it with /b, which completes normally.
	require.NoError(t, s.Navigate(context.Background(), "/b", ""))
	state, err := s.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, state)

	// Let the gated /a response go out and give it time to be (wrongly)
	// applied if the guard were missing.
	close(h.release)
	time.Sleep(100 * time.Millisecond)

	path, _ := s.Location()
	assert.Equal(t, "/b", path)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, "/b", s.Form().InitialData["_path"])

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, recordLoads["/a"], "stale /a response must not be applied")
	assert.Equal(t, 1, recordLoads["/b"])
}

func TestWaitHonorsContext(t *testing.T) {
	h := &gatedHandler{
		gatedPath: "/a",
		arrived:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	ts := httptest.NewServer(h)
	defer ts.Close()
	defer close(h.release)

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL,
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	s := New(cl, config.EditorConfig{LoadTimeout: 5}, nil, nil)

	require.NoError(t, s.Navigate(context.Background(), "/a", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	state, err := s.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateLoading, state)
}

// gatedSaveHandler serves loads normally but blocks the save request until
// released.
type gatedSaveHandler struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *gatedSaveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	switch {
	case r.URL.Path == "/pathinfo":
		writeTestJSON(w, domain.PathInfo{Segments: []domain.PathSegment{
			{Path: path, ID: path[1:], Label: path, Exists: true},
		}})
	case r.URL.Path == "/rawrecord" && r.Method == http.MethodPut:
		h.once.Do(func() { close(h.arrived) })
		select {
		case <-h.release:
		case <-r.Context().Done():
			return
		}
		writeTestJSON(w, map[string]any{"ok": true})
	case r.URL.Path == "/rawrecord":
		rec := testRecord(path, "record "+path)
		rec.Data["body"] = "stored body"
		rec.DataModel.Fields = append(rec.DataModel.Fields, domain.FieldDescriptor{
			Name: "body", Label: "Body", Type: "string",
		})
		writeTestJSON(w, rec)
	default:
		http.NotFound(w, r)
	}
}

func TestEditsDuringSaveStayPending(t *testing.T) {
	h := &gatedSaveHandler{
		arrived: make(chan struct{}),
		release: make(chan struct{}),
	}
	ts := httptest.NewServer(h)
	defer ts.Close()

	cl := client.NewAdminClient(config.ServerConfig{
		BaseURL:              ts.URL,
		Timeout:              5,
		MaxRequestsPerSecond: 100,
	})
	s := New(cl, config.EditorConfig{LoadTimeout: 5}, nil, nil)

	navigateReady(t, s, "/note")
	title := fieldByName(t, s, "title")
	body := fieldByName(t, s, "body")

	s.SetFieldValue(title, "Edited title")

	saveErr := make(chan error, 1)
	go func() { saveErr <- s.Save(context.Background()) }()
	select {
	case <-h.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("save request never arrived")
	}

	// Input lands while the save request is still on the wire.
	s.SetFieldValue(body, "typed during save")
	close(h.release)
	require.NoError(t, <-saveErr)

	form := s.Form()
	assert.Equal(t, "typed during save", form.DisplayValue(body))
	assert.True(t, form.Dirty(), "the mid-save edit must stay pending")
	assert.Equal(t, "Edited title", form.InitialData["title"])
	_, titlePending := form.PendingEdits["title"]
	assert.False(t, titlePending, "the transmitted edit folds into the stored data")
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testRecord(path, title string) domain.RawRecord {
	return domain.RawRecord{
		Data: map[string]string{
			"_path": path,
			"title": title,
		},
		DataModel: domain.DataModel{Fields: []domain.FieldDescriptor{
			{Name: "title", Label: "Title", Type: "string"},
		}},
		RecordInfo: domain.RecordInfo{Exists: true, Label: title, ID: path[1:]},
	}
}
