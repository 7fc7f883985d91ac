package stubserver

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"arbor/editor/internal/domain"
	"arbor/editor/internal/paths"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Handler returns the full stub: the admin API under /admin/api and rendered
// record pages everywhere else, so preview fetching has something to read.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/admin/api", s.Routes)
	r.Get("/*", s.handlePage)
	return r
}

// Routes registers the admin API endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/pathinfo", s.handlePathInfo)
	r.Get("/rawrecord", s.handleRawRecord)
	r.Put("/rawrecord", s.handlePutRawRecord)
	r.Post("/newrecord", s.handleNewRecord)
	r.Post("/deleterecord", s.handleDeleteRecord)
	r.Get("/previewinfo", s.handlePreviewInfo)
	r.Get("/ping", s.handlePing)
}

// splitRequestPath canonicalizes the path query parameter. Only a malformed
// path is a 404 at this layer; a well-formed path with no record behind it is
// served as addressable-but-missing.
func splitRequestPath(w http.ResponseWriter, r *http.Request) (path, alt string, ok bool) {
	rawPath, alt := paths.SplitAlt(r.URL.Query().Get("path"))
	canonical, err := paths.Canonicalize(rawPath)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return "", "", false
	}
	return canonical, alt, true
}

func (s *Server) handlePathInfo(w http.ResponseWriter, r *http.Request) {
	path, alt, ok := splitRequestPath(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := []string{paths.Root}
	if path != paths.Root {
		segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
		for i := range segs {
			chain = append(chain, "/"+strings.Join(segs[:i+1], "/"))
		}
	}

	info := domain.PathInfo{Segments: make([]domain.PathSegment, 0, len(chain))}
	for _, p := range chain {
		seg := domain.PathSegment{Path: p, ID: paths.ID(p)}
		if n := s.resolve(p); n != nil {
			seg.Exists = true
			seg.Label = s.label(n, alt)
			seg.CanHaveChildren = canHaveChildren(n)
		}
		info.Segments = append(info.Segments, seg)
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRawRecord(w http.ResponseWriter, r *http.Request) {
	path, alt, ok := splitRequestPath(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.resolve(path)
	model := s.modelName(n)

	rec := domain.RawRecord{
		DataModel: domain.DataModel{Fields: s.modelFields(model)},
		RecordInfo: domain.RecordInfo{
			ID: paths.ID(path),
		},
	}
	if n != nil {
		rec.Data = s.recordData(n, path, alt, model)
		rec.RecordInfo.Exists = true
		rec.RecordInfo.Label = s.label(n, alt)
		rec.RecordInfo.Attachment = n.AttachmentType != ""
		rec.RecordInfo.URLPath = publicURLPath(path, alt)
	} else {
		// Addressable but never created: identifiers only, exists=false.
		rec.Data = map[string]string{
			domain.FieldPath:     path,
			domain.FieldID:       paths.ID(path),
			domain.FieldGlobalID: paths.GlobalID(path),
			domain.FieldAlt:      alt,
			domain.FieldModel:    "",
		}
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePutRawRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string            `json:"path"`
		Data map[string]string `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rawPath, alt := paths.SplitAlt(req.Path)
	canonical, err := paths.Canonicalize(rawPath)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.resolve(canonical)
	if n == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record at path"})
		return
	}

	mergeRecordData(n, alt, req.Data)
	log.Debugf("stub: stored %d fields at %s", len(req.Data), req.Path)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleNewRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string            `json:"path"`
		ID   string            `json:"id"`
		Data map[string]string `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rawParent, _ := paths.SplitAlt(req.Path)
	parentPath, err := paths.Canonicalize(rawParent)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.resolve(parentPath)
	if parent == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record at path"})
		return
	}

	if req.ID == "" || req.ID != paths.Slugify(req.ID) {
		writeJSON(w, http.StatusOK, domain.NewRecordResult{ValidID: false})
		return
	}

	childPath := parentPath + "/" + req.ID
	if parentPath == paths.Root {
		childPath = "/" + req.ID
	}
	for _, child := range parent.Children {
		if child.ID == req.ID {
			writeJSON(w, http.StatusOK, domain.NewRecordResult{ValidID: true, Exists: true, Path: childPath})
			return
		}
	}

	child := &node{
		ID:    req.ID,
		Label: req.ID,
		Model: defaultModel,
	}
	if title := req.Data["title"]; title != "" {
		child.Label = title
	}
	if model := req.Data[domain.FieldModel]; model != "" {
		child.Model = model
	}
	mergeRecordData(child, paths.PrimaryAlt, req.Data)
	parent.Children = append(parent.Children, child)

	log.Debugf("stub: created %s", childPath)
	writeJSON(w, http.StatusOK, domain.NewRecordResult{ValidID: true, Exists: false, Path: childPath})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string `json:"path"`
		DeleteMaster bool   `json:"delete_master"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rawPath, alt := paths.SplitAlt(req.Path)
	canonical, err := paths.Canonicalize(rawPath)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if canonical == paths.Root {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot delete the root record"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.resolve(canonical)
	if n == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record at path"})
		return
	}

	if alt != paths.PrimaryAlt && !req.DeleteMaster {
		delete(n.Alts, alt)
	} else {
		parent := s.resolve(paths.Parent(canonical))
		removeChild(parent, paths.ID(canonical))
	}

	log.Debugf("stub: deleted %s (delete_master=%v)", req.Path, req.DeleteMaster)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handlePreviewInfo(w http.ResponseWriter, r *http.Request) {
	path, alt, ok := splitRequestPath(w, r)
	if !ok {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info := domain.PreviewInfo{}
	if s.resolve(path) != nil {
		info.Exists = true
		info.URL = publicURLPath(path, alt)
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	writeJSON(w, http.StatusOK, domain.ServerInfo{
		ProjectID: s.project.ID,
		Version:   s.project.Version,
	})
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<title>{{.Title}}</title>
<link rel="canonical" href="{{.Canonical}}">
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
</body>
</html>
`))

// handlePage renders a minimal published page for a record so preview
// fetching sees realistic markup. The leading URL segment selects the alt
// when it matches one from the fixture.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	urlPath := strings.Trim(r.URL.Path, "/")

	alt := paths.PrimaryAlt
	segs := []string{}
	if urlPath != "" {
		segs = strings.Split(urlPath, "/")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(segs) > 0 {
		if _, ok := s.alts[segs[0]]; ok {
			alt = segs[0]
			segs = segs[1:]
		}
	}

	path := paths.Root
	if len(segs) > 0 {
		path = "/" + strings.Join(segs, "/")
	}

	n := s.resolve(path)
	if n == nil {
		http.NotFound(w, r)
		return
	}

	data := s.recordData(n, path, alt, s.modelName(n))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTemplate.Execute(w, map[string]string{
		"Title":     s.label(n, alt),
		"Body":      data["body"],
		"Canonical": publicURLPath(path, alt),
	})
	if err != nil {
		log.Errorf("stub: render page %s: %v", r.URL.Path, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("stub: encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}
