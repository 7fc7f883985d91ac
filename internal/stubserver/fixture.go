// Package stubserver implements a small in-memory CMS admin API for local
// development and integration tests. It serves the same endpoint shapes as a
// real content server from a YAML-described record tree, and mutating
// endpoints change only the in-memory tree. It is a test double, not a CMS:
// there is no templating, publishing or asset pipeline behind it.
package stubserver

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"arbor/editor/internal/domain"
	"arbor/editor/internal/paths"

	"gopkg.in/yaml.v3"
)

const defaultModel = "page"

type fixture struct {
	Project projectSpec          `yaml:"project"`
	Models  map[string]modelSpec `yaml:"models"`
	Root    *node                `yaml:"root"`
}

type projectSpec struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

type modelSpec struct {
	Fields []fieldSpec `yaml:"fields"`
}

type fieldSpec struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Type  string `yaml:"type"`
}

// node is one record in the fixture tree. Children are ordered; alts overlay
// the primary label and data per variant.
type node struct {
	ID             string             `yaml:"id"`
	Label          string             `yaml:"label"`
	Model          string             `yaml:"model"`
	AttachmentType string             `yaml:"attachment_type"`
	Data           map[string]string  `yaml:"data"`
	Alts           map[string]altData `yaml:"alts"`
	Children       []*node            `yaml:"children"`
}

type altData struct {
	Label string            `yaml:"label"`
	Data  map[string]string `yaml:"data"`
}

// Server holds the mutable record tree behind the stub endpoints.
type Server struct {
	mu      sync.RWMutex
	project projectSpec
	models  map[string]modelSpec
	root    *node
	alts    map[string]struct{}
}

// New loads the fixture file and builds a stub server from it.
func New(fixturePath string) (*Server, error) {
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return FromBytes(raw)
}

// FromBytes builds a stub server from raw fixture YAML.
func FromBytes(raw []byte) (*Server, error) {
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Root == nil {
		return nil, fmt.Errorf("fixture has no root record")
	}
	if f.Models == nil {
		f.Models = map[string]modelSpec{}
	}
	if _, ok := f.Models[defaultModel]; !ok {
		f.Models[defaultModel] = modelSpec{Fields: []fieldSpec{
			{Name: "title", Label: "Title", Type: "string"},
			{Name: "body", Label: "Body", Type: "text"},
		}}
	}
	if f.Project.ID == "" {
		f.Project.ID = "stub"
	}
	if f.Project.Version == "" {
		f.Project.Version = "dev"
	}

	s := &Server{
		project: f.Project,
		models:  f.Models,
		root:    f.Root,
		alts:    map[string]struct{}{},
	}
	s.collectAlts(f.Root)
	return s, nil
}

func (s *Server) collectAlts(n *node) {
	for alt := range n.Alts {
		s.alts[alt] = struct{}{}
	}
	for _, child := range n.Children {
		s.collectAlts(child)
	}
}

// resolve walks the tree to the node at the canonical path, or nil.
func (s *Server) resolve(path string) *node {
	cur := s.root
	if path == paths.Root {
		return cur
	}
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		var next *node
		for _, child := range cur.Children {
			if child.ID == seg {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (s *Server) label(n *node, alt string) string {
	if a, ok := n.Alts[alt]; ok && a.Label != "" {
		return a.Label
	}
	return n.Label
}

func canHaveChildren(n *node) bool {
	return n.AttachmentType == ""
}

// recordData assembles the wire data map for a node: primary data, the alt
// overlay and the server-derived system fields.
func (s *Server) recordData(n *node, path, alt, model string) map[string]string {
	data := make(map[string]string, len(n.Data)+8)
	for k, v := range n.Data {
		data[k] = v
	}
	if a, ok := n.Alts[alt]; ok {
		for k, v := range a.Data {
			data[k] = v
		}
	}

	data[domain.FieldPath] = path
	data[domain.FieldID] = paths.ID(path)
	data[domain.FieldGlobalID] = paths.GlobalID(path)
	data[domain.FieldAlt] = alt
	data[domain.FieldModel] = model
	if n.AttachmentType != "" {
		data[domain.FieldAttachmentFor] = paths.Parent(path)
		data[domain.FieldAttachmentType] = n.AttachmentType
	}
	return data
}

func (s *Server) modelFields(model string) []domain.FieldDescriptor {
	spec, ok := s.models[model]
	if !ok {
		spec = s.models[defaultModel]
	}
	fields := make([]domain.FieldDescriptor, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		fields = append(fields, domain.FieldDescriptor{Name: f.Name, Label: f.Label, Type: f.Type})
	}
	return fields
}

func (s *Server) modelName(n *node) string {
	if n != nil && n.Model != "" {
		return n.Model
	}
	return defaultModel
}

// publicURLPath maps a record path and alt to the published page URL: the alt
// becomes a leading language prefix, the record path follows, and every page
// URL ends with a slash.
func publicURLPath(path, alt string) string {
	var b strings.Builder
	if alt != "" && alt != paths.PrimaryAlt {
		b.WriteString("/")
		b.WriteString(alt)
	}
	if path != paths.Root {
		b.WriteString(path)
	}
	b.WriteString("/")
	return b.String()
}

// mergeRecordData stores submitted values on a node. Underscore-prefixed keys
// are server-derived identifiers and are dropped rather than stored.
func mergeRecordData(n *node, alt string, values map[string]string) {
	target := n.Data
	if alt != "" && alt != paths.PrimaryAlt {
		overlay := n.Alts[alt]
		if overlay.Data == nil {
			overlay.Data = map[string]string{}
		}
		if n.Alts == nil {
			n.Alts = map[string]altData{}
		}
		n.Alts[alt] = overlay
		target = overlay.Data
	} else if target == nil {
		target = map[string]string{}
		n.Data = target
	}

	for k, v := range values {
		if strings.HasPrefix(k, domain.SystemFieldPrefix) {
			continue
		}
		target[k] = v
	}
}

// removeChild detaches the child with the given id, reporting whether it was
// present.
func removeChild(parent *node, id string) bool {
	for i, child := range parent.Children {
		if child.ID == id {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return true
		}
	}
	return false
}
