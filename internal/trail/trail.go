// Package trail derives breadcrumb trails from ancestor-chain metadata. A
// trail is the root-to-current list of navigable crumbs plus the optional
// add-child affordance after the last one. Building never fails: missing
// metadata degrades to a single fallback crumb pointing back at the overview.
package trail

import (
	"arbor/editor/internal/domain"
	"arbor/editor/internal/paths"
)

// MissingClass is the rendering class attached to crumbs whose record is
// addressable but not materialized.
const MissingClass = "missing-record-crumb"

// Translation key for the fallback crumb's label.
const backToOverviewKey = "BACK_TO_OVERVIEW"

// Link is one outbound navigation the route collaborator can follow: a named
// destination plus the admin-encoded, alt-qualified record path.
type Link struct {
	Target domain.Target
	Path   string
}

// Crumb is one rendered trail entry.
type Crumb struct {
	RecordPath string
	Label      string
	Missing    bool
	Class      string
	Link       Link
}

// Trail is an ordered breadcrumb sequence from root to the current record.
type Trail struct {
	Crumbs      []Crumb
	Fallback    bool
	CanAddChild bool
	AddChild    Link
}

// Current returns the trail's last crumb, the record being viewed.
func (t Trail) Current() (Crumb, bool) {
	if len(t.Crumbs) == 0 || t.Fallback {
		return Crumb{}, false
	}
	return t.Crumbs[len(t.Crumbs)-1], true
}

// CloseURL resolves the public page URL for the close affordance, which
// leaves the editor with a full-document navigation. Without preview
// information it falls back to the site root.
func (t Trail) CloseURL(info *domain.PreviewInfo) string {
	if info != nil && info.URL != "" {
		return info.URL
	}
	return "/"
}

// Builder turns path-info segments into a Trail for one view configuration.
// Every generated link re-embeds Alt so moving along the trail keeps the
// user's variant context. Translate is the injected lookup for static UI
// strings; nil leaves keys untranslated.
type Builder struct {
	Alt       string
	Target    domain.Target
	Translate func(key string) string
}

func (b Builder) translate(key string) string {
	if b.Translate == nil {
		return key
	}
	return b.Translate(key)
}

func (b Builder) target() domain.Target {
	if b.Target == "" {
		return domain.TargetEdit
	}
	return b.Target
}

// Build derives the trail for the given segments, ordered root to current.
// Empty segments yield exactly one fallback crumb linking to the root
// overview in edit mode; the fallback link carries no alt qualifier, matching
// the overview's own addressing.
func (b Builder) Build(segments []domain.PathSegment) Trail {
	if len(segments) == 0 {
		return Trail{
			Crumbs: []Crumb{{
				RecordPath: paths.Root,
				Label:      b.translate(backToOverviewKey),
				Link: Link{
					Target: domain.TargetEdit,
					Path:   paths.ToURLPath(paths.Root),
				},
			}},
			Fallback: true,
		}
	}

	crumbs := make([]Crumb, 0, len(segments))
	for _, seg := range segments {
		crumb := Crumb{
			RecordPath: seg.Path,
			Label:      seg.Label,
			Link: Link{
				Target: b.target(),
				Path:   paths.ToURLPath(paths.WithAlt(seg.Path, b.Alt)),
			},
		}
		if !seg.Exists {
			// No human label is available for a node that was never created.
			crumb.Label = seg.ID
			crumb.Missing = true
			crumb.Class = MissingClass
		}
		crumbs = append(crumbs, crumb)
	}

	t := Trail{Crumbs: crumbs}
	if last := segments[len(segments)-1]; last.CanHaveChildren {
		t.CanAddChild = true
		t.AddChild = Link{
			Target: domain.TargetAddChild,
			Path:   paths.ToURLPath(paths.WithAlt(last.Path, b.Alt)),
		}
	}
	return t
}
