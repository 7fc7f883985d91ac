// Package session owns the per-record editing lifecycle: it resolves and
// navigates record paths, runs the two loads behind every navigation, and
// holds the breadcrumb trail and form snapshot the rest of the editor renders
// from. Responses are applied only when they belong to the latest navigation,
// so a superseded load can never clobber newer state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbor/editor/internal/audit"
	"arbor/editor/internal/client"
	"arbor/editor/internal/config"
	"arbor/editor/internal/domain"
	"arbor/editor/internal/form"
	"arbor/editor/internal/i18n"
	"arbor/editor/internal/paths"
	"arbor/editor/internal/trail"
	"arbor/editor/internal/widget"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultLoadTimeout = 15 * time.Second

// Session is safe for concurrent use. All accessors return copies; the form
// snapshot itself is a value with copy-on-write edits.
type Session struct {
	id         string
	client     client.AdminClient
	translator i18n.Translator
	audit      audit.Logger
	registry   *widget.Registry
	defaultAlt string
	timeout    time.Duration

	mu           sync.RWMutex
	generation   uint64
	cancelLoad   context.CancelFunc
	loadDone     chan struct{}
	path         string
	alt          string
	target       domain.Target
	state        State
	trailState   State
	lastErr      error
	snapshot     form.Snapshot
	trail        trail.Trail
	lastSegments []domain.PathSegment
	subscribers  []func(Event)
}

// New creates an idle session. Nothing is loaded until the first Navigate.
func New(cl client.AdminClient, cfg config.EditorConfig, translator i18n.Translator, auditLog audit.Logger) *Session {
	if auditLog == nil {
		auditLog = audit.Nop()
	}

	defaultAlt := cfg.DefaultAlt
	if defaultAlt == "" {
		defaultAlt = paths.PrimaryAlt
	}
	timeout := defaultLoadTimeout
	if cfg.LoadTimeout > 0 {
		timeout = time.Duration(cfg.LoadTimeout) * time.Second
	}

	registry := widget.Default()
	return &Session{
		id:         uuid.NewString(),
		client:     cl,
		translator: translator,
		audit:      auditLog,
		registry:   registry,
		defaultAlt: defaultAlt,
		timeout:    timeout,
		target:     parseTarget(cfg.Target),
		snapshot:   form.Empty(registry),
	}
}

func parseTarget(raw string) domain.Target {
	if raw == string(domain.TargetPreview) {
		return domain.TargetPreview
	}
	return domain.TargetEdit
}

// ID returns the session's correlation id.
func (s *Session) ID() string {
	return s.id
}

// Navigate points the session at a record and starts loading it. The
// previous load, if still in flight, is cancelled and its late responses are
// discarded. A fresh form snapshot is allocated per navigation so edits never
// carry across records. Navigate returns once the loads are started; use
// Wait or Subscribe to observe completion.
//
// A malformed path is rejected before any request is issued. An empty alt
// selects the session's default alt.
func (s *Session) Navigate(ctx context.Context, rawPath, alt string) error {
	canonical, err := paths.Canonicalize(rawPath)
	if err != nil {
		return err
	}
	if alt == "" {
		alt = s.defaultAlt
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.timeout)

	s.mu.Lock()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.generation++
	gen := s.generation
	s.cancelLoad = cancel
	done := make(chan struct{})
	s.loadDone = done
	s.path = canonical
	s.alt = alt
	s.state = StateLoading
	s.trailState = StateLoading
	s.lastErr = nil
	s.snapshot = form.Empty(s.registry)
	s.trail = trail.Trail{}
	s.lastSegments = nil
	s.mu.Unlock()

	qualified := paths.WithAlt(canonical, alt)
	log.Infof("🔄 Navigating to %s", qualified)
	s.emit(Event{Type: EventNavigated, Path: canonical, Alt: alt})

	go s.load(loadCtx, cancel, gen, canonical, alt, qualified, done)
	return nil
}

// Retry re-issues the failed load. It is only valid in the error state.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.RLock()
	state, path, alt := s.state, s.path, s.alt
	s.mu.RUnlock()

	if state != StateError {
		return fmt.Errorf("retry is only valid in the %s state, session is %s", StateError, state)
	}
	log.Infof("🔄 Retrying load of %s", paths.WithAlt(path, alt))
	return s.Navigate(ctx, path, alt)
}

// Wait blocks until the in-flight load has fully completed, including the
// breadcrumb side and all subscriber notifications, and returns the state it
// settled in. With no load in flight it returns immediately. A navigation
// arriving mid-wait restarts the wait against the new load.
func (s *Session) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.RLock()
		state := s.state
		done := s.loadDone
		s.mu.RUnlock()

		if done == nil {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-done:
		}

		s.mu.RLock()
		sameLoad := done == s.loadDone
		state = s.state
		s.mu.RUnlock()
		if sameLoad {
			return state, nil
		}
	}
}

// load runs the two independent fetches behind one navigation. The trail
// load degrades to the fallback crumb on failure; only the record load can
// put the session into the error state.
func (s *Session) load(ctx context.Context, cancel context.CancelFunc, gen uint64, path, alt, qualified string, done chan struct{}) {
	defer close(done)
	defer cancel()

	g := new(errgroup.Group)

	g.Go(func() error {
		info, err := s.client.GetPathInfo(ctx, qualified)
		if err != nil {
			log.Warnf("Failed to load path info for %s, degrading breadcrumbs: %v", qualified, err)
			s.applyTrail(gen, path, alt, nil)
			return nil
		}
		s.applyTrail(gen, path, alt, info.Segments)
		return nil
	})

	g.Go(func() error {
		rec, err := s.client.GetRawRecord(ctx, qualified)
		if err != nil {
			s.applyRecordFailure(gen, path, alt, err)
			return nil
		}
		s.applyRecord(gen, path, alt, rec)
		return nil
	})

	_ = g.Wait()
}

func (s *Session) applyTrail(gen uint64, path, alt string, segments []domain.PathSegment) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("Discarding stale path info for %s", path)
		return
	}
	builder := trail.Builder{Alt: alt, Target: s.target, Translate: s.translate}
	s.trail = builder.Build(segments)
	s.lastSegments = segments
	s.trailState = StateReady
	s.mu.Unlock()

	s.emit(Event{Type: EventTrailLoaded, Path: path, Alt: alt})
}

func (s *Session) applyRecord(gen uint64, path, alt string, rec *domain.RawRecord) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("Discarding stale record for %s", path)
		return
	}
	s.snapshot = form.NewSnapshot(rec, s.registry)
	s.state = StateReady
	s.mu.Unlock()

	s.audit.Record(context.Background(), audit.Event{
		SessionID: s.id, Type: audit.EventRecordLoad, Path: path, Alt: alt,
	})
	s.emit(Event{Type: EventRecordLoaded, Path: path, Alt: alt})
}

func (s *Session) applyRecordFailure(gen uint64, path, alt string, err error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("Discarding stale load failure for %s: %v", path, err)
		return
	}
	s.state = StateError
	s.lastErr = err
	s.mu.Unlock()

	log.Errorf("❌ Failed to load record %s: %v", paths.WithAlt(path, alt), err)
	s.emit(Event{Type: EventLoadFailed, Path: path, Alt: alt, Err: err})
}

// SetTarget switches generated links between the edit and preview views and
// rebuilds the current trail accordingly.
func (s *Session) SetTarget(target domain.Target) {
	s.mu.Lock()
	s.target = target
	if s.trailState == StateReady {
		builder := trail.Builder{Alt: s.alt, Target: target, Translate: s.translate}
		s.trail = builder.Build(s.lastSegments)
	}
	s.mu.Unlock()
}

// SetFieldValue records an edit against the current snapshot. A nil value
// clears the field to its widget's empty value.
func (s *Session) SetFieldValue(field domain.FieldDescriptor, value any) {
	s.mu.Lock()
	s.snapshot = s.snapshot.SetFieldValue(field, value)
	path, alt := s.path, s.alt
	s.mu.Unlock()

	s.emit(Event{Type: EventFieldEdited, Path: path, Alt: alt})
}

// Save submits the resolved field values to the server and folds them back
// into the snapshot. The snapshot becomes clean except for edits recorded
// while the save was in flight, which stay pending. Saving is only valid
// once the record is loaded; a navigation racing the save wins, in which
// case the stale fold is skipped.
func (s *Session) Save(ctx context.Context) error {
	s.mu.RLock()
	state, snap, path, alt, gen := s.state, s.snapshot, s.path, s.alt, s.generation
	s.mu.RUnlock()

	if state != StateReady {
		return fmt.Errorf("cannot save while session is %s", state)
	}

	values := snap.SubmitValues()
	qualified := paths.WithAlt(path, alt)
	if err := s.client.PutRawRecord(ctx, qualified, values); err != nil {
		return fmt.Errorf("save %s: %w", qualified, err)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.snapshot = s.snapshot.Commit(values)
	}
	s.mu.Unlock()

	log.Infof("✅ Saved %s (%d fields)", qualified, len(values))
	s.audit.Record(ctx, audit.Event{
		SessionID: s.id, Type: audit.EventRecordSave, Path: path, Alt: alt,
		Detail: fmt.Sprintf("%d fields", len(values)),
	})
	s.emit(Event{Type: EventSaved, Path: path, Alt: alt})
	return nil
}

// AddChild creates a new record under the current one. An empty id is
// derived from the data's title.
func (s *Session) AddChild(ctx context.Context, id string, data map[string]string) (*domain.NewRecordResult, error) {
	s.mu.RLock()
	path, alt := s.path, s.alt
	s.mu.RUnlock()

	if id == "" {
		id = paths.Slugify(data["title"])
	}
	if id == "" {
		return nil, fmt.Errorf("cannot derive an id for the new record")
	}

	qualified := paths.WithAlt(path, alt)
	result, err := s.client.AddNewRecord(ctx, qualified, id, data)
	if err != nil {
		return nil, fmt.Errorf("add child %q under %s: %w", id, qualified, err)
	}
	if result.ValidID && !result.Exists {
		s.audit.Record(ctx, audit.Event{
			SessionID: s.id, Type: audit.EventRecordCreate, Path: result.Path, Alt: alt,
		})
		s.emit(Event{Type: EventChildAdded, Path: result.Path, Alt: alt})
	}
	return result, nil
}

// Delete removes the current record and navigates to its parent.
func (s *Session) Delete(ctx context.Context, deleteMaster bool) error {
	s.mu.RLock()
	path, alt := s.path, s.alt
	s.mu.RUnlock()

	if path == "" || path == paths.Root {
		return fmt.Errorf("cannot delete the root record")
	}

	qualified := paths.WithAlt(path, alt)
	if err := s.client.DeleteRecord(ctx, qualified, deleteMaster); err != nil {
		return fmt.Errorf("delete %s: %w", qualified, err)
	}

	log.Infof("Deleted %s", qualified)
	s.audit.Record(ctx, audit.Event{
		SessionID: s.id, Type: audit.EventRecordDelete, Path: path, Alt: alt,
	})
	s.emit(Event{Type: EventDeleted, Path: path, Alt: alt})

	return s.Navigate(ctx, paths.Parent(path), alt)
}

// PreviewInfo resolves the published URL of the current record, used by the
// close affordance to leave the editor.
func (s *Session) PreviewInfo(ctx context.Context) (*domain.PreviewInfo, error) {
	s.mu.RLock()
	path, alt := s.path, s.alt
	s.mu.RUnlock()

	return s.client.GetPreviewInfo(ctx, paths.WithAlt(path, alt))
}

// Subscribe registers a change listener. Listeners run synchronously after
// each state change, outside the session lock.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// State returns the record view state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// TrailState returns the breadcrumb state, which cycles independently of the
// record view.
func (s *Session) TrailState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trailState
}

// Trail returns the current breadcrumb trail.
func (s *Session) Trail() trail.Trail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trail
}

// Form returns the current form snapshot.
func (s *Session) Form() form.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Location returns the canonical record path and alt the session points at.
func (s *Session) Location() (path, alt string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path, s.alt
}

// Target returns the current link target mode.
func (s *Session) Target() domain.Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

// LastError returns the error that put the session into the error state.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) translate(key string) string {
	if s.translator == nil {
		return key
	}
	return s.translator.Translate(key)
}

func (s *Session) emit(ev Event) {
	s.mu.RLock()
	subs := make([]func(Event), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
