package container

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"arbor/editor/internal/audit"
	"arbor/editor/internal/client"
	"arbor/editor/internal/config"
	"arbor/editor/internal/domain"
	"arbor/editor/internal/i18n"
	"arbor/editor/internal/preview"
	"arbor/editor/internal/session"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Client     client.AdminClient
	Translator i18n.Translator
	Audit      audit.Logger
	Preview    preview.Fetcher
	Session    *session.Session
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	adminClient := client.NewAdminClient(cfg.Server)
	translator := i18n.NewTranslator(cfg.Editor.UILanguage)

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	if cfg.Audit.Path != "" {
		log.Infof("✅ Audit log opened at %s", cfg.Audit.Path)
	}

	var fetcher preview.Fetcher
	if cfg.Preview.Enabled {
		fetcher = preview.NewFetcher(cfg.Preview, cfg.Server.PublicBaseURL)
	}

	sess := session.New(adminClient, cfg.Editor, translator, auditLog)

	return &Container{
		Config:     cfg,
		Client:     adminClient,
		Translator: translator,
		Audit:      auditLog,
		Preview:    fetcher,
		Session:    sess,
	}, nil
}

// recordView is the JSON document Run writes to stdout: the resolved trail
// and form for the configured start record.
type recordView struct {
	Path     string        `json:"path"`
	Alt      string        `json:"alt"`
	State    string        `json:"state"`
	Exists   bool          `json:"exists"`
	Label    string        `json:"label,omitempty"`
	Trail    []crumbView   `json:"trail"`
	Fields   []fieldView   `json:"fields"`
	CloseURL string        `json:"close_url"`
	Preview  *preview.Info `json:"preview,omitempty"`
}

type crumbView struct {
	Label   string `json:"label"`
	Path    string `json:"path"`
	Link    string `json:"link"`
	Missing bool   `json:"missing,omitempty"`
}

type fieldView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Run connects to the content server, resolves the configured start record
// and writes the composed view to stdout.
func (c *Container) Run(ctx context.Context) error {
	info, err := c.Client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("content server unreachable: %w", err)
	}
	log.Infof("✅ Connected to project %s (server version %s)", info.ProjectID, info.Version)

	if err := c.Session.Navigate(ctx, c.Config.Editor.StartPath, c.Config.Editor.DefaultAlt); err != nil {
		return fmt.Errorf("failed to navigate to start record: %w", err)
	}
	state, err := c.Session.Wait(ctx)
	if err != nil {
		return err
	}
	if state == session.StateError {
		return fmt.Errorf("failed to load start record: %w", c.Session.LastError())
	}

	view := c.composeView(ctx)
	log.Debugf("Resolved record view:\n%s", spew.Sdump(view))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func (c *Container) composeView(ctx context.Context) recordView {
	path, alt := c.Session.Location()
	form := c.Session.Form()
	tr := c.Session.Trail()

	view := recordView{
		Path:   path,
		Alt:    alt,
		State:  c.Session.State().String(),
		Exists: form.Info.Exists,
		Label:  form.Info.Label,
	}

	for _, crumb := range tr.Crumbs {
		view.Trail = append(view.Trail, crumbView{
			Label:   crumb.Label,
			Path:    crumb.RecordPath,
			Link:    crumb.Link.Path,
			Missing: crumb.Missing,
		})
	}

	for _, field := range form.VisibleFields() {
		view.Fields = append(view.Fields, fieldView{
			Name:  field.Name,
			Label: field.Label,
			Type:  field.Type,
			Value: form.DisplayValue(field),
		})
	}

	previewInfo := c.resolvePreviewInfo(ctx, form.Info.Exists)
	view.CloseURL = tr.CloseURL(previewInfo)
	if c.Preview != nil && previewInfo != nil && previewInfo.URL != "" {
		view.Preview = c.fetchPreview(ctx, previewInfo.URL)
	}
	return view
}

// resolvePreviewInfo asks the server for the record's published URL, which
// feeds both the close affordance and the preview fetch. Advisory: a failure
// is logged and the view falls back to the site root.
func (c *Container) resolvePreviewInfo(ctx context.Context, exists bool) *domain.PreviewInfo {
	if !exists {
		return nil
	}
	info, err := c.Session.PreviewInfo(ctx)
	if err != nil {
		log.Warnf("Failed to resolve preview info: %v", err)
		return nil
	}
	if !info.Exists {
		return nil
	}
	return info
}

// fetchPreview pulls the published page's metadata. Preview is advisory: any
// failure is logged and the view ships without it.
func (c *Container) fetchPreview(ctx context.Context, url string) *preview.Info {
	meta, err := c.Preview.Fetch(ctx, url)
	if err != nil {
		log.Warnf("Failed to fetch preview page %s: %v", url, err)
		return nil
	}
	return meta
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if err := c.Audit.Close(); err != nil {
		log.Warnf("Failed to close audit log: %v", err)
	}

	log.Info("Container shut down successfully")
	return nil
}
