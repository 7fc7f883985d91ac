// Package client implements the admin API client the editor loads and saves
// records through. Every call is a fresh fetch: the client holds no cache, so
// callers decide what to do with superseded responses.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"arbor/editor/internal/config"
	"arbor/editor/internal/domain"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type AdminClient interface {
	GetPathInfo(ctx context.Context, path string) (*domain.PathInfo, error)
	GetRawRecord(ctx context.Context, path string) (*domain.RawRecord, error)
	PutRawRecord(ctx context.Context, path string, data map[string]string) error
	AddNewRecord(ctx context.Context, parent, id string, data map[string]string) (*domain.NewRecordResult, error)
	DeleteRecord(ctx context.Context, path string, deleteMaster bool) error
	GetPreviewInfo(ctx context.Context, path string) (*domain.PreviewInfo, error)
	Ping(ctx context.Context) (*domain.ServerInfo, error)
}

type adminClient struct {
	rl         ratelimit.Limiter
	config     config.ServerConfig
	baseURL    string
	httpClient *resty.Client
}

func NewAdminClient(cfg config.ServerConfig) AdminClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json")

	rate := cfg.MaxRequestsPerSecond
	if rate <= 0 {
		rate = 20
	}

	return &adminClient{
		rl:         ratelimit.New(rate),
		config:     cfg,
		baseURL:    cfg.BaseURL,
		httpClient: client,
	}
}

func (c *adminClient) GetPathInfo(ctx context.Context, path string) (*domain.PathInfo, error) {
	var info domain.PathInfo
	if err := c.get(ctx, "load path info", "/pathinfo", path, &info); err != nil {
		return nil, err
	}

	log.Debugf("Loaded path info for %s with %d segments", path, len(info.Segments))
	return &info, nil
}

func (c *adminClient) GetRawRecord(ctx context.Context, path string) (*domain.RawRecord, error) {
	var rec domain.RawRecord
	if err := c.get(ctx, "load raw record", "/rawrecord", path, &rec); err != nil {
		return nil, err
	}

	log.Debugf("Loaded raw record for %s with %d fields", path, len(rec.DataModel.Fields))
	return &rec, nil
}

func (c *adminClient) PutRawRecord(ctx context.Context, path string, data map[string]string) error {
	payload := map[string]any{
		"path": path,
		"data": data,
	}
	if err := c.send(ctx, "save raw record", http.MethodPut, "/rawrecord", path, payload, nil); err != nil {
		return err
	}

	log.Debugf("Saved raw record for %s with %d fields", path, len(data))
	return nil
}

func (c *adminClient) AddNewRecord(ctx context.Context, parent, id string, data map[string]string) (*domain.NewRecordResult, error) {
	payload := map[string]any{
		"path": parent,
		"id":   id,
		"data": data,
	}
	var result domain.NewRecordResult
	if err := c.send(ctx, "add new record", http.MethodPost, "/newrecord", parent, payload, &result); err != nil {
		return nil, err
	}

	log.Debugf("Created record %s under %s (valid_id=%v, exists=%v)", id, parent, result.ValidID, result.Exists)
	return &result, nil
}

func (c *adminClient) DeleteRecord(ctx context.Context, path string, deleteMaster bool) error {
	payload := map[string]any{
		"path":          path,
		"delete_master": deleteMaster,
	}
	if err := c.send(ctx, "delete record", http.MethodPost, "/deleterecord", path, payload, nil); err != nil {
		return err
	}

	log.Debugf("Deleted record %s (delete_master=%v)", path, deleteMaster)
	return nil
}

func (c *adminClient) GetPreviewInfo(ctx context.Context, path string) (*domain.PreviewInfo, error) {
	var info domain.PreviewInfo
	if err := c.get(ctx, "load preview info", "/previewinfo", path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *adminClient) Ping(ctx context.Context) (*domain.ServerInfo, error) {
	c.rl.Take()

	endpoint := c.baseURL + "/ping"
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&domain.ServerInfo{}).
		Get(endpoint)
	if err != nil {
		return nil, &RequestError{Op: "ping", URL: endpoint, Err: err}
	}
	if resp.IsError() {
		return nil, &RequestError{Op: "ping", URL: endpoint, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())}
	}

	info := resp.Result().(*domain.ServerInfo)
	log.Debugf("Server answered ping: project %s version %s", info.ProjectID, info.Version)
	return info, nil
}

// get issues a path-keyed GET and decodes the JSON body into out.
func (c *adminClient) get(ctx context.Context, op, endpoint, path string, out any) error {
	c.rl.Take()

	requestURL := fmt.Sprintf("%s%s?path=%s", c.baseURL, endpoint, url.QueryEscape(path))
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetResult(out).
		Get(c.baseURL + endpoint)
	if err != nil {
		return &RequestError{Op: op, URL: requestURL, Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &NotFoundError{Path: path}
	}
	if resp.IsError() {
		return &RequestError{Op: op, URL: requestURL, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())}
	}
	return nil
}

// send issues a JSON-bodied mutation and decodes the response into out when
// out is non-nil.
func (c *adminClient) send(ctx context.Context, op, method, endpoint, path string, payload, out any) error {
	c.rl.Take()

	requestURL := c.baseURL + endpoint
	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, requestURL)
	if err != nil {
		return &RequestError{Op: op, URL: requestURL, Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &NotFoundError{Path: path}
	}
	if resp.IsError() {
		return &RequestError{Op: op, URL: requestURL, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())}
	}
	return nil
}
