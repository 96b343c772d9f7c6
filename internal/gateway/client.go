package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/logging"
)

// Client is the request/response boundary to the remote catalog service.
// It owns request construction, cancellation, and error normalization; it
// never interprets the business meaning of payload fields. Every call is a
// single logical attempt: retries are an explicit caller-level re-trigger,
// never hidden here, because a silent retry against a mutating filesystem
// index could re-issue a side effect such as a rename.
type Client struct {
	base   *url.URL
	http   *http.Client
	stream *http.Client
	ua     string
	log    *logging.Logger
}

func New(cfg *config.Config, log *logging.Logger) (*Client, error) {
	base, err := url.Parse(cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("server.base_url: %w", err)
	}
	return &Client{
		base:   base,
		http:   newHTTPClient(cfg),
		stream: newStreamClient(cfg),
		ua:     userAgent(cfg),
		log:    log,
	}, nil
}

func (c *Client) endpoint(path string, values url.Values) string {
	u := *c.base
	u.Path = path
	if values != nil {
		u.RawQuery = values.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes one attempt and decodes a JSON payload into out (skipped when
// out is nil). Non-2xx responses normalize to *StatusError with the service's
// detail message when present.
func (c *Client) do(ctx context.Context, method, path string, values url.Values, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	rawURL := c.endpoint(path, values)
	req, err := c.newRequest(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugf("%s %s: transport: %v", method, logging.SanitizeURL(rawURL), err)
		return fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.log.Debugf("%s %s: %v", method, logging.SanitizeURL(rawURL), se)
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readDetail extracts the service's {"detail": "..."} error body when present.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return ""
}

// ListFolders executes a list query from its canonical descriptor.
func (c *Client) ListFolders(ctx context.Context, d catalog.Descriptor) (catalog.Page, error) {
	var page catalog.Page
	if err := c.do(ctx, d.Method, d.Path, d.Values, nil, &page); err != nil {
		return catalog.Page{}, err
	}
	return page, nil
}

// Detail fetches the full expansion of one record.
func (c *Client) Detail(ctx context.Context, path string) (*catalog.FolderDetail, error) {
	v := url.Values{"path": []string{path}}
	var d catalog.FolderDetail
	if err := c.do(ctx, http.MethodGet, "/folders/detail", v, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SuggestTags looks up tags matching a substring, capped at limit.
func (c *Client) SuggestTags(ctx context.Context, substr string, limit int) ([]string, int, error) {
	v := url.Values{"q": []string{substr}, "limit": []string{strconv.Itoa(limit)}}
	var out struct {
		Tags  []string `json:"tags"`
		Total int      `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags/suggest", v, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Tags, out.Total, nil
}

// TagCounts returns the tags-overview listing.
func (c *Client) TagCounts(ctx context.Context) ([]catalog.TagCount, int, error) {
	var out struct {
		Tags  []catalog.TagCount `json:"tags"`
		Total int                `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags/counts", nil, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Tags, out.Total, nil
}

type mutateBody struct {
	Path    string `json:"path"`
	Rating  *int   `json:"rating,omitempty"`
	Printed *bool  `json:"printed,omitempty"`
	ToPrint *bool  `json:"to_print,omitempty"`
	Tag     string `json:"tag,omitempty"`
	File    string `json:"file,omitempty"`
	Name    string `json:"name,omitempty"`
}

func (c *Client) mutate(ctx context.Context, path string, body mutateBody) (*catalog.Patch, error) {
	var patch catalog.Patch
	if err := c.do(ctx, http.MethodPost, path, nil, body, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// SetRating sets or clears (nil) the record's rating. The body carries an
// explicit null for "clear", so it bypasses mutateBody's omitempty.
func (c *Client) SetRating(ctx context.Context, path string, rating *int) (*catalog.Patch, error) {
	raw := map[string]any{"path": path, "rating": rating}
	var patch catalog.Patch
	if err := c.do(ctx, http.MethodPost, "/folders/rating", nil, raw, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func (c *Client) SetPrinted(ctx context.Context, path string, printed bool) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/printed", mutateBody{Path: path, Printed: &printed})
}

func (c *Client) SetToPrint(ctx context.Context, path string, toPrint bool) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/to-print", mutateBody{Path: path, ToPrint: &toPrint})
}

func (c *Client) AddTag(ctx context.Context, path, tag string) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/tags/add", mutateBody{Path: path, Tag: tag})
}

func (c *Client) RemoveTag(ctx context.Context, path, tag string) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/tags/remove", mutateBody{Path: path, Tag: tag})
}

// SetPreview selects file as the record's preview image; the service answers
// with the recomputed thumbnail reference.
func (c *Client) SetPreview(ctx context.Context, path, file string) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/preview", mutateBody{Path: path, File: file})
}

// Rename renames the project directory. A name collision surfaces as a 409,
// distinguishable via IsConflict.
func (c *Client) Rename(ctx context.Context, path, newName string) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/rename", mutateBody{Path: path, Name: newName})
}

// FixTags normalizes one project's tag metadata file.
func (c *Client) FixTags(ctx context.Context, path string) (*catalog.Patch, error) {
	return c.mutate(ctx, "/folders/fix-tags", mutateBody{Path: path})
}

// FixTagsAll normalizes tag metadata across the whole collection and returns
// how many projects were touched.
func (c *Client) FixTagsAll(ctx context.Context) (int, error) {
	var out struct {
		Fixed int `json:"fixed"`
	}
	if err := c.do(ctx, http.MethodPost, "/folders/fix-tags/all", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Fixed, nil
}

// Upload sends files into a project directory as a multipart request.
func (c *Client) Upload(ctx context.Context, path string, files map[string][]byte) (*catalog.Patch, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("path", path); err != nil {
		return nil, err
	}
	for name, data := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	rawURL := c.endpoint("/folders/upload", nil)
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	var patch catalog.Patch
	if err := json.NewDecoder(resp.Body).Decode(&patch); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &patch, nil
}

// DeleteFile removes a single file inside a project and returns the
// recomputed counts/thumbnail patch.
func (c *Client) DeleteFile(ctx context.Context, path, file string) (*catalog.Patch, error) {
	v := url.Values{"path": []string{path}, "file": []string{file}}
	var patch catalog.Patch
	if err := c.do(ctx, http.MethodDelete, "/folders/file", v, nil, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// DeleteProject removes the whole project. Destructive; callers confirm first.
func (c *Client) DeleteProject(ctx context.Context, path string) error {
	v := url.Values{"path": []string{path}}
	return c.do(ctx, http.MethodDelete, "/folders", v, nil, nil)
}

// Reindex triggers a folder reindex, mode "full" or "incremental".
func (c *Client) Reindex(ctx context.Context, mode string) (*catalog.ReindexSummary, error) {
	v := url.Values{"mode": []string{mode}}
	var s catalog.ReindexSummary
	if err := c.do(ctx, http.MethodPost, "/scan", v, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReindexTags rebuilds the tag catalog, mode "full" or "incremental".
func (c *Client) ReindexTags(ctx context.Context, mode string) (*catalog.ReindexSummary, error) {
	v := url.Values{"mode": []string{mode}}
	var s catalog.ReindexSummary
	if err := c.do(ctx, http.MethodPost, "/tags/reindex", v, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// BackfillDates fills missing created/modified timestamps from the filesystem.
func (c *Client) BackfillDates(ctx context.Context) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/maintenance/backfill-dates", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// ResetCollection drops the service's index. Destructive; callers confirm.
func (c *Client) ResetCollection(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/maintenance/reset", nil, nil, nil)
}

// FindDuplicates is the single-shot duplicate query, also used as the
// fallback when the stream fails or comes back empty.
func (c *Client) FindDuplicates(ctx context.Context, minTags, limit int, exclude []string) ([]catalog.DuplicatePair, int, error) {
	v := url.Values{
		"min_tags": []string{strconv.Itoa(minTags)},
		"limit":    []string{strconv.Itoa(limit)},
	}
	for _, t := range exclude {
		v.Add("exclude", t)
	}
	var out struct {
		Pairs []catalog.DuplicatePair `json:"pairs"`
		Total int                     `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/duplicates", v, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Pairs, out.Total, nil
}

// DiskUsage returns the collection's used/total byte counts.
func (c *Client) DiskUsage(ctx context.Context) (catalog.DiskUsage, error) {
	var du catalog.DiskUsage
	if err := c.do(ctx, http.MethodGet, "/disk-usage", nil, nil, &du); err != nil {
		return catalog.DiskUsage{}, err
	}
	return du, nil
}

// FetchFile retrieves raw file bytes by path reference (thumbnails, media).
func (c *Client) FetchFile(ctx context.Context, path string) ([]byte, error) {
	v := url.Values{"path": []string{path}}
	rawURL := c.endpoint("/files", v)
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return io.ReadAll(resp.Body)
}

// Health returns the service's status token.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
