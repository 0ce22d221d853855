// Package httptransport implements the engine's Transport over plain HTTP.
//
// One client is bound to one object URL. Chunked uploads use the
// comp=chunk/comp=commit sub-resource convention: pieces go up as
// independent PUTs keyed by id, a commit POST lists the ids in order, and
// uncommitted pieces can be discarded with a DELETE. Downloads use standard
// Range requests.
//
// The client performs no retries of its own: it reports each request's
// outcome with a status-classified error and lets the caller's retry policy
// decide.
package httptransport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xferrors "github.com/blobkit/transfer/errors"
	"github.com/blobkit/transfer/xfertypes"
)

// Header carrying the service-reported content digest, hex-encoded.
const digestHeader = "X-Content-Digest"

// Prefix for user-defined metadata headers.
const metadataPrefix = "X-Meta-"

// Options configures the HTTP transport.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// RequestTimeout bounds each individual request, not the whole
	// transfer. Default: no per-request timeout.
	RequestTimeout time.Duration

	// Signer signs each outgoing request, nil for unsigned requests.
	Signer Signer

	// HTTPClient overrides the default client, e.g. for custom TLS
	// configuration. When set, MaxIdleConnsPerHost is ignored.
	HTTPClient *http.Client
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
	}
}

// Client is an HTTP transport bound to a single object URL. It implements
// the engine's Transport, Stater, and Aborter interfaces and is safe for
// concurrent use.
type Client struct {
	objectURL *url.URL
	client    *http.Client
	opts      Options
}

// New creates a transport for the object at objectURL.
func New(objectURL string, opts Options) (*Client, error) {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse object URL: %v", xferrors.ErrInvalidInput, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: object URL must be http or https, got %q", xferrors.ErrInvalidInput, parsed.Scheme)
	}

	client := opts.HTTPClient
	if client == nil {
		maxIdle := opts.MaxIdleConnsPerHost
		if maxIdle <= 0 {
			maxIdle = DefaultOptions().MaxIdleConnsPerHost
		}
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: maxIdle,
				MaxIdleConns:        maxIdle * 2,
				IdleConnTimeout:     90 * time.Second,
				DisableCompression:  true, // We want raw bytes for range requests
			},
		}
	}

	return &Client{objectURL: parsed, client: client, opts: opts}, nil
}

// PutObject uploads the whole object in a single request.
func (c *Client) PutObject(ctx context.Context, body io.Reader, size int64, info xfertypes.ObjectInfo) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	applyObjectInfo(req, info)

	return c.do(req, "putObject")
}

// PutChunk uploads one uncommitted piece keyed by id.
func (c *Client) PutChunk(ctx context.Context, id string, rng xfertypes.ByteRange, body io.Reader) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.subResource("chunk", id), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = rng.Length

	return c.do(req, "putChunk")
}

// Commit makes previously uploaded pieces the object's content. The piece
// ids travel as a newline-separated manifest ordered by byte offset.
func (c *Client) Commit(ctx context.Context, ids []string, info xfertypes.ObjectInfo) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	manifest := strings.Join(ids, "\n")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.subResource("commit", ""), strings.NewReader(manifest))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	applyObjectInfo(req, info)

	return c.do(req, "commit")
}

// Abort discards uncommitted pieces.
func (c *Client) Abort(ctx context.Context, ids []string) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	manifest := strings.Join(ids, "\n")
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.subResource("chunks", ""), strings.NewReader(manifest))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	return c.do(req, "abort")
}

// GetRange reads one byte range of the object.
func (c *Client) GetRange(ctx context.Context, rng xfertypes.ByteRange) (io.ReadCloser, error) {
	// The body outlives this call, so the per-request timeout cannot
	// bound it; rely on the caller's context instead.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.End()-1))

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("getRange: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if err := verifyContentRange(resp, rng); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp.Body, nil
	case http.StatusOK:
		// Some servers answer 200 with the range anyway; the Content-Range
		// header tells them apart from servers ignoring the Range header.
		if resp.Header.Get("Content-Range") != "" {
			if err := verifyContentRange(resp, rng); err != nil {
				resp.Body.Close()
				return nil, err
			}
			return resp.Body, nil
		}
		if rng.Offset == 0 && resp.ContentLength == rng.Length {
			return resp.Body, nil
		}
		resp.Body.Close()
		return nil, fmt.Errorf("%w: server ignored range request", xferrors.ErrInvalidInput)
	default:
		resp.Body.Close()
		return nil, xferrors.NewRequestError("getRange", resp.StatusCode)
	}
}

// verifyContentRange checks that the Content-Range header, when present,
// describes exactly the requested range. Handing back a misaligned body
// would corrupt the destination at the requested offset.
func verifyContentRange(resp *http.Response, rng xfertypes.ByteRange) error {
	header := resp.Header.Get("Content-Range")
	if header == "" {
		return nil
	}
	start, end, _, err := ParseContentRange(header)
	if err != nil {
		return fmt.Errorf("%w: %v", xferrors.ErrInvalidInput, err)
	}
	if start != rng.Offset || end != rng.End()-1 {
		return fmt.Errorf("%w: server returned bytes %d-%d, requested %d-%d",
			xferrors.ErrInvalidInput, start, end, rng.Offset, rng.End()-1)
	}
	return nil
}

// Stat describes the object via a HEAD request.
func (c *Client) Stat(ctx context.Context) (*xfertypes.ObjectStat, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, xferrors.NewRequestError("stat", resp.StatusCode)
	}

	stat := &xfertypes.ObjectStat{
		Size:        resp.ContentLength,
		ETag:        cleanETag(resp.Header.Get("ETag")),
		ContentType: resp.Header.Get("Content-Type"),
		Digest:      resp.Header.Get(digestHeader),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, parseErr := http.ParseTime(lm); parseErr == nil {
			stat.LastModified = t
		}
	}
	return stat, nil
}

// do sends a request whose response body is not needed, mapping non-2xx
// statuses to classified request errors.
func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.send(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xferrors.NewRequestError(op, resp.StatusCode)
	}
	return nil
}

// send signs and executes one request.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.opts.Signer != nil {
		if err := c.opts.Signer.Sign(req); err != nil {
			return nil, fmt.Errorf("%w: sign request: %v", xferrors.ErrAuth, err)
		}
	}
	return c.client.Do(req)
}

// requestContext applies the per-request timeout, if configured.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.RequestTimeout)
	}
	return ctx, func() {}
}

// subResource builds the object URL with a comp query and an optional id.
func (c *Client) subResource(comp, id string) string {
	u := *c.objectURL
	q := u.Query()
	q.Set("comp", comp)
	if id != "" {
		q.Set("id", id)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// applyObjectInfo attaches content type and metadata headers to an upload
// or commit request.
func applyObjectInfo(req *http.Request, info xfertypes.ObjectInfo) {
	if info.ContentType != "" {
		req.Header.Set("Content-Type", info.ContentType)
	}
	for key, value := range info.Metadata {
		req.Header.Set(metadataPrefix+key, value)
	}
}

// cleanETag removes quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}

// ParseContentRange splits a "bytes start-end/total" header into its
// components. A total of -1 means the server reported it as "*".
func ParseContentRange(header string) (start, end, total int64, err error) {
	rest, found := strings.CutPrefix(header, "bytes ")
	if !found {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	rangePart, totalPart, found := strings.Cut(rest, "/")
	if !found {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}
	startPart, endPart, found := strings.Cut(rangePart, "-")
	if !found {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	if start, err = strconv.ParseInt(startPart, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	if end, err = strconv.ParseInt(endPart, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	if totalPart == "*" {
		return start, end, -1, nil
	}
	if total, err = strconv.ParseInt(totalPart, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	return start, end, total, nil
}
