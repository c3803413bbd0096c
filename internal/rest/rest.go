// Package rest is a small HTTP REST client helper, grounded on the
// teacher's lib/rest package (observed through its call sites in
// backend/webdav/webdav.go: rest.NewClient, rest.Opts, rest.Client.Call,
// rest.ReadBody, rest.URLJoin, rest.URLPathEscape).
package rest

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Opts describes one HTTP call.
type Opts struct {
	Method       string
	Path         string
	Body         io.Reader
	ExtraHeaders map[string]string
	NoResponse   bool
}

// Client is a thin wrapper around *http.Client fixed to one root URL and
// basic-auth credentials.
type Client struct {
	httpClient *http.Client
	root       *url.URL
	user, pass string
	headers    map[string]string
}

// NewClient builds a Client around an *http.Client (the teacher threads
// fshttp.NewClient(fs.Config) through here; we accept any *http.Client so
// callers can supply one with their own TLS/timeout configuration).
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{httpClient: hc, headers: map[string]string{}}
}

func (c *Client) SetRoot(root string) *Client {
	u, err := url.Parse(root)
	if err == nil {
		c.root = u
	}
	return c
}

func (c *Client) SetUserPass(user, pass string) *Client {
	c.user, c.pass = user, pass
	return c
}

func (c *Client) SetHeader(k, v string) *Client {
	c.headers[k] = v
	return c
}

// Call issues opts against the client's root and returns the raw response.
// The caller is responsible for closing resp.Body.
func (c *Client) Call(ctx context.Context, opts *Opts) (*http.Response, error) {
	u, err := URLJoin(c.root.String(), opts.Path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, u, opts.Body)
	if err != nil {
		return nil, err
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.ExtraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		body, _ := ReadBody(resp)
		_ = resp.Body.Close()
		return resp, fmt.Errorf("rest: %s %s: %s: %s", opts.Method, u, resp.Status, string(body))
	}
	return resp, nil
}

// CallXML issues opts and unmarshals the XML response body into result.
func (c *Client) CallXML(ctx context.Context, opts *Opts, result any) error {
	resp, err := c.Call(ctx, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return xml.NewDecoder(resp.Body).Decode(result)
}

// ReadBody reads and closes an HTTP response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// URLJoin joins a base URL and a relative reference the way net/url does,
// but tolerates a base with no trailing slash (the common webdav-root
// shape).
func URLJoin(base, rel string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(rel)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(r).String(), nil
}

// URLPathEscape escapes each path segment of p without escaping the
// separating slashes.
func URLPathEscape(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return path.Join(segs...)
}
