// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

package streamhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/platformbuilds/iotrace/internal/records"
)

// Client reads streams served by a Handler.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a client for the agent at base, e.g. http://localhost:19090.
// hc may be nil.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{base: strings.TrimRight(base, "/"), hc: hc}
}

// FollowOptions tune a Follow call.
type FollowOptions struct {
	MaxRecords int
	Limit      int
	Once       bool
}

// List returns every stream the agent exposes.
func (c *Client) List(ctx context.Context) ([]StreamInfo, error) {
	var out struct {
		Streams []StreamInfo `json:"streams"`
	}
	if err := c.getJSON(ctx, "/streams", &out); err != nil {
		return nil, err
	}
	return out.Streams, nil
}

// Stats returns the stats of one stream.
func (c *Client) Stats(ctx context.Context, name string) (StreamInfo, error) {
	var out StreamInfo
	err := c.getJSON(ctx, "/streams/"+url.PathEscape(name)+"/stats", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Follow streams records of the named log to fn until ctx ends, the
// server closes the stream or fn returns an error. Records are decoded
// using the schema announced in the response headers.
func (c *Client) Follow(ctx context.Context, name string, opts FollowOptions, fn func(records.Record) error) error {
	q := url.Values{}
	if opts.MaxRecords > 0 {
		q.Set("max_records", strconv.Itoa(opts.MaxRecords))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Once {
		q.Set("follow", "false")
	}
	u := c.base + "/streams/" + url.PathEscape(name)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	schema, err := records.ParseSchema(resp.Header.Get(HeaderSchema))
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(resp.Header.Get(HeaderEntrySize))
	if err != nil || size != schema.EntrySize() {
		return fmt.Errorf("stream %s: entry size %q does not match schema %s", name, resp.Header.Get(HeaderEntrySize), schema)
	}

	buf := make([]byte, size)
	for {
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream %s: %w", name, err)
		}
		r, err := schema.Decode(buf)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
}
