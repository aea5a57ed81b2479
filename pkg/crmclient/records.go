package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ListRecords fetches one page of the entity's records under the given
// view refinement.
func (c *Client) ListRecords(ctx context.Context, entity string, opts ListOptions) (*List, error) {
	var list *List
	err := c.get(ctx, recordsPath(entity), opts.query(), func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Err: err}
		}
		normalized, err := normalizeList(data)
		if err != nil {
			return err
		}
		list = normalized
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// normalizeList folds the two list wire shapes into one. A bare array
// becomes a single full page: Total is its length, Counts stays nil.
func normalizeList(data []byte) (*List, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Record
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &DecodeError{Err: err}
		}
		return &List{Items: items, Total: len(items), Page: 1}, nil
	}
	var list List
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if list.Items == nil {
		list.Items = []Record{}
	}
	if list.Page == 0 {
		list.Page = 1
	}
	return &list, nil
}

// GetRecord fetches a single record by id.
func (c *Client) GetRecord(ctx context.Context, entity, id string) (*Record, error) {
	var rec Record
	err := c.get(ctx, recordPath(entity, id), nil, func(resp *http.Response) error {
		return decodeJSON(resp.Body, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordStats fetches the facet breakdown for the refined view.
func (c *Client) RecordStats(ctx context.Context, entity string, opts ListOptions) (*Stats, error) {
	var stats Stats
	err := c.get(ctx, recordsPath(entity)+":stats", opts.query(), func(resp *http.Response) error {
		return decodeJSON(resp.Body, &stats)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreateRecord writes a new record and returns it as stored.
func (c *Client) CreateRecord(ctx context.Context, entity string, in RecordInput) (*Record, error) {
	body, err := marshalBody(in)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := c.send(ctx, http.MethodPost, recordsPath(entity), nil, contentTypeJSON, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PatchRecord applies a partial update and returns the record as stored
// afterwards.
func (c *Client) PatchRecord(ctx context.Context, entity, id string, patch RecordPatch) (*Record, error) {
	body, err := marshalBody(patch)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := c.send(ctx, http.MethodPatch, recordPath(entity, id), nil, contentTypeJSON, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord removes a record. Deleting a record that is already gone is
// a success, so repeated deletes converge instead of failing.
func (c *Client) DeleteRecord(ctx context.Context, entity, id string) error {
	err := c.send(ctx, http.MethodDelete, recordPath(entity, id), nil, "", nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Bulk runs one operation across many records in a single call. With
// SelectAll set, opts refine which records the server expands the selection
// to. The result reports partial completion; check Halted to tell a
// throttled run from a finished one.
func (c *Client) Bulk(ctx context.Context, entity string, req BulkRequest, opts ListOptions) (*BatchResult, error) {
	body, err := marshalBody(req)
	if err != nil {
		return nil, err
	}
	var result BatchResult
	if err := c.send(ctx, http.MethodPost, recordsPath(entity)+"/bulk", opts.query(), contentTypeJSON, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Assist asks the server for an AI note on one record. Deployments without
// an AI provider configured answer 404.
func (c *Client) Assist(ctx context.Context, entity, id string) (*AssistResult, error) {
	var result AssistResult
	if err := c.send(ctx, http.MethodPost, recordPath(entity, id)+":assist", nil, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
