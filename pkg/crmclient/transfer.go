package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-faster/errors"
)

// PreviewImport uploads a file for a dry run: parsing, header mapping and
// row transformation happen server side, nothing is written.
func (c *Client) PreviewImport(ctx context.Context, entity, filename string, file io.Reader, opts ImportOptions) (*ImportPreview, error) {
	body, contentType, err := encodeImportForm(filename, file, opts)
	if err != nil {
		return nil, err
	}
	var preview ImportPreview
	if err := c.send(ctx, http.MethodPost, recordsPath(entity)+"/import/preview", nil, contentType, body, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// RunImport uploads a file and writes the records it yields. Rows are
// committed in batches; the result reports how far the run got.
func (c *Client) RunImport(ctx context.Context, entity, filename string, file io.Reader, opts ImportOptions) (*BatchResult, error) {
	body, contentType, err := encodeImportForm(filename, file, opts)
	if err != nil {
		return nil, err
	}
	var result BatchResult
	if err := c.send(ctx, http.MethodPost, recordsPath(entity)+"/import", nil, contentType, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Export renders the refined view server side and returns the file. An
// empty format means the server default, csv.
func (c *Client) Export(ctx context.Context, entity, format string, opts ListOptions) (*ExportFile, error) {
	query := opts.query()
	if format != "" {
		query.Set("format", format)
	}
	var file *ExportFile
	err := c.get(ctx, recordsPath(entity)+"/export", query, func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Err: err}
		}
		file = &ExportFile{
			Name:        exportFilename(resp.Header.Get("Content-Disposition")),
			ContentType: resp.Header.Get("Content-Type"),
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// encodeImportForm renders the multipart body the import endpoints expect:
// the file plus the optional tuning fields.
func encodeImportForm(filename string, file io.Reader, opts ImportOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", errors.Wrap(err, "encode upload")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", errors.Wrap(err, "encode upload")
	}
	if opts.DefaultAssignee != "" {
		if err := form.WriteField("default_assignee", opts.DefaultAssignee); err != nil {
			return nil, "", errors.Wrap(err, "encode upload")
		}
	}
	if len(opts.Mapping) > 0 {
		raw, err := json.Marshal(opts.Mapping)
		if err != nil {
			return nil, "", errors.Wrap(err, "encode mapping")
		}
		if err := form.WriteField("mapping", string(raw)); err != nil {
			return nil, "", errors.Wrap(err, "encode upload")
		}
	}
	if opts.TenantID != "" {
		if err := form.WriteField("tenant_id", opts.TenantID); err != nil {
			return nil, "", errors.Wrap(err, "encode upload")
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", errors.Wrap(err, "encode upload")
	}
	return &buf, form.FormDataContentType(), nil
}

func exportFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		return params["filename"]
	}
	return ""
}
