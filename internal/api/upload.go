package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"doc-manager-app/internal/models"
	apperrors "doc-manager-app/pkg/errors"
)

// UploadProgress represents the progress of a file upload
type UploadProgress struct {
	BytesUploaded int64
	TotalBytes    int64
	Percentage    float64
}

// ProgressFunc receives transport progress. It is called from the goroutine
// that streams the request body.
type ProgressFunc func(UploadProgress)

// UploadRequest is one file plus the metadata sent with it
type UploadRequest struct {
	File     models.LocalFile
	Metadata models.UploadMetadata
}

// Upload streams the file as multipart/form-data to POST /files
func (c *Client) Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (*models.FileRecord, error) {
	const op = "upload file"

	if req.File.Open == nil {
		return nil, apperrors.NewValidationError(apperrors.ErrInvalidInput, fmt.Sprintf("%q has no readable content", req.File.Name))
	}
	src, err := req.File.Open()
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrFileNotFound, fmt.Sprintf("open %q", req.File.Name), err)
	}
	defer src.Close()

	tags, err := json.Marshal(nonNilTags(req.Metadata.Tags))
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInternalError, "encode tags", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, string(tags), &progressReader{
			reader:     src,
			totalBytes: req.File.Size,
			onProgress: progress,
		}))
	}()

	resp, err := c.do(ctx, op, http.MethodPost, "/files", pr, mw.FormDataContentType())
	// unblock the writer goroutine if the request never consumed the body
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rec models.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrUploadFailed, op+": malformed response", err)
	}

	c.logger.InfoWithFields("File uploaded", map[string]interface{}{
		"file_id":   rec.ID,
		"file_name": req.File.Name,
		"size":      req.File.Size,
	})
	return &rec, nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, tags string, body io.Reader) error {
	meta := req.Metadata
	fields := [][2]string{
		{"isPublic", strconv.FormatBool(meta.IsPublic)},
		{"tags", tags},
	}
	if meta.FolderID != "" {
		fields = append(fields, [2]string{"folderId", meta.FolderID})
	}
	if meta.Description != "" {
		fields = append(fields, [2]string{"description", meta.Description})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.File.Name)))
	contentType := req.File.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// progressReader wraps an io.Reader to provide upload progress updates
type progressReader struct {
	reader     io.Reader
	totalBytes int64
	bytesRead  int64
	onProgress ProgressFunc
}

// Read implements io.Reader and reports progress after every chunk
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 && pr.onProgress != nil {
		pr.bytesRead += int64(n)
		percentage := 100.0
		if pr.totalBytes > 0 {
			percentage = float64(pr.bytesRead) / float64(pr.totalBytes) * 100.0
		}
		if percentage > 100 {
			percentage = 100
		}
		pr.onProgress(UploadProgress{
			BytesUploaded: pr.bytesRead,
			TotalBytes:    pr.totalBytes,
			Percentage:    percentage,
		})
	}
	return n, err
}
