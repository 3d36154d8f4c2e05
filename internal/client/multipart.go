package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

func (c *Client) sendForm(ctx context.Context, method, path string, query url.Values, token string, form RequestForm, extra map[string]string, out any) error {
	if token == "" {
		return ErrAuth
	}
	body, contentType, err := encodeForm(form, extra)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, query, token, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, out)
}

// encodeForm writes the request fields in the layout the backend expects:
// scalar fields, approvers as a JSON array and one "files" part per upload.
func encodeForm(form RequestForm, extra map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"initiator_id", strconv.Itoa(form.InitiatorID)},
		{"supervisor_id", strconv.Itoa(form.SupervisorID)},
		{"subject", strings.TrimSpace(form.Subject)},
		{"description", strings.TrimSpace(form.Description)},
		{"area", form.Area},
		{"project", form.Project},
		{"tower", form.Tower},
		{"department", form.Department},
		{"references", form.References},
	}
	if form.Priority != "" {
		fields = append(fields, struct{ name, value string }{"priority", string(form.Priority)})
	}
	if form.Approvers != nil {
		approvers, err := json.Marshal(form.Approvers)
		if err != nil {
			return nil, "", fmt.Errorf("encode approvers: %w", err)
		}
		fields = append(fields, struct{ name, value string }{"approvers", string(approvers)})
	}
	for name, value := range extra {
		fields = append(fields, struct{ name, value string }{name, value})
	}

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	for _, up := range form.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(up.Name)))
		ct := up.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", up.Name, err)
		}
		if _, err := io.Copy(part, up.Content); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", up.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
