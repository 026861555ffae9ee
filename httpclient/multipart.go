package httpclient

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/HuyaneMatsu/scarletio/httpproto"
)

// MultipartBuilder assembles a multipart/form-data request body. It is a
// thin wrapper over the stdlib's mime/multipart — SPEC_FULL.md's Non-goal
// "no multipart MIME reimplementation" carried through explicitly.
type MultipartBuilder struct {
	buf    bytes.Buffer
	writer *multipart.Writer
}

// NewMultipartBuilder returns an empty builder with a freshly generated
// boundary.
func NewMultipartBuilder() *MultipartBuilder {
	b := &MultipartBuilder{}
	b.writer = multipart.NewWriter(&b.buf)
	return b
}

// WriteField adds a plain form field.
func (b *MultipartBuilder) WriteField(name, value string) error {
	return b.writer.WriteField(name, value)
}

// WriteFile adds a file field, copying content in full.
func (b *MultipartBuilder) WriteFile(fieldName, fileName string, content io.Reader) error {
	part, err := b.writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, content)
	return err
}

// Close finalizes the body and returns a BodyProducer ready for
// Request.Body along with the Content-Type header value (carrying the
// boundary) the caller should set.
func (b *MultipartBuilder) Close() (httpproto.BodyProducer, string, error) {
	if err := b.writer.Close(); err != nil {
		return nil, "", err
	}
	return httpproto.BufferedBodyProducer(b.buf.Bytes()), b.writer.FormDataContentType(), nil
}
