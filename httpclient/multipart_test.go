package httpclient

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartBuilder_RoundTrip(t *testing.T) {
	b := NewMultipartBuilder()
	require.NoError(t, b.WriteField("name", "gopher"))
	require.NoError(t, b.WriteFile("avatar", "pic.txt", strings.NewReader("binary data")))

	producer, contentType, err := b.Close()
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	boundary := params["boundary"]
	require.NotEmpty(t, boundary)

	var body []byte
	for {
		chunk, err := producer.Next()
		body = append(body, chunk...)
		if err != nil {
			require.Equal(t, io.EOF, err)
			break
		}
	}

	reader := multipart.NewReader(strings.NewReader(string(body)), boundary)

	part, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "name", part.FormName())
	val, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "gopher", string(val))

	part, err = reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "avatar", part.FormName())
	assert.Equal(t, "pic.txt", part.FileName())
	val, err = io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "binary data", string(val))

	_, err = reader.NextPart()
	assert.Equal(t, io.EOF, err)
}
