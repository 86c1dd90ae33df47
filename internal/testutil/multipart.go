package testutil

import (
	"bytes"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

// Upload is one file part of a multipart form.
type Upload struct {
	Field string
	Name  string
	Data  []byte
}

// MultipartBody encodes uploads and plain form fields. It returns the body
// and its Content-Type header.
func MultipartBody(t testing.TB, fields map[string]string, uploads ...Upload) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, u := range uploads {
		part, err := w.CreateFormFile(u.Field, u.Name)
		require.NoError(t, err)
		_, err = part.Write(u.Data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

// FileHeaders parses uploads back into the headers gin would hand a handler.
func FileHeaders(t testing.TB, uploads ...Upload) map[string][]*multipart.FileHeader {
	t.Helper()

	body, contentType := MultipartBody(t, nil, uploads...)
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File
}
