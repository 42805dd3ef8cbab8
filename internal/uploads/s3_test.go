package uploads

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURI(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	contentType, data, err := decodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, raw, data)
}

func TestDecodeBareBase64(t *testing.T) {
	raw := []byte("jpeg-bytes")
	contentType, data, err := decodeDataURI(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, raw, data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []string{
		"data:image/png;base64",
		"data:image/png,not-base64-section",
		"%%%not-base64%%%",
		"",
	}
	for _, input := range cases {
		_, _, err := decodeDataURI(input)
		assert.ErrorIs(t, err, ErrInvalidImage, "input %q", input)
	}
}

func TestStorageKeyUsesContentType(t *testing.T) {
	key := storageKey("image/png")
	assert.True(t, strings.HasPrefix(key, "images/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
}

func TestDisabledUploader(t *testing.T) {
	uploader, err := New(context.Background(), Config{})
	require.NoError(t, err)

	_, err = uploader.Upload(context.Background(), "data:image/png;base64,AA==")
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}
