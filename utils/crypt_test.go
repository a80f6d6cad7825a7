package utils

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	sizes := []int{0, 10, bufferSize - hmacSize, bufferSize, 3*bufferSize + 17}

	for _, size := range sizes {
		plain := make([]byte, size)
		_, err := rand.Read(plain)
		require.NoError(t, err)

		var sealed bytes.Buffer
		require.NoError(t, Encrypt(bytes.NewReader(plain), &sealed, []byte("s3cret")))

		var opened bytes.Buffer
		require.NoError(t, Decrypt(bytes.NewReader(sealed.Bytes()), &opened, []byte("s3cret")), "size %d", size)
		assert.Equal(t, plain, opened.Bytes(), "size %d", size)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	var sealed bytes.Buffer
	require.NoError(t, Encrypt(bytes.NewReader([]byte("archive")), &sealed, []byte("right")))

	err := Decrypt(bytes.NewReader(sealed.Bytes()), &bytes.Buffer{}, []byte("wrong"))
	assert.Equal(t, ErrInvalidHMAC, err)
}

func TestDecryptTruncated(t *testing.T) {
	err := Decrypt(bytes.NewReader([]byte{version1, 1, 2, 3}), &bytes.Buffer{}, []byte("key"))
	assert.Equal(t, ErrTruncated, err)
}

func TestDecryptUnknownVersion(t *testing.T) {
	head := make([]byte, envelopeHead+hmacSize)
	head[0] = 0x7
	err := Decrypt(bytes.NewReader(head), &bytes.Buffer{}, []byte("key"))
	assert.Equal(t, ErrUnknownVersion, err)
}
