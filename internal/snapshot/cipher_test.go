package snapshot

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

func TestCipher_RoundTrip(t *testing.T) {
	c := sharedCipher(t)

	for _, plaintext := range [][]byte{
		[]byte(`{"id":"abc"}`),
		{},
		make([]byte, 4096),
	} {
		env, err := c.Seal(plaintext)
		require.NoError(t, err)

		got, err := c.Open(env)
		require.NoError(t, err)
		assert.Equal(t, len(plaintext), len(got))
		assert.Equal(t, string(plaintext), string(got))
	}
}

func TestCipher_EnvelopeLayout(t *testing.T) {
	c := sharedCipher(t)

	plaintext := []byte("hello world")
	env, err := c.Seal(plaintext)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	assert.Len(t, raw, nonceSize+tagSize+len(plaintext))
}

func TestCipher_FreshNoncePerWrite(t *testing.T) {
	c := sharedCipher(t)

	a, err := c.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := c.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipher_BitFlipFailsClosed(t *testing.T) {
	c := sharedCipher(t)

	env, err := c.Seal([]byte(`{"status":"completed"}`))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		_, err := c.Open(base64.StdEncoding.EncodeToString(tampered))
		require.Error(t, err, "flip at byte %d must be detected", i)
		assert.True(t, errors.Is(err, errors.ErrSnapshotCorrupted))
	}
}

func TestCipher_WrongKey(t *testing.T) {
	env, err := sharedCipher(t).Seal([]byte("secret state"))
	require.NoError(t, err)

	other, err := NewCipher("another-secret")
	require.NoError(t, err)
	_, err = other.Open(env)
	assert.True(t, errors.Is(err, errors.ErrSnapshotCorrupted))
}

func TestCipher_MalformedEnvelopes(t *testing.T) {
	c := sharedCipher(t)

	for _, env := range []string{"", "not base64!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Open(env)
		assert.True(t, errors.Is(err, errors.ErrSnapshotCorrupted), "envelope %q", env)
	}
}

func TestNewCipher_EmptySecret(t *testing.T) {
	_, err := NewCipher("")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
