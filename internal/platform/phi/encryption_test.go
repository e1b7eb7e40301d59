package phi

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	cases := [][]byte{
		[]byte("8c7f2a4e-0000-4000-8000-000000000001"),
		[]byte(`{"pid":"abc","type":"nfc_access"}`),
		[]byte(""),
		bytes.Repeat([]byte{0xff}, 1024),
	}
	for _, plaintext := range cases {
		token, err := enc.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := enc.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncrypt_UniqueNonces(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "two encryptions of the same plaintext must differ")
}

func TestDecrypt_RejectsTamperedToken(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	token, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)

	tampered := []byte(token)
	tampered[len(tampered)-1] ^= 'x'
	_, err = enc.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestDecrypt_RejectsForeignKey(t *testing.T) {
	enc1, err := NewEncryptor(testKey(t))
	require.NoError(t, err)
	enc2, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	token, err := enc1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(token)
	assert.Error(t, err)
}

func TestDecrypt_RejectsGarbage(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	for _, token := range []string{"", "notbase64!!", "c2hvcnQ"} {
		_, err := enc.Decrypt(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestNewEncryptor_RejectsBadKeyLength(t *testing.T) {
	_, err := NewEncryptor([]byte("short"))
	assert.Error(t, err)
}

func TestEncryptJSON_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	token, err := enc.EncryptJSON(map[string]string{"id": "p1"})
	require.NoError(t, err)

	got, err := enc.Decrypt(token)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1"}`, string(got))
}

func TestLoadKey_HexPrecedence(t *testing.T) {
	want := testKey(t)
	key, err := LoadKey(hex.EncodeToString(want), filepath.Join(t.TempDir(), "secret.key"))
	require.NoError(t, err)
	assert.Equal(t, want, key)
}

func TestLoadKey_GeneratesAndPersists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "secret.key")

	key1, err := LoadKey("", file)
	require.NoError(t, err)
	assert.Len(t, key1, 32)

	_, err = os.Stat(file)
	require.NoError(t, err, "generated key must be persisted")

	key2, err := LoadKey("", file)
	require.NoError(t, err)
	assert.Equal(t, key1, key2, "restart must reuse the persisted key")
}

func TestLoadKey_RejectsBadHex(t *testing.T) {
	_, err := LoadKey("zz", filepath.Join(t.TempDir(), "secret.key"))
	assert.Error(t, err)

	_, err = LoadKey("abcd", filepath.Join(t.TempDir(), "secret.key"))
	assert.Error(t, err, "short key must be rejected")
}
