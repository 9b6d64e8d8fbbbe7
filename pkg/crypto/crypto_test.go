package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := RandomBytes(32)
	require.NoError(t, err)

	plaintext := []byte("credential payload")
	ciphertext, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	require.NotEqual(t, string(plaintext), ciphertext)

	decrypted, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestDecryptWrongKey(t *testing.T) {
	key, err := RandomBytes(32)
	require.NoError(t, err)
	other, err := RandomBytes(32)
	require.NoError(t, err)

	ciphertext, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, other)
	require.Error(t, err)
}

func TestDecryptRejectsTruncatedPayload(t *testing.T) {
	key, err := RandomBytes(32)
	require.NoError(t, err)

	_, err = Decrypt("c2hvcnQ=", key)
	require.Error(t, err)
}

func TestEncryptRejectsBadKeySize(t *testing.T) {
	_, err := Encrypt([]byte("payload"), []byte("too-short"))
	require.Error(t, err)
}

func TestRandomTokenLengthAndUniqueness(t *testing.T) {
	first, err := RandomToken(32)
	require.NoError(t, err)
	second, err := RandomToken(32)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}

func TestArgon2ParametersValidate(t *testing.T) {
	require.NoError(t, DefaultArgon2Params().Validate())

	bad := DefaultArgon2Params()
	bad.Time = 0
	require.Error(t, bad.Validate())

	bad = DefaultArgon2Params()
	bad.KeyLength = 20
	require.Error(t, bad.Validate())
}

func TestDeriveKeyArgon2idIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	first, err := DeriveKeyArgon2id([]byte("secret"), salt, DefaultArgon2Params())
	require.NoError(t, err)
	second, err := DeriveKeyArgon2id([]byte("secret"), salt, DefaultArgon2Params())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 32)

	_, err = DeriveKeyArgon2id([]byte("secret"), []byte("short"), DefaultArgon2Params())
	require.Error(t, err)
}
