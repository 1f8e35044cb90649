package cipher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"x",
		"Data Source=localhost; Initial Catalog=openPDC; User ID=sa; Password=p@ss;",
		strings.Repeat("0123456789abcdef", 4),
		"ünïcödé ✓ 数据",
	}

	for _, strength := range []Strength{AES128, AES192, AES256} {
		for _, in := range inputs {
			enc, err := Encrypt(in, DefaultKey, strength)
			require.NoError(t, err)
			if in != "" {
				assert.NotContains(t, enc, in)
			}

			dec, err := Decrypt(enc, DefaultKey, strength)
			require.NoError(t, err)
			assert.Equal(t, in, dec)
		}
	}
}

func TestDefaultCipherIsDeterministic(t *testing.T) {
	c := Default()
	a, err := c.Encrypt("Server=db")
	require.NoError(t, err)
	b, err := c.Encrypt("Server=db")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	plain, err := c.Decrypt(a)
	require.NoError(t, err)
	assert.Equal(t, "Server=db", plain)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc, err := Encrypt("Server=db; Password=secret", DefaultKey, AES256)
	require.NoError(t, err)

	plain, err := Decrypt(enc, "another-key", AES256)
	if err == nil {
		assert.NotEqual(t, "Server=db; Password=secret", plain)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := Decrypt("not base64!!", DefaultKey, AES256)
	assert.Error(t, err)

	_, err = Decrypt("AAAA", DefaultKey, AES256)
	assert.Error(t, err)
}

func TestUnsupportedStrength(t *testing.T) {
	_, err := Encrypt("x", DefaultKey, Strength(512))
	assert.Error(t, err)
	_, err = Encrypt("x", "", AES256)
	assert.Error(t, err)
}
