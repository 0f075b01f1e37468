package messages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageFallback(t *testing.T) {
	c, err := Parse([]byte(`
en:
  greeting: Hello
  farewell: Bye
pl:
  greeting: Cześć
`), "en")
	require.NoError(t, err)

	require.Equal(t, "Cześć", c.Message("pl", "greeting"))
	require.Equal(t, "Bye", c.Message("pl", "farewell"))
	require.Equal(t, "Hello", c.Message("de", "greeting"))
	require.Equal(t, "missing.key", c.Message("en", "missing.key"))
}

func TestParseRequiresDefaultLocale(t *testing.T) {
	_, err := Parse([]byte("pl:\n  a: b\n"), "en")
	require.Error(t, err)
}

func TestBuiltInCatalogIsComplete(t *testing.T) {
	c, err := Load("en")
	require.NoError(t, err)

	for key := range c.texts["en"] {
		_, ok := c.texts["pl"][key]
		require.True(t, ok, "missing pl translation for %s", key)
	}
}
