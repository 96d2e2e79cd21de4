package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUTF8(t *testing.T) {
	latin1 := []byte("Jos\xe9 Pe\xf1a")

	assert.Equal(t, "José Peña", string(toUTF8("text/html; charset=ISO-8859-1", latin1)))
	assert.Equal(t, "José Peña", string(toUTF8("text/html; charset=windows-1252", latin1)))
	assert.Equal(t, latin1, toUTF8("text/html", latin1))
	assert.Equal(t, latin1, toUTF8("", latin1))
	assert.Equal(t, latin1, toUTF8("text/html; charset=no-such-charset", latin1))
	assert.Equal(t, []byte("plain"), toUTF8("text/html; charset=UTF-8", []byte("plain")))
}
