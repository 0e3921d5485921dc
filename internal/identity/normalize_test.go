package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"John Smith":             "john smith",
		"john   smith":           "john smith",
		"Mr. John Smith Jr.":     "john smith",
		"  DR.  Jane  Doe, III ": "jane doe",
		"Prof Mary-Ann O'Neil":   "maryann oneil",
		"Mrs.":                   "",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}

func TestSharedTokens(t *testing.T) {
	assert.Equal(t, 2, sharedTokens("john michael smith", "john smith"))
	assert.Equal(t, 1, sharedTokens("john smith", "john smyth"))
	assert.Equal(t, 1, sharedTokens("john john", "john john"))
	assert.Equal(t, 0, sharedTokens("", "john smith"))
}
