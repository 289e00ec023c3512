package rooms

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestGenerateCode_NeverDefault(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, _ := GenerateCode()
		assert.NotEqual(t, DefaultCode, code)
		assert.False(t, strings.ContainsAny(code, "0OIL1"), "code %q contains an ambiguous character", code)
	}
}

func TestGenerateCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	dupes := 0
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		if seen[code] {
			dupes++
		}
		seen[code] = true
	}
	// 31^4 combinations, 1000 samples should have essentially no dupes
	assert.LessOrEqual(t, dupes, 5)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABCD", NormalizeCode(" abcd "))
	assert.Equal(t, DefaultCode, NormalizeCode(""))
	assert.Equal(t, DefaultCode, NormalizeCode("main"))
}
