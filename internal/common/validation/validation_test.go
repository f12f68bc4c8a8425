package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("vitalik.eth"))
	assert.Error(t, ValidateDisplayName("   "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("a", MaxDisplayNameLength+1)))
}

func TestValidatePostBody(t *testing.T) {
	assert.NoError(t, ValidatePostBody("gm", false))
	assert.NoError(t, ValidatePostBody("", true))
	assert.Error(t, ValidatePostBody(" ", false))
	assert.Error(t, ValidatePostBody(strings.Repeat("x", MaxPostBodyLength+1), false))
}

func TestValidateBrandColor(t *testing.T) {
	assert.NoError(t, ValidateBrandColor("#1a2B3c"))
	assert.Error(t, ValidateBrandColor("1a2b3c"))
	assert.Error(t, ValidateBrandColor("#12345"))
	assert.Error(t, ValidateBrandColor("#GGGGGG"))
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://cdn.example/a.png"))
	assert.Error(t, ValidateImageURL("ipfs://Qm"))
	assert.Error(t, ValidateImageURL("/relative.png"))
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x00000000000000000000000000000000000000dE"))
	assert.False(t, IsValidAddress("00000000000000000000000000000000000000de"))
	assert.False(t, IsValidAddress("0x123"))
	assert.False(t, IsValidAddress(""))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, ClampLimit(0, 20, 100))
	assert.Equal(t, 100, ClampLimit(500, 20, 100))
	assert.Equal(t, 7, ClampLimit(7, 20, 100))
}
