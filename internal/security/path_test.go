package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	assert.NoError(t, ValidateFilePath("config.json"))
	assert.NoError(t, ValidateFilePath("/etc/wagate/config.json"))
	assert.NoError(t, ValidateFilePath("./config/./config.json"))

	assert.Error(t, ValidateFilePath(""))
	assert.Error(t, ValidateFilePath("../secrets.json"))
	assert.Error(t, ValidateFilePath("config/../../secrets.json"))
}

func TestValidateFilePathWithBase(t *testing.T) {
	assert.NoError(t, ValidateFilePathWithBase("config.json", "/etc/wagate"))
	assert.NoError(t, ValidateFilePathWithBase("sub/config.json", "/etc/wagate"))

	assert.Error(t, ValidateFilePathWithBase("../other/config.json", "/etc/wagate"))
	assert.Error(t, ValidateFilePathWithBase("", "/etc/wagate"))
}
