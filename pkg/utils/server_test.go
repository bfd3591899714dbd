package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPersistentServerID(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, "node-1", GetPersistentServerID(" node-1 ", dir))

	first := GetPersistentServerID("", dir)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, GetPersistentServerID("", dir), "the id survives restarts")
}
