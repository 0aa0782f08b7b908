package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("FASHIONSTORE_INSTANCE_ID", "api-7")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-7", GetID())
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("FASHIONSTORE_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "web.1", GetID())
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("FASHIONSTORE_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	assert.NotEmpty(t, GetID())
}
