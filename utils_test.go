package jsongate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindFreePort(t *testing.T) {
	port := findFreePort()
	assert.NoError(t, ValidatePort(port))
}
