package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	attrs := ParseAttributes("service.namespace=pdfrelay, team = print ,broken,,k=v=w")
	assert.Equal(t, map[string]string{
		"service.namespace": "pdfrelay",
		"team":              "print",
		"k":                 "v=w",
	}, attrs)
	assert.Empty(t, ParseAttributes(""))
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "relay"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
