package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestBlankValuesAreNotStored(t *testing.T) {
	ctx := WithRequestID(context.Background(), " ")
	ctx = WithClientIP(ctx, "")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, ClientIPFromContext(ctx))
}

func TestNilContext(t *testing.T) {
	//lint:ignore SA1012 nil context is handled explicitly
	assert.Empty(t, RequestIDFromContext(nil))
}
