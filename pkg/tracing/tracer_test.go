package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStart_NoProvider(t *testing.T) {
	ctx, span := Start(context.Background(), "test.span", attribute.String("k", "v"))
	defer span.End()

	assert.NotNil(t, ctx)
	Fail(span, errors.New("boom"))
	Fail(span, nil)
}
