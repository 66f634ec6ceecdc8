package xctx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rentkit/pkg/context/xctx"
)

// =============================================================================
// Actor 测试
// =============================================================================

func TestActor_RoundTrip(t *testing.T) {
	ctx, err := xctx.WithUserID(context.Background(), "u-1")
	require.NoError(t, err)
	ctx, err = xctx.WithOwnerID(ctx, "o-9")
	require.NoError(t, err)

	assert.Equal(t, "u-1", xctx.UserID(ctx))
	assert.Equal(t, "o-9", xctx.OwnerID(ctx))

	v, err := xctx.RequireOwnerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o-9", v)
}

func TestActor_Missing(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, xctx.UserID(ctx))
	_, err := xctx.RequireUserID(ctx)
	assert.ErrorIs(t, err, xctx.ErrMissingUserID)
	_, err = xctx.RequireOwnerID(ctx)
	assert.ErrorIs(t, err, xctx.ErrMissingOwnerID)
}

//nolint:staticcheck // 故意传入 nil context
func TestNilContext(t *testing.T) {
	_, err := xctx.WithUserID(nil, "u")
	assert.ErrorIs(t, err, xctx.ErrNilContext)
	_, err = xctx.WithTraceID(nil, "t")
	assert.ErrorIs(t, err, xctx.ErrNilContext)
	_, err = xctx.EnsureTrace(nil)
	assert.ErrorIs(t, err, xctx.ErrNilContext)
	_, err = xctx.RequireTraceID(nil)
	assert.ErrorIs(t, err, xctx.ErrNilContext)

	assert.Empty(t, xctx.TraceID(nil))
	assert.Nil(t, xctx.LogAttrs(nil))
}

// =============================================================================
// Trace 测试
// =============================================================================

func TestEnsureTrace_GeneratesMissingFields(t *testing.T) {
	ctx, err := xctx.EnsureTrace(context.Background())
	require.NoError(t, err)

	assert.Len(t, xctx.TraceID(ctx), 2*xctx.TraceIDSize)
	assert.Len(t, xctx.SpanID(ctx), 2*xctx.SpanIDSize)
	assert.NotEmpty(t, xctx.RequestID(ctx))
	assert.Empty(t, xctx.TraceFlags(ctx))
}

func TestEnsureTrace_KeepsExistingFields(t *testing.T) {
	ctx, err := xctx.WithTraceID(context.Background(), "existing-trace")
	require.NoError(t, err)
	ctx, err = xctx.WithRequestID(ctx, "req-1")
	require.NoError(t, err)

	ctx, err = xctx.EnsureTrace(ctx)
	require.NoError(t, err)

	assert.Equal(t, "existing-trace", xctx.TraceID(ctx))
	assert.Equal(t, "req-1", xctx.RequestID(ctx))
	assert.NotEmpty(t, xctx.SpanID(ctx))
}

func TestGenerateIDs_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := xctx.GenerateTraceID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestLogAttrs_Order(t *testing.T) {
	ctx, _ := xctx.WithTraceID(context.Background(), "t1")
	ctx, _ = xctx.WithRequestID(ctx, "r1")
	ctx, _ = xctx.WithOwnerID(ctx, "o1")

	attrs := xctx.LogAttrs(ctx)
	require.Len(t, attrs, 3)
	assert.Equal(t, xctx.KeyTraceID, attrs[0].Key)
	assert.Equal(t, xctx.KeyRequestID, attrs[1].Key)
	assert.Equal(t, xctx.KeyOwnerID, attrs[2].Key)
	assert.Equal(t, "o1", attrs[2].Value.String())
}

func TestLogAttrs_EmptyContext(t *testing.T) {
	assert.Nil(t, xctx.LogAttrs(context.Background()))
}
