package requesttrace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContextMissing(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(context.Background())
	require.False(t, ok)

	info := FromContextOrAnonymous(context.Background())
	require.Equal(t, ActorKindAnonymous, info.ActorKind)
	require.Nil(t, info.EditorID)
}

func TestIntoContextRoundTrip(t *testing.T) {
	t.Parallel()

	editor := "alice"
	ctx := IntoContext(context.Background(), EditorInfo{
		ActorKind: ActorKindEditor,
		EditorID:  &editor,
		RequestID: "req-1",
	})

	info, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, ActorKindEditor, info.ActorKind)
	require.NotNil(t, info.EditorID)
	require.Equal(t, "alice", *info.EditorID)
	require.Equal(t, "req-1", info.RequestID)
}

func TestMiddlewareResolvesEditorHeader(t *testing.T) {
	t.Parallel()

	var captured EditorInfo
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContextOrAnonymous(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/pages", nil)
	req.Header.Set(EditorHeader, " bob ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, ActorKindEditor, captured.ActorKind)
	require.NotNil(t, captured.EditorID)
	require.Equal(t, "bob", *captured.EditorID)
}

func TestMiddlewareAnonymousWithoutHeader(t *testing.T) {
	t.Parallel()

	var captured EditorInfo
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContextOrAnonymous(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pages", nil))

	require.Equal(t, ActorKindAnonymous, captured.ActorKind)
	require.Nil(t, captured.EditorID)
}
