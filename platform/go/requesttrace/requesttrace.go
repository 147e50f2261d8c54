package requesttrace

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const ctxEditorInfo contextKey = "FOLIAGE_REQUEST_TRACE"

// EditorHeader carries the identity of the admin user performing the request.
// Authentication itself happens upstream; this value is trusted as-is.
const EditorHeader = "X-Editor-Id"

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindEditor    ActorKind = "editor"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// EditorInfo captures request-scoped metadata needed for traceability of page edits.
// EditorID is set only when ActorKind is editor; RequestID is optional but encouraged.
type EditorInfo struct {
	ActorKind ActorKind
	EditorID  *string
	RequestID string
}

// IntoContext stores the EditorInfo in the provided context.
func IntoContext(ctx context.Context, info EditorInfo) context.Context {
	return context.WithValue(ctx, ctxEditorInfo, info)
}

// FromContext extracts the EditorInfo from context, returning false when not present.
func FromContext(ctx context.Context) (EditorInfo, bool) {
	if ctx == nil {
		return EditorInfo{}, false
	}
	v := ctx.Value(ctxEditorInfo)
	if v == nil {
		return EditorInfo{}, false
	}

	info, ok := v.(EditorInfo)
	return info, ok
}

// FromContextOrAnonymous returns the EditorInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) EditorInfo {
	if info, ok := FromContext(ctx); ok {
		return info
	}
	return Anonymous("")
}

// Anonymous builds an EditorInfo for requests without an editor identity.
func Anonymous(requestID string) EditorInfo {
	return EditorInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an EditorInfo for background/system operations.
func System(requestID string) EditorInfo {
	return EditorInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Middleware resolves the editor identity from the request headers and stores it on the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		info := Anonymous(requestID)
		if editor := strings.TrimSpace(r.Header.Get(EditorHeader)); editor != "" {
			info = EditorInfo{ActorKind: ActorKindEditor, EditorID: &editor, RequestID: requestID}
		}

		next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), info)))
	})
}
