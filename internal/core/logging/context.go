package logging

import "context"

type contextKey string

const (
	documentIDKey  contextKey = "document_id"
	operationIDKey contextKey = "operation_id"
)

// WithDocumentID adds a document ID to the context.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentIDKey, documentID)
}

// WithOperationID adds a transform operation ID to the context.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, operationIDKey, operationID)
}

// GetDocumentID retrieves the document ID from the context.
// Returns empty string if not present.
func GetDocumentID(ctx context.Context) string {
	if id, ok := ctx.Value(documentIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOperationID retrieves the operation ID from the context.
// Returns empty string if not present.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey).(string); ok {
		return id
	}
	return ""
}
