package logging

import (
	"context"
	"testing"
)

func TestWithDocumentID(t *testing.T) {
	ctx := context.Background()
	documentID := "notes.md"

	ctx = WithDocumentID(ctx, documentID)
	got := GetDocumentID(ctx)

	if got != documentID {
		t.Errorf("GetDocumentID() = %q, want %q", got, documentID)
	}
}

func TestWithOperationID(t *testing.T) {
	ctx := context.Background()
	operationID := "op-4f2k9x1a"

	ctx = WithOperationID(ctx, operationID)
	got := GetOperationID(ctx)

	if got != operationID {
		t.Errorf("GetOperationID() = %q, want %q", got, operationID)
	}
}

func TestGetDocumentID_NotPresent(t *testing.T) {
	ctx := context.Background()
	got := GetDocumentID(ctx)

	if got != "" {
		t.Errorf("GetDocumentID() = %q, want empty string", got)
	}
}

func TestGetOperationID_NotPresent(t *testing.T) {
	ctx := context.Background()
	got := GetOperationID(ctx)

	if got != "" {
		t.Errorf("GetOperationID() = %q, want empty string", got)
	}
}

func TestBothIDs(t *testing.T) {
	ctx := context.Background()
	documentID := "doc-1"
	operationID := "op-1"

	ctx = WithDocumentID(ctx, documentID)
	ctx = WithOperationID(ctx, operationID)

	if got := GetDocumentID(ctx); got != documentID {
		t.Errorf("GetDocumentID() = %q, want %q", got, documentID)
	}

	if got := GetOperationID(ctx); got != operationID {
		t.Errorf("GetOperationID() = %q, want %q", got, operationID)
	}
}
