package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "both document_id and operation_id",
			setupCtx: func() context.Context {
				ctx := context.Background()
				ctx = WithDocumentID(ctx, "notes.md")
				ctx = WithOperationID(ctx, "op-123")
				return ctx
			},
			wantKeys: []string{"document_id", "operation_id"},
		},
		{
			name: "only document_id",
			setupCtx: func() context.Context {
				return WithDocumentID(context.Background(), "notes.md")
			},
			wantKeys:  []string{"document_id"},
			wantEmpty: []string{"operation_id"},
		},
		{
			name: "only operation_id",
			setupCtx: func() context.Context {
				return WithOperationID(context.Background(), "op-123")
			},
			wantKeys:  []string{"operation_id"},
			wantEmpty: []string{"document_id"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"document_id", "operation_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := tt.setupCtx()

			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(ctx).Msg("test")

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("failed to parse log: %v", err)
			}

			for _, key := range tt.wantKeys {
				if _, ok := logEntry[key]; !ok {
					t.Errorf("expected %s to be present in log", key)
				}
			}

			for _, key := range tt.wantEmpty {
				if _, ok := logEntry[key]; ok {
					t.Errorf("expected %s to be absent from log", key)
				}
			}
		})
	}
}
