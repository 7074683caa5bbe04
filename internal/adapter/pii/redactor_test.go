package pii

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/barber-pos/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"phone", "email", "mpesaPhoneNumber"}, logger)

	tests := []struct {
		name            string
		inputDetails    string
		expectedDetails string
		expectRedacted  bool
		expectErr       bool
	}{
		{
			name:            "Redact staff contact",
			inputDetails:    `{"name": "James", "phone": "0712345678", "email": "j@shop.test"}`,
			expectedDetails: `{"email":"[REDACTED]","name":"James","phone":"[REDACTED]"}`,
			expectRedacted:  true,
		},
		{
			name:            "Redact nested fields",
			inputDetails:    `{"id": "tx-1", "mpesaPhoneNumber": "0712345678", "customers": [{"phone": "0722000111"}]}`,
			expectedDetails: `{"customers":[{"phone":"[REDACTED]"}],"id":"tx-1","mpesaPhoneNumber":"[REDACTED]"}`,
			expectRedacted:  true,
		},
		{
			name:            "Empty values stay empty",
			inputDetails:    `{"name": "Walk-in", "phone": ""}`,
			expectedDetails: `{"name":"Walk-in","phone":""}`,
			expectRedacted:  false,
		},
		{
			name:            "No fields to redact",
			inputDetails:    `{"stock": 9, "version": 2}`,
			expectedDetails: `{"stock":9,"version":2}`,
			expectRedacted:  false,
		},
		{
			name:         "Invalid JSON details",
			inputDetails: `{"phone": "0712345678"`,
			expectErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &domain.AuditEvent{ID: "evt-1", Details: json.RawMessage(tt.inputDetails)}
			err := redactor.Redact(event)

			if tt.expectErr {
				if err == nil {
					t.Fatal("expected an error, but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("did not expect an error, but got: %v", err)
			}
			if event.PIIRedacted != tt.expectRedacted {
				t.Errorf("expected PIIRedacted=%v, got %v", tt.expectRedacted, event.PIIRedacted)
			}

			var got, want any
			if err := json.Unmarshal(event.Details, &got); err != nil {
				t.Fatalf("details are not valid JSON: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.expectedDetails), &want); err != nil {
				t.Fatalf("bad expectation: %v", err)
			}
			gotB, _ := json.Marshal(got)
			wantB, _ := json.Marshal(want)
			if string(gotB) != string(wantB) {
				t.Errorf("expected details %s, got %s", wantB, gotB)
			}
		})
	}
}
