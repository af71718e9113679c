package domain

import (
	"errors"
	"slices"
	"testing"
)

func str(s string) *string { return &s }

func TestNewLabelField(t *testing.T) {
	tests := []struct {
		name  string
		raw   *string
		state FieldState
		value string
	}{
		{"missing", nil, FieldMissing, ""},
		{"resolved", str("  Curitiba "), FieldResolved, "Curitiba"},
		{"empty string is resolved", str(""), FieldResolved, ""},
		{"unknown", str("unknown"), FieldUnresolved, "unknown"},
		{"unknown any case", str("UNKNOWN"), FieldUnresolved, "UNKNOWN"},
		{"legacy sentinel", str("Desconhecido"), FieldUnresolved, "Desconhecido"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLabelField(tt.raw)
			if f.State != tt.state || f.Value != tt.value {
				t.Errorf("got %v %q, want %v %q", f.State, f.Value, tt.state, tt.value)
			}
		})
	}
}

func TestLabelExtractionUnresolvedAndMissing(t *testing.T) {
	e := LabelExtraction{
		Name:       NewLabelField(str("Ana")),
		Address:    NewLabelField(str("unknown")),
		City:       NewLabelField(str("Curitiba")),
		Country:    NewLabelField(str("Brasil")),
		PostalCode: NewLabelField(str("unknown")),
		Phone:      NewLabelField(str("41 9999")),
	}

	if got, want := e.Unresolved(), []string{"endereco", "cep"}; !slices.Equal(got, want) {
		t.Errorf("Unresolved = %v, want %v", got, want)
	}
	if got, want := e.Missing(), []string{"bairro", "passo_a_passo"}; !slices.Equal(got, want) {
		t.Errorf("Missing = %v, want %v", got, want)
	}
}

func TestLabelExtractionRecord(t *testing.T) {
	e := LabelExtraction{
		Name:         NewLabelField(str("Ana")),
		Address:      NewLabelField(str("unknown")),
		GuidanceNote: NewLabelField(str("Address validated")),
	}

	d := e.Record("LF-1", 42)
	if d.ID != "LF-1" || d.CreatedAt != 42 || d.Status != StatusPending {
		t.Errorf("identity fields wrong: %+v", d)
	}
	// the sentinel is stored as read so the driver sees what needs fixing
	if d.Address != "unknown" || d.GuidanceNote != "Address validated" {
		t.Errorf("values wrong: %+v", d)
	}
	if d.CompletedAt != nil {
		t.Errorf("new record must not be completed")
	}
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("status 503")
	var err error = &ExtractionError{Op: "call service", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ExtractionError should unwrap to its cause")
	}
	if !IsExtractionError(err) {
		t.Error("IsExtractionError = false")
	}
	if IsExtractionError(cause) {
		t.Error("plain error reported as ExtractionError")
	}
	if got := err.Error(); got != "extract label: call service: status 503" {
		t.Errorf("Error() = %q", got)
	}
}
