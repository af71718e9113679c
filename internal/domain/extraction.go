package domain

import "strings"

// UnknownValue is the literal the extraction service emits for an illegible field.
const UnknownValue = "unknown"

// legacyUnknownValue was emitted by the Portuguese instruction set and may still
// appear in stored lists.
const legacyUnknownValue = "desconhecido"

// FieldState tags an extracted label field.
type FieldState int

const (
	// FieldMissing means the service omitted the field entirely.
	FieldMissing FieldState = iota
	// FieldResolved means the service read a concrete value.
	FieldResolved
	// FieldUnresolved means the service returned the unknown sentinel.
	FieldUnresolved
)

func (s FieldState) String() string {
	switch s {
	case FieldResolved:
		return "resolved"
	case FieldUnresolved:
		return "unresolved"
	}
	return "missing"
}

// LabelField is one value read off a shipping label.
type LabelField struct {
	Value string
	State FieldState
}

// NewLabelField classifies a raw value returned by the extraction service.
func NewLabelField(raw *string) LabelField {
	if raw == nil {
		return LabelField{State: FieldMissing}
	}
	v := strings.TrimSpace(*raw)
	if IsUnknown(v) {
		return LabelField{Value: v, State: FieldUnresolved}
	}
	return LabelField{Value: v, State: FieldResolved}
}

// IsUnknown reports whether v is the unknown sentinel (case-insensitive).
func IsUnknown(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, UnknownValue) || strings.EqualFold(v, legacyUnknownValue)
}

// LabelExtraction is the structured result of reading a single label.
type LabelExtraction struct {
	Name         LabelField
	Address      LabelField
	Neighborhood LabelField
	City         LabelField
	Country      LabelField
	PostalCode   LabelField
	Phone        LabelField
	GuidanceNote LabelField
}

// fields lists every field with its wire name, in schema order.
func (e *LabelExtraction) fields() []struct {
	name  string
	field LabelField
} {
	return []struct {
		name  string
		field LabelField
	}{
		{"nome", e.Name},
		{"endereco", e.Address},
		{"bairro", e.Neighborhood},
		{"cidade", e.City},
		{"pais", e.Country},
		{"cep", e.PostalCode},
		{"telefone", e.Phone},
		{"passo_a_passo", e.GuidanceNote},
	}
}

// Unresolved returns the wire names of fields the service could not read.
// A non-empty result is not an error; the record needs human review.
func (e *LabelExtraction) Unresolved() []string {
	var out []string
	for _, f := range e.fields() {
		if f.field.State == FieldUnresolved {
			out = append(out, f.name)
		}
	}
	return out
}

// Missing returns the wire names of fields absent from the response.
func (e *LabelExtraction) Missing() []string {
	var out []string
	for _, f := range e.fields() {
		if f.field.State == FieldMissing {
			out = append(out, f.name)
		}
	}
	return out
}

// Record builds a pending DeliveryRecord from the extraction.
func (e *LabelExtraction) Record(id string, createdAt int64) DeliveryRecord {
	return DeliveryRecord{
		ID:           id,
		Name:         e.Name.Value,
		Address:      e.Address.Value,
		Neighborhood: e.Neighborhood.Value,
		City:         e.City.Value,
		Country:      e.Country.Value,
		PostalCode:   e.PostalCode.Value,
		Phone:        e.Phone.Value,
		GuidanceNote: e.GuidanceNote.Value,
		Status:       StatusPending,
		CreatedAt:    createdAt,
	}
}
