package services

import (
	"strings"

	"logiflow-service/internal/domain"
)

// ImportedName is used when an import line has no name before the separator.
const ImportedName = "Imported Customer"

// ParseImport turns pasted text into pending records, one per non-blank line.
// A line is split on its first ';' or ',': the name comes before it and the
// address after it. Without a separator the whole line is the address.
func ParseImport(text, country string, createdAt int64, newID func() string) []domain.DeliveryRecord {
	var out []domain.DeliveryRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, address := "", line
		if i := strings.IndexAny(line, ";,"); i >= 0 {
			name = strings.TrimSpace(line[:i])
			address = strings.TrimSpace(line[i+1:])
		}
		if name == "" {
			name = ImportedName
		}
		if address == "" {
			address = line
		}

		out = append(out, domain.DeliveryRecord{
			ID:        newID(),
			Name:      name,
			Address:   address,
			Country:   country,
			Status:    domain.StatusPending,
			CreatedAt: createdAt,
		})
	}
	return out
}
