package services

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"logiflow-service/internal/domain"
)

// StatusPriority ranks statuses for fleet views. Unknown statuses sort last.
func StatusPriority(s domain.Status) int {
	switch s {
	case domain.StatusPending:
		return 1
	case domain.StatusOnWay:
		return 2
	case domain.StatusDelivered:
		return 3
	}
	return 99
}

// PriorityOrder returns a copy of list sorted by status priority, then by
// name using case-insensitive collation for locale.
func PriorityOrder(list []domain.DeliveryRecord, locale language.Tag) []domain.DeliveryRecord {
	out := slices.Clone(list)
	col := collate.New(locale, collate.IgnoreCase)

	slices.SortStableFunc(out, func(a, b domain.DeliveryRecord) int {
		if pa, pb := StatusPriority(a.Status), StatusPriority(b.Status); pa != pb {
			return pa - pb
		}
		return col.CompareString(a.Name, b.Name)
	})
	return out
}

// ActivationOrder returns a copy of list with delivered records moved behind
// all others. Relative order inside each group is kept.
func ActivationOrder(list []domain.DeliveryRecord) []domain.DeliveryRecord {
	out := make([]domain.DeliveryRecord, 0, len(list))
	var done []domain.DeliveryRecord
	for _, d := range list {
		if d.Status == domain.StatusDelivered {
			done = append(done, d)
			continue
		}
		out = append(out, d)
	}
	return append(out, done...)
}

// Filter keeps records matching status ("" or "all" for any) and the search
// query. The query matches name or id case-insensitively, or the postal code
// as typed.
func Filter(list []domain.DeliveryRecord, status string, query string) []domain.DeliveryRecord {
	status = strings.TrimSpace(status)
	query = strings.TrimSpace(query)
	lq := strings.ToLower(query)

	out := make([]domain.DeliveryRecord, 0, len(list))
	for _, d := range list {
		if status != "" && status != "all" && string(d.Status) != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(d.Name), lq) &&
			!strings.Contains(strings.ToLower(d.ID), lq) &&
			!strings.Contains(d.PostalCode, query) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// PendingCount counts records not yet delivered.
func PendingCount(list []domain.DeliveryRecord) int {
	n := 0
	for _, d := range list {
		if d.Status != domain.StatusDelivered {
			n++
		}
	}
	return n
}
