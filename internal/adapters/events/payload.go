package events

import (
	"encoding/json"
	"fmt"

	"logiflow-service/internal/domain"
)

func encode(ev domain.DeliveryEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.Type, err)
	}
	return body, nil
}
