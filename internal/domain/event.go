package domain

// EventType names a lifecycle change on a route list.
type EventType string

const (
	EventCommitted EventType = "delivery.committed"
	EventImported  EventType = "delivery.imported"
	EventOnWay     EventType = "delivery.on_way"
	EventDelivered EventType = "delivery.delivered"
	EventRemoved   EventType = "delivery.removed"
	EventReordered EventType = "route.activated"
)

// DeliveryEvent is published to fleet consumers after a route list mutation
// has been persisted.
type DeliveryEvent struct {
	Type     EventType `json:"type"`
	RouteKey string    `json:"route_key"`
	RecordID string    `json:"record_id,omitempty"`
	Status   Status    `json:"status,omitempty"`
	At       int64     `json:"at"`
}
