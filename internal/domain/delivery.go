package domain

import "strings"

// Status is the lifecycle state of a delivery on a driver's route.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOnWay     Status = "on_way"
	StatusDelivered Status = "delivered"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOnWay, StatusDelivered:
		return true
	}
	return false
}

// Represents one recipient stop on a driver's route list.
//
// JSON keys match the list format written by the mobile client so that
// previously stored lists load unchanged. CreatedAt and CompletedAt are
// milliseconds since the Unix epoch.
type DeliveryRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"nome"`
	Address      string   `json:"endereco"`
	Neighborhood string   `json:"bairro"`
	City         string   `json:"cidade"`
	Country      string   `json:"pais"`
	PostalCode   string   `json:"cep"`
	Phone        string   `json:"telefone"`
	GuidanceNote string   `json:"passo_a_passo,omitempty"`
	Status       Status   `json:"status,omitempty"`
	CreatedAt    int64    `json:"timestamp"`
	CompletedAt  *int64   `json:"completedAt,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

// Location returns the geolocation captured at creation, if any.
func (d *DeliveryRecord) Location() *Geolocation {
	if d.Lat == nil || d.Lng == nil {
		return nil
	}
	return &Geolocation{Lat: *d.Lat, Lng: *d.Lng}
}

// SetLocation stamps the record with the device position at creation time.
func (d *DeliveryRecord) SetLocation(loc *Geolocation) {
	if loc == nil {
		return
	}
	lat, lng := loc.Lat, loc.Lng
	d.Lat = &lat
	d.Lng = &lng
}

// FullAddress composes the address handed to navigation apps.
// Missing parts are kept as empty segments, as drivers' map apps tolerate them.
func (d *DeliveryRecord) FullAddress() string {
	return strings.Join([]string{
		d.Address,
		d.Neighborhood,
		d.City,
		d.Country,
		d.PostalCode,
	}, ", ")
}

// FieldPatch carries a manual edit of free-text fields. Nil fields are left untouched.
type FieldPatch struct {
	Name         *string `json:"nome,omitempty"`
	Address      *string `json:"endereco,omitempty"`
	Neighborhood *string `json:"bairro,omitempty"`
	City         *string `json:"cidade,omitempty"`
	Country      *string `json:"pais,omitempty"`
	PostalCode   *string `json:"cep,omitempty"`
	Phone        *string `json:"telefone,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p FieldPatch) Empty() bool {
	return p.Name == nil && p.Address == nil && p.Neighborhood == nil &&
		p.City == nil && p.Country == nil && p.PostalCode == nil && p.Phone == nil
}

// Apply overwrites the patched fields. Identity, status and timestamps are never touched.
func (p FieldPatch) Apply(d *DeliveryRecord) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&d.Name, p.Name)
	set(&d.Address, p.Address)
	set(&d.Neighborhood, p.Neighborhood)
	set(&d.City, p.City)
	set(&d.Country, p.Country)
	set(&d.PostalCode, p.PostalCode)
	set(&d.Phone, p.Phone)
}
