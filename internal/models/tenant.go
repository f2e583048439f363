package models

import (
	"time"

	"github.com/google/uuid"
)

type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Subdomain string    `json:"subdomain" db:"subdomain"`
	Timezone  string    `json:"timezone" db:"timezone"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location resolves the tenant's configured IANA timezone. Billing months are
// bounded in this zone, not UTC.
func (t *Tenant) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.LoadLocation("Asia/Kolkata")
	}
	return time.LoadLocation(t.Timezone)
}
