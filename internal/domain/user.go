package domain

// DefaultCountry is applied to users registered without a country.
const DefaultCountry = "US"

// User is a feed owner located in a municipality.
type User struct {
	ID        string   `json:"id" db:"id"`
	Name      *string  `json:"name,omitempty" db:"name"`
	City      string   `json:"city" db:"city"`
	Region    string   `json:"region" db:"region"`
	Country   string   `json:"country" db:"country"`
	Lat       *float64 `json:"lat,omitempty" db:"lat"`
	Lon       *float64 `json:"lon,omitempty" db:"lon"`
	CreatedAt string   `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt string   `json:"updated_at,omitempty" db:"updated_at"`
}
