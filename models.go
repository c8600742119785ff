package tovala_bridge

import "time"

// OvenSnapshot is the normalized view of one oven, rebuilt on every poll
// cycle. RemainingSeconds is always computed locally from the estimated end
// time, never taken from the upstream payload.
type OvenSnapshot struct {
	State            string         `json:"state,omitempty"` // idle | cooking | preheating | warming | ready | unknown
	Barcode          string         `json:"barcode,omitempty"`
	EstimatedEndTime string         `json:"estimated_end_time,omitempty"` // RFC3339, as sent upstream
	RemainingSeconds int            `json:"remaining_seconds"`
	TemperatureC     *float64       `json:"temperature_c,omitempty"`
	Meal             *MealDetails   `json:"meal,omitempty"`
	Raw              map[string]any `json:"raw,omitempty"` // raw status payload
	UpdatedAt        time.Time      `json:"updated_at"`
}

// MealDetails is the catalog metadata for one meal, fetched once per distinct
// meal id and cached by the coordinator.
type MealDetails struct {
	ID          int         `json:"id,omitempty"`
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Ingredients any         `json:"ingredients,omitempty"`
	Images      []MealImage `json:"images,omitempty"`
}

// MealImage is a CDN image reference inside MealDetails.
type MealImage struct {
	URL string `json:"url"`
}

// Oven is one oven descriptor from the ovens list. The device id shows up
// either at the top level or nested under "tovala", depending on the account.
type Oven struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Tovala struct {
		ID string `json:"id,omitempty"`
	} `json:"tovala,omitempty"`
}

// DeviceID returns the usable oven id, wherever the API put it.
func (o Oven) DeviceID() string {
	if o.ID != "" {
		return o.ID
	}
	return o.Tovala.ID
}

// Recipe is one entry of the user's custom recipe catalog.
type Recipe struct {
	Title   string `json:"title"`
	Barcode string `json:"barcode"`
}

// CookRecord is one cooking-history entry, most recent first.
type CookRecord struct {
	Barcode   string `json:"barcode,omitempty"`
	MealID    int    `json:"meal_id,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Status    string `json:"status,omitempty"`
}

// OvenEvent is a single log entry in the local event log.
type OvenEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // TIMER_FINISHED | COOK_START | COOK_CANCEL | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// User is a local bridge account (for the bridge's own HTTP API, unrelated to
// the Tovala cloud account).
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
