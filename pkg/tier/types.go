package tier

import (
	"fmt"
	"strings"
	"time"
)

// Tier names a retention level.
type Tier string

const (
	Hot  Tier = "hot"
	Warm Tier = "warm"
	Cold Tier = "cold"
	Core Tier = "core"
)

// All lists the tiers from most to least recent, then pinned.
var All = []Tier{Hot, Warm, Cold, Core}

// Parse converts a user supplied tier name. "pinned" is accepted for Core.
func Parse(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hot":
		return Hot, nil
	case "warm":
		return Warm, nil
	case "cold":
		return Cold, nil
	case "core", "pinned":
		return Core, nil
	}
	return "", fmt.Errorf("unknown tier %q (available: hot, warm, cold, core)", s)
}

// Session is the record of one conversational session.
type Session struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Machine   string    `json:"machine,omitempty"`
	Title     string    `json:"title"`
	Narrative string    `json:"narrative"`
	Learned   []string  `json:"learned,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`
}

// Pin is a memory kept indefinitely in the CORE tier.
type Pin struct {
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	Reason   string    `json:"reason,omitempty"`
	Machine  string    `json:"machine,omitempty"`
	PinnedAt time.Time `json:"pinned_at"`
}

// PinResult reports the outcome of a pin request. A pin whose title already
// exists is not an error.
type PinResult struct {
	Pin           Pin  `json:"pin"`
	AlreadyPinned bool `json:"already_pinned"`
}

// SessionInput is what a caller supplies at the end of a session.
type SessionInput struct {
	Narrative string
	Learned   []string
	Pin       bool
	PinTitle  string
	PinReason string
}

// Eviction describes one session moved out of HOT.
type Eviction struct {
	Session  Session `json:"session"`
	WarmLine string  `json:"warm_line"`
	Bucket   string  `json:"bucket"`
}

// Contents holds the records of the requested tiers.
type Contents struct {
	Hot  []Session `json:"hot,omitempty"`
	Warm []string  `json:"warm,omitempty"`
	Cold []Session `json:"cold,omitempty"`
	Core []Pin     `json:"core,omitempty"`
}

// Stats counts records per tier.
type Stats struct {
	Hot         int `json:"hot"`
	Warm        int `json:"warm"`
	Cold        int `json:"cold"`
	ColdBuckets int `json:"cold_buckets"`
	Core        int `json:"core"`
}

// Sessions is the number of sessions still held as full records.
func (s Stats) Sessions() int {
	return s.Hot + s.Cold
}
