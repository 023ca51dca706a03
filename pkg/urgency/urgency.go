// Package urgency scores how much unconsolidated change has accumulated
// since the last human consolidation pass.
//
// The score is an advisory heuristic. It tells the agent when to suggest a
// consolidation; nothing depends on it for correctness.
package urgency

import (
	"math"
)

// Level classifies a score.
type Level string

const (
	Normal Level = "NORMAL"
	Due    Level = "DUE"
	Urgent Level = "URGENT"
)

// Signal names one input of the score.
type Signal string

const (
	SignalTime         Signal = "time"
	SignalSessions     Signal = "sessions"
	SignalEntities     Signal = "entities"
	SignalRelations    Signal = "relations"
	SignalObservations Signal = "observations"
	SignalPins         Signal = "pins"
)

// Points per unit of each signal. Time is scored per 12 hours and
// observations per 5 new observations.
const (
	hoursPerPoint        = 12
	maxHours             = 1e9
	observationsPerPoint = 5

	weightTime         = 1
	weightSession      = 2
	weightEntity       = 2
	weightRelation     = 1
	weightObservations = 1
	weightPin          = 3
)

// Counts is the vector of store sizes compared against a snapshot.
type Counts struct {
	Entities     int `json:"entities"`
	Relations    int `json:"relations"`
	Observations int `json:"observations"`
	Pins         int `json:"pins"`
	Sessions     int `json:"sessions"`
}

// Thresholds are the score boundaries of DUE and URGENT.
type Thresholds struct {
	Due    int
	Urgent int
}

// DefaultThresholds returns the standard boundaries: DUE at 5, URGENT at 10.
func DefaultThresholds() Thresholds {
	return Thresholds{Due: 5, Urgent: 10}
}

// Reason explains the contribution of one signal.
type Reason struct {
	Signal Signal `json:"signal"`
	Delta  int    `json:"delta"`
	Points int    `json:"points"`
}

// Result is the outcome of scoring.
type Result struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Reasons []Reason `json:"reasons"`
}

// Score computes the urgency of current against the snapshot baseline after
// hoursElapsed. Negative deltas count as zero. Every signal contributing at
// least its own weight is listed as a reason.
func Score(current, snapshot Counts, hoursElapsed float64, th Thresholds) Result {
	hours := 0
	if hoursElapsed > 0 {
		hours = int(math.Floor(min(hoursElapsed, maxHours)))
	}

	type term struct {
		signal Signal
		delta  int
		points int
		weight int
	}

	sessions := delta(current.Sessions, snapshot.Sessions)
	entities := delta(current.Entities, snapshot.Entities)
	relations := delta(current.Relations, snapshot.Relations)
	observations := delta(current.Observations, snapshot.Observations)
	pins := delta(current.Pins, snapshot.Pins)

	terms := []term{
		{SignalTime, hours, hours / hoursPerPoint * weightTime, weightTime},
		{SignalSessions, sessions, sessions * weightSession, weightSession},
		{SignalEntities, entities, entities * weightEntity, weightEntity},
		{SignalRelations, relations, relations * weightRelation, weightRelation},
		{SignalObservations, observations, observations / observationsPerPoint * weightObservations, weightObservations},
		{SignalPins, pins, pins * weightPin, weightPin},
	}

	res := Result{Reasons: []Reason{}}
	for _, t := range terms {
		res.Score += t.points
		if t.points >= t.weight {
			res.Reasons = append(res.Reasons, Reason{Signal: t.signal, Delta: t.delta, Points: t.points})
		}
	}
	res.Level = Classify(res.Score, th)
	return res
}

// Classify maps a score onto a level.
func Classify(score int, th Thresholds) Level {
	switch {
	case score >= th.Urgent:
		return Urgent
	case score >= th.Due:
		return Due
	default:
		return Normal
	}
}

func delta(current, snapshot int) int {
	return max(0, current-snapshot)
}
