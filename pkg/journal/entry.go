package journal

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"
)

// Op is the kind of change recorded by an entry.
type Op string

const (
	OpAddRelation    Op = "add_relation"
	OpRemoveRelation Op = "remove_relation"
	OpAddEntity      Op = "add_entity"
	OpAddObservation Op = "add_observation"
)

// Valid reports whether op is a known operation.
func (op Op) Valid() bool {
	switch op {
	case OpAddRelation, OpRemoveRelation, OpAddEntity, OpAddObservation:
		return true
	}
	return false
}

// Entry is one immutable line of a machine's journal.
type Entry struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Machine   string          `json:"machine"`
	Op        Op              `json:"op"`
	Data      json.RawMessage `json:"data"`
	Checksum  uint32          `json:"checksum"`
}

// Relation is the payload of add_relation and remove_relation.
type Relation struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

// EntityPayload is the payload of add_entity.
type EntityPayload struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ObservationPayload is the payload of add_observation.
type ObservationPayload struct {
	Entity string `json:"entity"`
	Text   string `json:"text"`
}

func newEntry(op Op, payload any) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding %s payload: %w", op, err)
	}
	return Entry{Op: op, Data: data}, nil
}

// AddRelation builds an add_relation entry.
func AddRelation(from, relType, to string) (Entry, error) {
	return newEntry(OpAddRelation, Relation{From: from, Type: relType, To: to})
}

// RemoveRelation builds a remove_relation entry.
func RemoveRelation(from, relType, to string) (Entry, error) {
	return newEntry(OpRemoveRelation, Relation{From: from, Type: relType, To: to})
}

// AddEntity builds an add_entity entry.
func AddEntity(name, kind string) (Entry, error) {
	return newEntry(OpAddEntity, EntityPayload{Name: name, Kind: kind})
}

// AddObservation builds an add_observation entry.
func AddObservation(entityName, text string) (Entry, error) {
	return newEntry(OpAddObservation, ObservationPayload{Entity: entityName, Text: text})
}

// Relation decodes a relation payload.
func (e Entry) Relation() (Relation, error) {
	var r Relation
	if e.Op != OpAddRelation && e.Op != OpRemoveRelation {
		return r, fmt.Errorf("entry %d is %s, not a relation op", e.Seq, e.Op)
	}
	if err := json.Unmarshal(e.Data, &r); err != nil {
		return r, fmt.Errorf("decoding relation payload: %w", err)
	}
	return r, nil
}

// Entity decodes an add_entity payload.
func (e Entry) Entity() (EntityPayload, error) {
	var p EntityPayload
	if e.Op != OpAddEntity {
		return p, fmt.Errorf("entry %d is %s, not %s", e.Seq, e.Op, OpAddEntity)
	}
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decoding entity payload: %w", err)
	}
	return p, nil
}

// Observation decodes an add_observation payload.
func (e Entry) Observation() (ObservationPayload, error) {
	var p ObservationPayload
	if e.Op != OpAddObservation {
		return p, fmt.Errorf("entry %d is %s, not %s", e.Seq, e.Op, OpAddObservation)
	}
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decoding observation payload: %w", err)
	}
	return p, nil
}

func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Less orders entries by timestamp, then machine id, then sequence number.
func Less(a, b Entry) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.Machine < b.Machine:
		return -1
	case a.Machine > b.Machine:
		return 1
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}
