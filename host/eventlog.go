package host

import (
	"encoding/binary"
	"sort"
	"strings"

	"vaultix/core/state"
	"vaultix/core/types"
)

var (
	eventHeadKey   = []byte("host/events/head")
	eventRecordKey = []byte("host/events/record/")
)

// Attribute is one key/value pair of a persisted event. Records keep
// attributes as a sorted list so the RLP encoding is deterministic.
type Attribute struct {
	Key   string
	Value string
}

// Record is an event that was committed together with the state changes of
// the call that emitted it.
type Record struct {
	Sequence   uint64
	Type       string
	Attributes []Attribute
}

// Event converts the record back into the canonical event payload.
func (r Record) Event() *types.Event {
	attrs := make(map[string]string, len(r.Attributes))
	for _, attr := range r.Attributes {
		attrs[attr.Key] = attr.Value
	}
	return &types.Event{Type: r.Type, Attributes: attrs}
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(eventRecordKey)+8)
	copy(key, eventRecordKey)
	binary.BigEndian.PutUint64(key[len(eventRecordKey):], seq)
	return key
}

func newRecord(seq uint64, evt *types.Event) Record {
	attrs := make([]Attribute, 0, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs = append(attrs, Attribute{Key: k, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return Record{Sequence: seq, Type: evt.Type, Attributes: attrs}
}

// appendEvents stages evts after the current log head inside txn.
func appendEvents(txn *state.Txn, evts []*types.Event) ([]Record, error) {
	if len(evts) == 0 {
		return nil, nil
	}
	var head uint64
	if _, err := txn.Get(eventHeadKey, &head); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(evts))
	for _, evt := range evts {
		head++
		rec := newRecord(head, evt)
		if err := txn.Set(recordKey(head), rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := txn.Set(eventHeadKey, head); err != nil {
		return nil, err
	}
	return records, nil
}

// listEvents returns committed records with Sequence > after whose type starts
// with typePrefix, oldest first. limit <= 0 means no limit.
func listEvents(mgr *state.Manager, typePrefix string, after uint64, limit int) ([]Record, error) {
	var head uint64
	if _, err := mgr.KVGet(eventHeadKey, &head); err != nil {
		return nil, err
	}
	out := make([]Record, 0)
	for seq := after + 1; seq <= head; seq++ {
		var rec Record
		ok, err := mgr.KVGet(recordKey(seq), &rec)
		if err != nil {
			return nil, err
		}
		if !ok || !strings.HasPrefix(rec.Type, typePrefix) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
