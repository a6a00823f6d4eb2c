// Copyright 2021 The go-sentinet Authors
// This file is part of the go-sentinet library.
//
// The go-sentinet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-sentinet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-sentinet library. If not, see <http://www.gnu.org/licenses/>.

package rawdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/golang/snappy"
	log "github.com/inconshreveable/log15"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/sentdb"
)

// ReadEventHead retrieves the sequence number of the latest stored event,
// zero if none have been emitted.
func ReadEventHead(db sentdb.KeyValueReader) uint64 {
	data, _ := db.Get(eventHeadKey)
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// WriteEventHead stores the sequence number of the latest stored event.
func WriteEventHead(db sentdb.KeyValueWriter, seq uint64) error {
	return db.Put(eventHeadKey, encodeSeq(seq))
}

// ReadEvent retrieves a single event by sequence number, nil if unknown.
func ReadEvent(db sentdb.KeyValueReader, seq uint64) *types.Event {
	compressed, _ := db.Get(eventKey(seq))
	if len(compressed) == 0 {
		return nil
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		log.Error("Corrupt event record", "seq", seq, "err", err)
		return nil
	}
	event := new(types.Event)
	if err := json.Unmarshal(data, event); err != nil {
		log.Error("Invalid event record", "seq", seq, "err", err)
		return nil
	}
	return event
}

// WriteEvent stores a single event under its sequence number.
func WriteEvent(db sentdb.KeyValueWriter, event *types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return db.Put(eventKey(event.Seq), snappy.Encode(nil, data))
}

// WriteEvents stores a batch of events and advances the head pointer past
// the last of them.
func WriteEvents(db sentdb.KeyValueWriter, events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if err := WriteEvent(db, event); err != nil {
			return err
		}
	}
	return WriteEventHead(db, events[len(events)-1].Seq)
}

// ReadEvents retrieves up to count events starting at sequence number from.
// The scan stops early at the first gap.
func ReadEvents(db sentdb.KeyValueReader, from uint64, count uint64) []*types.Event {
	var events []*types.Event
	for seq := from; seq < from+count; seq++ {
		event := ReadEvent(db, seq)
		if event == nil {
			break
		}
		events = append(events, event)
	}
	return events
}
