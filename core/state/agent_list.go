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

package state

import (
	"sort"

	"github.com/sentinet/go-sentinet/core/types"
)

// agentList is an ascending, duplicate-free list of agent identities. It
// backs both the global registration index and the per-owner holdings so
// enumeration is deterministic and membership checks stay logarithmic.
type agentList []types.AgentID

// search returns the position id occupies, or would occupy, in the list.
func (l agentList) search(id types.AgentID) int {
	return sort.Search(len(l), func(i int) bool { return l[i] >= id })
}

func (l agentList) contains(id types.AgentID) bool {
	i := l.search(id)
	return i < len(l) && l[i] == id
}

// insert adds id at its sorted position. Inserting a present id is a no-op.
func (l agentList) insert(id types.AgentID) agentList {
	i := l.search(id)
	if i < len(l) && l[i] == id {
		return l
	}
	l = append(l, 0)
	copy(l[i+1:], l[i:])
	l[i] = id
	return l
}

// remove deletes id from the list. Removing an absent id is a no-op.
func (l agentList) remove(id types.AgentID) agentList {
	i := l.search(id)
	if i == len(l) || l[i] != id {
		return l
	}
	return append(l[:i], l[i+1:]...)
}

// copyList returns an independent copy for handing out to callers.
func (l agentList) copyList() []types.AgentID {
	if len(l) == 0 {
		return nil
	}
	cpy := make([]types.AgentID, len(l))
	copy(cpy, l)
	return cpy
}
