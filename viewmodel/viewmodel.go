// Package viewmodel holds the live view model mirrored from the game hub
// and the table of pure rules that fold pushed events into it.
package viewmodel

import (
	"sync"

	"github.com/sportsmo/gamehub-go/feed"
)

// Flag names one of the group-membership flags.
type Flag int

const (
	FlagNone Flag = iota
	FlagUserGame
	FlagGame
	FlagOpenChannel
)

func (f Flag) String() string {
	switch f {
	case FlagUserGame:
		return "user+game"
	case FlagGame:
		return "game"
	case FlagOpenChannel:
		return "open channel"
	default:
		return "none"
	}
}

// JoinFlags is the last known group membership. Only command outcomes
// change it, never pushed events.
type JoinFlags struct {
	UserGameJoined    bool
	GameJoined        bool
	OpenChannelJoined bool
}

func (j JoinFlags) Get(f Flag) bool {
	switch f {
	case FlagUserGame:
		return j.UserGameJoined
	case FlagGame:
		return j.GameJoined
	case FlagOpenChannel:
		return j.OpenChannelJoined
	default:
		return false
	}
}

func (j JoinFlags) With(f Flag, v bool) JoinFlags {
	switch f {
	case FlagUserGame:
		j.UserGameJoined = v
	case FlagGame:
		j.GameJoined = v
	case FlagOpenChannel:
		j.OpenChannelJoined = v
	}
	return j
}

// ViewModel is the whole client-side state. Values are treated as
// immutable: every transition returns a new ViewModel, and no transition
// writes inside the length of a slice an earlier value can see.
//
// MessageLog and the open channel scores grow by appending into a backing
// array shared along a run of transitions, so each append is amortized
// O(1). Appending to a value that is no longer the newest copies first.
type ViewModel struct {
	LiveGame       []feed.Snapshot[feed.Drive]
	LiveScore      *feed.Snapshot[feed.LiveScore]
	VirtualField   *feed.Snapshot[feed.VirtualField]
	TotalDonations *feed.Snapshot[feed.TotalDonations]
	WalletBalance  *feed.Snapshot[float64]
	MessageLog     []string
	Flags          JoinFlags

	// openScores is oldest first; OpenChannelScores reverses it.
	openScores []feed.Snapshot[feed.LiveScore]
	openGrowth *growth
	logGrowth  *growth
}

// AppendLog returns vm with line added to the message log.
func (vm ViewModel) AppendLog(line string) ViewModel {
	vm.MessageLog, vm.logGrowth = appendShared(vm.MessageLog, vm.logGrowth, line)
	return vm
}

// AddOpenChannelScore returns vm with s as the newest open channel score.
func (vm ViewModel) AddOpenChannelScore(s feed.Snapshot[feed.LiveScore]) ViewModel {
	vm.openScores, vm.openGrowth = appendShared(vm.openScores, vm.openGrowth, s)
	return vm
}

// OpenChannelScores returns every open channel score received, newest
// first. The result is a fresh slice, O(n) per call.
func (vm ViewModel) OpenChannelScores() []feed.Snapshot[feed.LiveScore] {
	out := make([]feed.Snapshot[feed.LiveScore], len(vm.openScores))
	for i, s := range vm.openScores {
		out[len(out)-1-i] = s
	}
	return out
}

// SetFlag returns vm with one join flag set.
func (vm ViewModel) SetFlag(f Flag, v bool) ViewModel {
	vm.Flags = vm.Flags.With(f, v)
	return vm
}

// growth records how far a shared backing array has been filled. Every
// view model slicing the same array carries the same growth.
type growth struct {
	mu   sync.Mutex
	base any // &array[0]
	n    int
}

// appendShared appends v to items. If items ends exactly where the shared
// array is filled to, v is written in place past the length any earlier
// value can see. Otherwise items is copied into a fresh array with room
// to double.
func appendShared[T any](items []T, g *growth, v T) ([]T, *growth) {
	n := len(items)
	if g != nil && n < cap(items) {
		g.mu.Lock()
		owned := g.n == n && g.base == any(&items[:1][0])
		if owned {
			g.n++
		}
		g.mu.Unlock()
		if owned {
			return append(items, v), g
		}
	}
	grown := make([]T, n, max(2*n, 8))
	copy(grown, items)
	grown = append(grown, v)
	return grown, &growth{base: &grown[0], n: n + 1}
}
