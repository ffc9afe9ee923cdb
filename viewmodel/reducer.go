package viewmodel

import (
	"encoding/json"
	"fmt"

	"github.com/sportsmo/gamehub-go/feed"
	"github.com/sportsmo/gamehub-go/notify"
)

// Events pushed by the hub.
const (
	EventLiveGame       = "ReceiveLiveGame"
	EventLiveScore      = "ReceiveLiveScore"
	EventVirtualField   = "ReceiveVirtualField"
	EventTotalDonations = "ReceiveTotalDonations"
	EventQuarter        = "ReceiveQuarter"
	EventOpenLiveScore  = "ReceiveOpenLiveScore"
	EventUpdatedBalance = "ReceiveUpdatedBalance"
)

// Notice is a notification a rule asks the caller to surface.
type Notice struct {
	Message  string
	Severity notify.Severity
}

// Rule folds one pushed event into the view model.
type Rule struct {
	Event     string
	LogPrefix string
	Apply     func(vm ViewModel, payload json.RawMessage) ViewModel
	Notify    func(payload json.RawMessage) *Notice
}

var rules = []Rule{
	{
		Event:     EventLiveGame,
		LogPrefix: "LiveGame",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			vm.LiveGame = NormalizeDrives(payload)
			return vm
		},
	},
	{
		Event:     EventLiveScore,
		LogPrefix: "LiveScore",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			s := feed.Decode[feed.LiveScore](payload)
			vm.LiveScore = &s
			return vm
		},
	},
	{
		Event:     EventVirtualField,
		LogPrefix: "VirtualField",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			s := feed.Decode[feed.VirtualField](payload)
			vm.VirtualField = &s
			return vm
		},
	},
	{
		Event:     EventTotalDonations,
		LogPrefix: "TotalDonations",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			s := feed.Decode[feed.TotalDonations](payload)
			vm.TotalDonations = &s
			return vm
		},
	},
	{
		Event:     EventQuarter,
		LogPrefix: "Quarter",
		Apply:     func(vm ViewModel, _ json.RawMessage) ViewModel { return vm },
	},
	{
		Event:     EventOpenLiveScore,
		LogPrefix: "OpenChannelLiveScore",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			return vm.AddOpenChannelScore(feed.Decode[feed.LiveScore](payload))
		},
	},
	{
		Event:     EventUpdatedBalance,
		LogPrefix: "UpdatedBalance",
		Apply: func(vm ViewModel, payload json.RawMessage) ViewModel {
			s := feed.Decode[float64](payload)
			vm.WalletBalance = &s
			return vm
		},
		Notify: func(payload json.RawMessage) *Notice {
			return &Notice{
				Message:  "Wallet balance updated: " + string(feed.Compact(payload)),
				Severity: notify.Success,
			}
		},
	},
}

var rulesByEvent = func() map[string]Rule {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[r.Event] = r
	}
	return m
}()

// Events lists every event name the reducer recognizes, in table order.
func Events() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Event
	}
	return names
}

// Lookup returns the rule for an event.
func Lookup(event string) (Rule, bool) {
	r, ok := rulesByEvent[event]
	return r, ok
}

// Reduce applies one pushed event to vm. It always appends the compact
// payload to the message log, including for unknown events, and never
// rejects a payload.
func Reduce(vm ViewModel, event string, payload json.RawMessage) (ViewModel, *Notice) {
	rule, ok := rulesByEvent[event]
	if !ok {
		return vm.AppendLog(fmt.Sprintf("%s: %s", event, feed.Compact(payload))), nil
	}

	next := rule.Apply(vm, payload)
	next = next.AppendLog(fmt.Sprintf("%s: %s", rule.LogPrefix, feed.Compact(payload)))

	var notice *Notice
	if rule.Notify != nil {
		notice = rule.Notify(payload)
	}
	return next, notice
}

// NormalizeDrives turns a live game payload into a drive list: an array
// is kept element for element, a single drive becomes a one-element list,
// and an absent payload becomes an empty list.
func NormalizeDrives(payload json.RawMessage) []feed.Snapshot[feed.Drive] {
	if feed.IsAbsent(payload) {
		return []feed.Snapshot[feed.Drive]{}
	}
	if !feed.IsArray(payload) {
		return []feed.Snapshot[feed.Drive]{feed.Decode[feed.Drive](payload)}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return []feed.Snapshot[feed.Drive]{feed.Decode[feed.Drive](payload)}
	}
	drives := make([]feed.Snapshot[feed.Drive], len(items))
	for i, item := range items {
		drives[i] = feed.Decode[feed.Drive](item)
	}
	return drives
}
