package viewmodel

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsmo/gamehub-go/notify"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestEvents(t *testing.T) {
	assert.Equal(t, []string{
		EventLiveGame,
		EventLiveScore,
		EventVirtualField,
		EventTotalDonations,
		EventQuarter,
		EventOpenLiveScore,
		EventUpdatedBalance,
	}, Events())

	for _, e := range Events() {
		r, ok := Lookup(e)
		require.True(t, ok, e)
		assert.NotEmpty(t, r.LogPrefix)
		assert.NotNil(t, r.Apply)
	}
	_, ok := Lookup("ReceiveNothing")
	assert.False(t, ok)
}

func TestNormalizeDrives(t *testing.T) {
	t.Run("single drive", func(t *testing.T) {
		drives := NormalizeDrives(raw(`{"driveId":3,"gameId":42,"plays":[{"id":1}]}`))
		require.Len(t, drives, 1)
		assert.True(t, drives[0].Valid)
		assert.Equal(t, 3, drives[0].Value.DriveID)
		assert.Len(t, drives[0].Value.Plays, 1)
	})

	t.Run("array kept in order", func(t *testing.T) {
		drives := NormalizeDrives(raw(`[{"driveId":1},{"driveId":2}]`))
		require.Len(t, drives, 2)
		assert.Equal(t, 1, drives[0].Value.DriveID)
		assert.Equal(t, 2, drives[1].Value.DriveID)
	})

	t.Run("absent", func(t *testing.T) {
		assert.Empty(t, NormalizeDrives(nil))
		assert.NotNil(t, NormalizeDrives(raw("null")))
	})

	t.Run("malformed element kept raw", func(t *testing.T) {
		drives := NormalizeDrives(raw(`[{"driveId":1},"oops"]`))
		require.Len(t, drives, 2)
		assert.False(t, drives[1].Valid)
		assert.Equal(t, `"oops"`, drives[1].String())
	})
}

func TestReduceLiveGame(t *testing.T) {
	vm, notice := Reduce(ViewModel{}, EventLiveGame, raw(`{ "driveId": 3 }`))
	assert.Nil(t, notice)
	require.Len(t, vm.LiveGame, 1)
	assert.Equal(t, []string{`LiveGame: {"driveId":3}`}, vm.MessageLog)

	vm, _ = Reduce(vm, EventLiveGame, raw(`null`))
	assert.Empty(t, vm.LiveGame)
	assert.Equal(t, "LiveGame: null", vm.MessageLog[1])
}

func TestReduceSnapshots(t *testing.T) {
	vm, _ := Reduce(ViewModel{}, EventLiveScore, raw(`{"gameId":42,"homeTeamScore":14}`))
	require.NotNil(t, vm.LiveScore)
	assert.Equal(t, 14, *vm.LiveScore.Value.HomeTeamScore)

	vm, _ = Reduce(vm, EventVirtualField, raw(`{"ballOnAbb":"KC","ballOnYards":20}`))
	require.NotNil(t, vm.VirtualField)
	assert.Equal(t, "KC", *vm.VirtualField.Value.BallOnAbb)

	vm, _ = Reduce(vm, EventTotalDonations, raw(`{"gameId":42,"totalTeamDonations":[{"teamId":1,"totalDonations":10}]}`))
	require.NotNil(t, vm.TotalDonations)
	assert.Len(t, vm.TotalDonations.Value.TotalTeamDonations, 1)

	assert.Equal(t, []string{
		`LiveScore: {"gameId":42,"homeTeamScore":14}`,
		`VirtualField: {"ballOnAbb":"KC","ballOnYards":20}`,
		`TotalDonations: {"gameId":42,"totalTeamDonations":[{"teamId":1,"totalDonations":10}]}`,
	}, vm.MessageLog)
}

func TestReduceQuarterOnlyLogs(t *testing.T) {
	before := ViewModel{Flags: JoinFlags{GameJoined: true}}
	after, notice := Reduce(before, EventQuarter, raw(`{"quarter":3}`))
	assert.Nil(t, notice)
	assert.Equal(t, []string{`Quarter: {"quarter":3}`}, after.MessageLog)

	after.MessageLog, after.logGrowth = nil, nil
	assert.Equal(t, before, after)
}

func TestReduceOpenLiveScorePrepends(t *testing.T) {
	vm, _ := Reduce(ViewModel{}, EventOpenLiveScore, raw(`{"gameId":1}`))
	vm, _ = Reduce(vm, EventOpenLiveScore, raw(`{"gameId":2}`))
	vm, _ = Reduce(vm, EventOpenLiveScore, raw(`{"gameId":2}`))

	scores := vm.OpenChannelScores()
	require.Len(t, scores, 3)
	assert.Equal(t, `{"gameId":2}`, scores[0].String())
	assert.Equal(t, `{"gameId":2}`, scores[1].String())
	assert.Equal(t, `{"gameId":1}`, scores[2].String())
	assert.Equal(t, `OpenChannelLiveScore: {"gameId":1}`, vm.MessageLog[0])
}

func TestReduceUpdatedBalance(t *testing.T) {
	vm, notice := Reduce(ViewModel{}, EventUpdatedBalance, raw(`125.5`))
	require.NotNil(t, vm.WalletBalance)
	assert.True(t, vm.WalletBalance.Valid)
	assert.Equal(t, 125.5, vm.WalletBalance.Value)
	assert.Equal(t, &Notice{Message: "Wallet balance updated: 125.5", Severity: notify.Success}, notice)
	assert.Equal(t, []string{"UpdatedBalance: 125.5"}, vm.MessageLog)

	vm, notice = Reduce(vm, EventUpdatedBalance, raw(`{"balance":3}`))
	assert.False(t, vm.WalletBalance.Valid)
	assert.Equal(t, `Wallet balance updated: {"balance":3}`, notice.Message)
}

func TestReduceMalformedPayloads(t *testing.T) {
	for _, e := range Events() {
		t.Run(e, func(t *testing.T) {
			assert.NotPanics(t, func() {
				vm, _ := Reduce(ViewModel{}, e, raw(`{not json`))
				require.Len(t, vm.MessageLog, 1)
				assert.Contains(t, vm.MessageLog[0], `{not json`)
			})
		})
	}
}

func TestReduceUnknownEvent(t *testing.T) {
	vm, notice := Reduce(ViewModel{}, "ReceiveSomethingNew", raw(`[1]`))
	assert.Nil(t, notice)
	assert.Equal(t, []string{"ReceiveSomethingNew: [1]"}, vm.MessageLog)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	log := make([]string, 1, 8)
	log[0] = "first"
	before := ViewModel{MessageLog: log}

	a, _ := Reduce(before, EventQuarter, raw(`1`))
	b, _ := Reduce(before, EventQuarter, raw(`2`))

	assert.Equal(t, []string{"first"}, before.MessageLog)
	assert.Equal(t, "Quarter: 1", a.MessageLog[1])
	assert.Equal(t, "Quarter: 2", b.MessageLog[1])

	scores, _ := Reduce(ViewModel{}, EventOpenLiveScore, raw(`{"gameId":1}`))
	more, _ := Reduce(scores, EventOpenLiveScore, raw(`{"gameId":2}`))
	other, _ := Reduce(scores, EventOpenLiveScore, raw(`{"gameId":3}`))
	require.Len(t, scores.OpenChannelScores(), 1)
	assert.Equal(t, `{"gameId":1}`, scores.OpenChannelScores()[0].String())
	assert.Equal(t, `{"gameId":2}`, more.OpenChannelScores()[0].String())
	assert.Equal(t, `{"gameId":3}`, other.OpenChannelScores()[0].String())
	assert.Len(t, more.OpenChannelScores(), 2)
}

func TestAppendLogReusesBackingArray(t *testing.T) {
	vm := ViewModel{}
	for i := 0; i < 100; i++ {
		vm = vm.AppendLog(fmt.Sprintf("line %d", i))
	}
	first := &vm.MessageLog[0]

	next := vm
	for i := 0; i < cap(vm.MessageLog)-len(vm.MessageLog); i++ {
		next = next.AppendLog("more")
	}
	assert.Same(t, first, &next.MessageLog[0], "appends within capacity reuse the array")
	assert.Len(t, vm.MessageLog, 100)

	// vm is no longer the newest value, so appending to it copies.
	branch := vm.AppendLog("branch")
	assert.NotSame(t, first, &branch.MessageLog[0])
	assert.Equal(t, "branch", branch.MessageLog[100])
	require.Greater(t, len(next.MessageLog), 100)
	assert.Equal(t, "more", next.MessageLog[100])
}

func TestAppendLogReplacedSliceCopies(t *testing.T) {
	vm := ViewModel{}.AppendLog("a")
	shared := vm.MessageLog

	mine := make([]string, 1, 4)
	mine[0] = "mine"
	vm.MessageLog = mine
	vm = vm.AppendLog("b")

	assert.Equal(t, []string{"a"}, shared)
	assert.Equal(t, []string{"mine", "b"}, vm.MessageLog)
	assert.Equal(t, "", mine[:2][1])
}

func TestJoinFlags(t *testing.T) {
	var f JoinFlags
	f = f.With(FlagGame, true)
	assert.True(t, f.Get(FlagGame))
	assert.False(t, f.Get(FlagUserGame))
	assert.Equal(t, f, f.With(FlagNone, true))
	assert.Equal(t, "open channel", FlagOpenChannel.String())
}
