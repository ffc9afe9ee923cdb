package viewmodel

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDispatch(t *testing.T) {
	s := NewStore()

	var seen []int
	s.Subscribe(func(vm ViewModel) { seen = append(seen, len(vm.MessageLog)) })

	assert.Nil(t, s.Dispatch(EventLiveScore, raw(`{"gameId":1}`)))
	notice := s.Dispatch(EventUpdatedBalance, raw(`10`))
	require.NotNil(t, notice)
	assert.Equal(t, "Wallet balance updated: 10", notice.Message)

	vm := s.Snapshot()
	assert.Len(t, vm.MessageLog, 2)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore()
	s.Update(func(vm ViewModel) ViewModel {
		return vm.SetFlag(FlagOpenChannel, true).AppendLog("Joined open channel for live scores")
	})

	vm := s.Snapshot()
	assert.True(t, vm.Flags.OpenChannelJoined)
	assert.Equal(t, []string{"Joined open channel for live scores"}, vm.MessageLog)
}

func TestStoreConcurrentTransitions(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Dispatch(EventOpenLiveScore, raw(fmt.Sprintf(`{"gameId":%d}`, i)))
		}(i)
	}
	wg.Wait()

	vm := s.Snapshot()
	assert.Len(t, vm.OpenChannelScores(), 50)
	assert.Len(t, vm.MessageLog, 50)
}
