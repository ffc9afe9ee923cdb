package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/sportsmo/gamehub-go/notify"
	"github.com/sportsmo/gamehub-go/viewmodel"
)

// Hub methods the commands invoke.
const (
	MethodJoinUserToGame                  = "JoinUserToGame"
	MethodLeaveUserFromGame               = "LeaveUserFromGame"
	MethodJoinGame                        = "JoinGame"
	MethodLeaveGame                       = "LeaveGame"
	MethodJoinOpenChannelForLiveScore     = "JoinOpenChannelForLiveScore"
	MethodLeaveOpenChannelForLiveScore    = "LeaveOpenChannelForLiveScore"
	MethodJoinUserToWalletUpdationChannel = "JoinUserToWalletUpdationChannel"
)

// command describes one group operation: the method it invokes, the flag
// it drives and the text reported on success.
type command struct {
	method  string
	flag    viewmodel.Flag
	joins   bool
	success string
}

var (
	joinUserToGame    = command{MethodJoinUserToGame, viewmodel.FlagUserGame, true, "Joined user+game group"}
	leaveUserFromGame = command{MethodLeaveUserFromGame, viewmodel.FlagUserGame, false, "Left user+game group"}
	joinGame          = command{MethodJoinGame, viewmodel.FlagGame, true, "Joined game group"}
	leaveGame         = command{MethodLeaveGame, viewmodel.FlagGame, false, "Left game group"}
	joinOpenChannel   = command{MethodJoinOpenChannelForLiveScore, viewmodel.FlagOpenChannel, true, "Joined open channel for live scores"}
	leaveOpenChannel  = command{MethodLeaveOpenChannelForLiveScore, viewmodel.FlagOpenChannel, false, "Left open channel for live scores"}
	joinWallet        = command{MethodJoinUserToWalletUpdationChannel, viewmodel.FlagNone, true, "Joined wallet update channel"}
)

const (
	msgNeedUserAndGame = "Please enter both User ID and Game ID."
	msgNeedGame        = "Please enter a Game ID."
	msgNeedUser        = "Please enter a User ID."
	msgNeedConnection  = "Connect to the hub first."
)

// JoinUserToGame joins the group for one user's view of one game.
func (s *Session) JoinUserToGame(ctx context.Context, userID, gameID string) error {
	return s.userGame(ctx, joinUserToGame, userID, gameID)
}

// LeaveUserFromGame leaves the user+game group.
func (s *Session) LeaveUserFromGame(ctx context.Context, userID, gameID string) error {
	return s.userGame(ctx, leaveUserFromGame, userID, gameID)
}

// JoinGame joins the group for every event of one game.
func (s *Session) JoinGame(ctx context.Context, gameID string) error {
	return s.game(ctx, joinGame, gameID)
}

// LeaveGame leaves the game group.
func (s *Session) LeaveGame(ctx context.Context, gameID string) error {
	return s.game(ctx, leaveGame, gameID)
}

// JoinOpenChannelForLiveScore joins the global live-score channel.
func (s *Session) JoinOpenChannelForLiveScore(ctx context.Context) error {
	return s.run(ctx, joinOpenChannel)
}

// LeaveOpenChannelForLiveScore leaves the global live-score channel.
func (s *Session) LeaveOpenChannelForLiveScore(ctx context.Context) error {
	return s.run(ctx, leaveOpenChannel)
}

// JoinUserToWalletUpdationChannel subscribes to a user's wallet balance
// updates. It has no join flag.
func (s *Session) JoinUserToWalletUpdationChannel(ctx context.Context, userID string) error {
	if s.currentHub() == nil {
		return s.invalid(msgNeedConnection)
	}
	if blank(userID) {
		return s.invalid(msgNeedUser)
	}
	user, err := s.parseID("User ID", userID)
	if err != nil {
		return err
	}
	return s.run(ctx, joinWallet, user)
}

func (s *Session) userGame(ctx context.Context, c command, userID, gameID string) error {
	if blank(userID) || blank(gameID) {
		return s.invalid(msgNeedUserAndGame)
	}
	user, err := s.parseID("User ID", userID)
	if err != nil {
		return err
	}
	game, err := s.parseID("Game ID", gameID)
	if err != nil {
		return err
	}
	return s.run(ctx, c, user, game)
}

func (s *Session) game(ctx context.Context, c command, gameID string) error {
	if blank(gameID) {
		return s.invalid(msgNeedGame)
	}
	game, err := s.parseID("Game ID", gameID)
	if err != nil {
		return err
	}
	return s.run(ctx, c, game)
}

// run invokes c and records the outcome: the flag, one message-log line
// and a toast. A failed join clears its flag; a failed leave keeps it.
func (s *Session) run(ctx context.Context, c command, args ...any) error {
	hub := s.currentHub()
	if hub == nil {
		return s.invalid(msgNeedConnection)
	}

	if _, err := hub.Invoke(ctx, c.method, args...); err != nil {
		ierr := &InvocationError{Method: c.method, Err: err}
		s.store.Update(func(vm viewmodel.ViewModel) viewmodel.ViewModel {
			if c.flag != viewmodel.FlagNone && c.joins {
				vm = vm.SetFlag(c.flag, false)
			}
			return vm.AppendLog(ierr.Error())
		})
		s.log.Error().Err(err).Str("method", c.method).Interface("args", args).Msg("hub invocation failed")
		s.toaster.Show(ierr.Error(), notify.Error)
		return ierr
	}

	s.store.Update(func(vm viewmodel.ViewModel) viewmodel.ViewModel {
		if c.flag != viewmodel.FlagNone {
			vm = vm.SetFlag(c.flag, c.joins)
		}
		return vm.AppendLog(c.success)
	})
	s.log.Info().Str("method", c.method).Interface("args", args).Msg(c.success)
	s.toaster.Show(c.success, notify.Success)
	return nil
}

// parseID converts user-entered text to a numeric id. Non-numeric input
// fails validation instead of being forwarded.
func (s *Session) parseID(label, value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, s.invalid(label + " must be a whole number.")
	}
	return id, nil
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
