package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sportsmo/gamehub-go/notify"
	"github.com/sportsmo/gamehub-go/session"
	"github.com/sportsmo/gamehub-go/viewmodel"
)

var (
	watchUser   string
	watchGame   string
	watchOpen   bool
	watchWallet bool
)

func init() {
	watchCmd.Flags().StringVar(&watchUser, "user", "", "user ID (joins the user+game group with --game)")
	watchCmd.Flags().StringVar(&watchGame, "game", "", "game ID to follow")
	watchCmd.Flags().BoolVar(&watchOpen, "open", false, "join the open channel for every live score")
	watchCmd.Flags().BoolVar(&watchWallet, "wallet", false, "join the wallet update channel for --user")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and stream hub messages to the terminal",
	Long: "Connect to the hub, join the requested groups and print every message-log line and\n" +
		"notification until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess := newSession(s)
		printed := 0
		sess.Store().Subscribe(func(vm viewmodel.ViewModel) {
			for ; printed < len(vm.MessageLog); printed++ {
				fmt.Println(vm.MessageLog[printed])
			}
		})
		sess.Toaster().OnChange(func(t *notify.Toast) {
			if t != nil {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", t.Severity, t.Message)
			}
		})

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = sess.Connect(connectCtx, s.token)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sess.Disconnect(stopCtx); err != nil {
				log.Warn().Err(err).Msg("disconnect failed")
			}
		}()

		if err := joinRequested(ctx, sess); err != nil {
			return err
		}

		log.Info().Msg("watching, press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	},
}

// joinRequested joins the groups named by the watch flags. Invocation
// failures are already reported as notifications; bad input stops the
// command.
func joinRequested(ctx context.Context, sess *session.Session) error {
	var errs []error
	if watchGame != "" {
		if watchUser != "" {
			errs = append(errs, sess.JoinUserToGame(ctx, watchUser, watchGame))
		}
		errs = append(errs, sess.JoinGame(ctx, watchGame))
	}
	if watchOpen {
		errs = append(errs, sess.JoinOpenChannelForLiveScore(ctx))
	}
	if watchWallet {
		errs = append(errs, sess.JoinUserToWalletUpdationChannel(ctx, watchUser))
	}
	for _, err := range errs {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			return err
		}
	}
	return nil
}
