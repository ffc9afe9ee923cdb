package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	gamehub "github.com/sportsmo/gamehub-go"
)

var statusProbe bool

func init() {
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "negotiate with the hub to check the endpoint and token")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and hub reachability",
	Long:  "Display the effective hub endpoint and token, and optionally negotiate with the hub to check both.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		s := resolveSettings(cfg)

		fmt.Println("Configuration:")
		fmt.Printf("  Environment: %s\n", valueOrDefault(s.environment, "(not set)"))
		fmt.Printf("  Hub URL:     %s\n", s.endpoint())
		if s.token != "" {
			fmt.Printf("  Token:       %s\n", maskKey(s.token))
		} else {
			fmt.Println("  Token:       (not set)")
		}

		if !statusProbe {
			return nil
		}
		fmt.Println()
		fmt.Println("Hub:")
		if s.token == "" {
			fmt.Println("  Skipped: no token")
			return nil
		}

		client := gamehub.NewClient(s.token, s.clientOptions()...)
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		start := time.Now()
		resp, err := client.Negotiate(ctx)
		if err != nil {
			var negErr *gamehub.NegotiateError
			if errors.As(err, &negErr) && negErr.StatusCode == 401 {
				fmt.Println("  Token rejected (HTTP 401)")
				return nil
			}
			fmt.Printf("  Error negotiating: %v\n", err)
			return nil
		}

		fmt.Printf("  Negotiated in:  %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Connection ID:  %s\n", valueOrDefault(resp.ConnectionID, "(none)"))
		fmt.Printf("  Version:        %d\n", resp.NegotiateVersion)
		fmt.Printf("  WebSockets:     %t\n", resp.SupportsWebSockets())
		if resp.URL != "" {
			fmt.Printf("  Redirect:       %s\n", resp.URL)
		}
		return nil
	},
}
