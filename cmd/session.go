package cmd

import (
	"fmt"

	"github.com/lukman83/autopost/internal/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved browser sessions",
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved Coupang and Tistory sessions of the current account",
	RunE:  runSessionReset,
}

func init() {
	sessionCmd.AddCommand(sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionReset(cmd *cobra.Command, _ []string) error {
	store := session.NewStore(cfg.Browser.SessionDir)
	accounts := []string{cfg.SessionAccount()}
	if cfg.Tistory.Username != "" {
		accounts = append(accounts, "tistory:"+cfg.Tistory.Username)
	}
	for _, acct := range accounts {
		if err := store.Invalidate(acct); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s reset\n", acct)
	}
	return nil
}
