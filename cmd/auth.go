package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/lukman83/autopost/internal/platform/blogger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Bootstrap platform credentials",
}

var authBloggerCmd = &cobra.Command{
	Use:   "blogger",
	Short: "Authorize Blogger and save the OAuth token to $BLOGGER_TOKEN_FILE",
	RunE:  runAuthBlogger,
}

var blogsCmd = &cobra.Command{
	Use:   "blogs",
	Short: "List the Blogger blogs of the authorized account",
	RunE:  runBlogs,
}

func init() {
	authBloggerCmd.Flags().String("code", "", "Authorization code (prompted for when empty)")
	authCmd.AddCommand(authBloggerCmd)
	rootCmd.AddCommand(authCmd, blogsCmd)
}

func runAuthBlogger(cmd *cobra.Command, _ []string) error {
	conf, err := blogger.OAuthConfig(cfg.Blogger)
	if err != nil {
		return err
	}

	code, _ := cmd.Flags().GetString("code")
	if code == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Open this URL, approve access and paste the code:\n\n%s\n\ncode: ",
			conf.AuthCodeURL("autopost", oauth2.AccessTypeOffline))
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read authorization code")
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return errors.New("authorization code is empty")
	}

	if err := blogger.Exchange(context.Background(), cfg.Blogger, code); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", cfg.Blogger.TokenFile)
	return nil
}

func runBlogs(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	blogs, err := blogger.New(cfg.Blogger).ListBlogs(ctx)
	if err != nil {
		return err
	}
	for _, b := range blogs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", b.ID, b.Name, b.URL)
	}
	return nil
}
