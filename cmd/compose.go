package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/models"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// composeInput is the file read by compose and written by discover --reviews.
type composeInput struct {
	Keyword    string                     `json:"keyword"`
	TrendNames []string                   `json:"trend_names,omitempty"`
	Entries    []models.ReviewedCandidate `json:"entries"`
}

var composeCmd = &cobra.Command{
	Use:   "compose [candidates.json]",
	Short: "Render a post from a candidates file for offline preview",
	Long: "Reads {\"keyword\", \"trend_names\", \"entries\": [{candidate, review}]} as written by\n" +
		"`discover --reviews` and prints the title and the post HTML.",
	Args: cobra.ExactArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().String("out", "", "Write the HTML to this file instead of stdout")
	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "read candidates file")
	}
	var in composeInput
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrapf(err, "parse %s", args[0])
	}

	ctx := context.Background()
	composer := newComposer(buildHTTPClient())
	fromTrends := len(in.TrendNames) > 0

	desc, err := composer.Describe(ctx, banner.DescriptionInput{Keyword: in.Keyword, FromTrends: fromTrends, Names: in.TrendNames})
	if err != nil {
		return err
	}
	doc, err := composer.Compose(ctx, desc, in.Entries)
	if err != nil {
		return err
	}
	if len(doc.Blocks) == 0 {
		return errors.New("no entry had review content")
	}
	title, err := composer.ComposeTitle(ctx, banner.TitleRequest{
		Keyword:    in.Keyword,
		Count:      len(doc.Blocks),
		FromTrends: fromTrends,
		TrendNames: in.TrendNames,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), title.Text)
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), doc.HTML())
		return err
	}
	return errors.Wrap(os.WriteFile(out, []byte(doc.HTML()), 0o644), "write html")
}

func reviewAll(ctx context.Context, a *app, cands []models.ProductCandidate) []models.ReviewedCandidate {
	out := make([]models.ReviewedCandidate, 0, len(cands))
	for i, c := range cands {
		if i > 0 {
			if err := a.coupang.Pause(ctx); err != nil {
				break
			}
		}
		out = append(out, models.ReviewedCandidate{Candidate: c, Review: a.coupang.Aggregate(ctx, c)})
	}
	return out
}
