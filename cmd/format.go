package cmd

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lukman83/autopost/internal/banner"
	"github.com/lukman83/autopost/internal/models"
	"github.com/lukman83/autopost/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCandidatesTable prints candidates in a card layout.
func printCandidatesTable(w io.Writer, cands []models.ProductCandidate) {
	for i, c := range cands {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, truncate(c.Name, 70))

		c = models.NewProductCandidate(c)
		priceLine := "    Price: " + banner.FormatPrice(c.SalePrice) + "원"
		if c.OriginPrice > c.SalePrice && c.OriginPrice > 0 {
			off := (c.OriginPrice - c.SalePrice) * 100 / c.OriginPrice
			priceLine += fmt.Sprintf("  (was %s원, -%d%%)", banner.FormatPrice(c.OriginPrice), off)
		}
		fmt.Fprintln(w, priceLine)
		fmt.Fprintf(w, "    Product: %d / %d\n", c.ProductID, c.VendorItemID)
		fmt.Fprintf(w, "    %s\n", cleanURL(c.AffiliateURL))
	}
}

func printReport(w io.Writer, rep *pipeline.Report, format string) {
	if format == "json" {
		_ = printJSON(w, rep)
		return
	}
	fmt.Fprintf(w, "Run %s\n", rep.RunID)
	for _, o := range rep.Outcomes {
		line := fmt.Sprintf("  ✓ [%s] %s", o.State, truncate(o.Title, 60))
		if o.PublishAt != nil {
			line += "  at " + o.PublishAt.Local().Format("2006-01-02 15:04")
		}
		if o.Post != nil && o.Post.URL != "" {
			line += "\n      " + o.Post.URL
		}
		fmt.Fprintln(w, line)
	}
	if len(rep.DiscoveryFailures) > 0 {
		fmt.Fprintf(w, "  ✗ discovery: %s\n", strings.Join(rep.DiscoveryFailures, ", "))
	}
	if len(rep.PublishFailures) > 0 {
		fmt.Fprintf(w, "  ✗ publish:   %s\n", strings.Join(rep.PublishFailures, ", "))
	}
	fmt.Fprintf(w, "%d published, %d failed\n", len(rep.Successes), len(rep.Failures))
}

// cleanURL strips the query from product URLs. Affiliate short links have
// none and pass through unchanged.
func cleanURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(u.Host, "coupang.com") || strings.HasPrefix(u.Host, "link.") {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
