package banner

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	fullStar  = "★"
	emptyStar = "☆"
)

// StarCount rounds half to even and clamps to [0,5].
func StarCount(rating float64) int {
	n := int(math.RoundToEven(rating))
	return min(max(n, 0), 5)
}

// Stars renders the filled and empty glyphs for rating.
func Stars(rating float64) string {
	n := StarCount(rating)
	return strings.Repeat(fullStar, n) + strings.Repeat(emptyStar, 5-n)
}

// RatingBlock returns the rating container and message placeholders. A
// rating of exactly zero renders neither.
func RatingBlock(rating float64) (container, msg string) {
	if rating == 0 {
		return "", ""
	}
	r := FormatRating(rating)
	container = `<div><div style="font-size:20px; color:gold; text-align:center">` + Stars(rating) + `</div></div>` +
		`<span style="margin:0 auto">리뷰 점수 ` + r + ` 점</span>`
	return container, "<b>" + r + "</b>"
}

// FormatRating prints the shortest decimal form, keeping one fractional
// digit for whole numbers ("5.0", "4.5").
func FormatRating(rating float64) string {
	s := strconv.FormatFloat(rating, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var won = message.NewPrinter(language.Korean)

// FormatPrice groups digits the Korean way ("12,900").
func FormatPrice(v int64) string {
	return won.Sprintf("%d", v)
}
