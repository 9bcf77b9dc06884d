package coupang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact substring", "무선 이어폰", "삼성 무선 이어폰 블랙", 100},
		{"identical", "에어팟", "에어팟", 100},
		{"empty", "", "에어팟", 0},
		{"no overlap", "텐트", "무선 이어폰", 0},
		{"argument order does not matter", "삼성 무선 이어폰 블랙", "무선 이어폰", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PartialRatio(tt.a, tt.b), 0.001)
		})
	}
}

func TestPartialRatio_Threshold(t *testing.T) {
	// 3 of 4 runes line up: 200*3/8 = 75.
	assert.InDelta(t, 75.0, PartialRatio("abcd", "xxabcxx"), 0.001)
	assert.GreaterOrEqual(t, PartialRatio("abcd", "xxabcxx"), float64(MinSimilarity))

	// Best is the one-rune edge window "a": 200*1/5 = 40.
	assert.InDelta(t, 40.0, PartialRatio("abcd", "azzz"), 0.001)
	assert.Less(t, PartialRatio("abcd", "azzz"), float64(MinSimilarity))
}

func TestPartialRatio_NormalizesHangul(t *testing.T) {
	decomposed := "\u1100\u1161\u11a8" // 각 as conjoining jamo
	assert.InDelta(t, 100.0, PartialRatio(decomposed, "각도기"), 0.001)
}
