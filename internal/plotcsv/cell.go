// Package plotcsv reads and writes the acquisition chart and lineage CSV
// files, and reconstructs plot records from single freeform chart cells.
package plotcsv

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"landledger/pkg/domain"
)

// ErrEmptyCell is returned for cells with no tokens.
var ErrEmptyCell = errors.New("plotcsv: empty cell")

// Plot is one row of an acquisition chart.
type Plot struct {
	SurveyNumber   string `json:"survey_number"`
	Classification string `json:"classification,omitempty"`
	Owner          string `json:"owner,omitempty"`
	Status         string `json:"status,omitempty"`
	Extent         string `json:"extent,omitempty"`
	// KnownStatus is set when Status is one of the recognised phrases.
	KnownStatus bool `json:"known_status"`
}

// phrases holds the recognised status phrases split into lowercase tokens,
// longest first.
var phrases = func() [][]string {
	out := make([][]string, 0, len(plotStatuses))
	for phrase := range plotStatuses {
		out = append(out, strings.Fields(phrase))
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return strings.Join(out[i], " ") < strings.Join(out[j], " ")
	})
	return out
}()

// ParsePlotCell splits a freeform chart cell such as
// "112/3 wet Ramaswamy Naidu advance paid 1.25" into its fields.
//
// The first token is the survey number. The longest status phrase found
// after it (the right-most one when several are equally long) splits the
// rest: tokens before the phrase are the owner (preceded
// by the classification when at least two tokens sit between survey number
// and phrase), tokens after it are the extent. Cells without a known phrase
// fall back to survey, classification, owner..., status, extent.
func ParsePlotCell(cell string) (Plot, error) {
	tokens := strings.Fields(cell)
	if len(tokens) == 0 {
		return Plot{}, ErrEmptyCell
	}
	start, end, ok := findStatus(tokens)
	if !ok {
		return defaultSplit(tokens), nil
	}
	p := Plot{
		SurveyNumber: tokens[0],
		Status:       strings.ToLower(strings.Join(cleanTokens(tokens[start:end]), " ")),
		Extent:       strings.Join(tokens[end:], " "),
		KnownStatus:  true,
	}
	ownerFrom := 1
	if start > 2 {
		p.Classification = tokens[1]
		ownerFrom = 2
	}
	p.Owner = strings.Join(tokens[ownerFrom:start], " ")
	return p, nil
}

// findStatus locates the longest known phrase after the survey number.
// Among phrases of that length the right-most match wins, since the status
// sits just before the extent and owner names can contain phrase words.
func findStatus(tokens []string) (int, int, bool) {
	best, bestLen := -1, 0
	for _, phrase := range phrases {
		if best >= 0 && len(phrase) < bestLen {
			break
		}
		for i := len(tokens) - len(phrase); i >= 1; i-- {
			if matchAt(tokens[i:i+len(phrase)], phrase) {
				if i > best {
					best, bestLen = i, len(phrase)
				}
				break
			}
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, best + bestLen, true
}

func matchAt(tokens, phrase []string) bool {
	for i, want := range phrase {
		if !strings.EqualFold(cleanToken(tokens[i]), want) {
			return false
		}
	}
	return true
}

func cleanToken(t string) string {
	return strings.TrimFunc(t, func(r rune) bool { return unicode.IsPunct(r) && r != '/' })
}

func cleanTokens(ts []string) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = cleanToken(t)
	}
	return out
}

func defaultSplit(tokens []string) Plot {
	n := len(tokens)
	p := Plot{SurveyNumber: tokens[0]}
	switch {
	case n == 1:
	case n == 2:
		p.Extent = tokens[1]
	case n == 3:
		p.Status = tokens[1]
		p.Extent = tokens[2]
	default:
		p.Classification = tokens[1]
		p.Owner = strings.Join(tokens[2:n-2], " ")
		p.Status = tokens[n-2]
		p.Extent = tokens[n-1]
	}
	return p
}

// Record converts the plot into a land record. Unrecognised classifications
// map to "other".
func (p Plot) Record() (domain.SurveyRecord, error) {
	acres, cents, err := SplitExtent(p.Extent)
	if err != nil {
		return domain.SurveyRecord{}, err
	}
	rec := domain.SurveyRecord{SurveyNumber: p.SurveyNumber, Acres: acres, Cents: cents}
	if p.Classification != "" {
		c, ok := domain.ParseLandClassification(p.Classification)
		if !ok {
			c = domain.LandOther
		}
		rec.Classification = c
	}
	return rec, nil
}

var hundred = decimal.NewFromInt(100)

// extentUnits are the words allowed next to extent numbers.
var extentUnits = map[string]bool{
	"ac": true, "acs": true, "acre": true, "acres": true,
	"cent": true, "cents": true, "ct": true, "cts": true,
}

// SplitExtent turns an extent such as "1.25", "1-25", "1 ac 25 cents" or
// "2 acres" into acres and cents. Words other than acre and cent units are
// rejected. A single decimal number is read as acres
// with the fraction converted to cents.
func SplitExtent(extent string) (acres, cents string, err error) {
	var nums []string
	for _, f := range strings.FieldsFunc(strings.ToLower(extent), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '+' || r == ','
	}) {
		num := strings.TrimRightFunc(f, unicode.IsLetter)
		if unit := f[len(num):]; unit != "" && !extentUnits[unit] {
			return "", "", fmt.Errorf("extent %q: unexpected %q", extent, f)
		}
		if num == "" {
			continue
		}
		nums = append(nums, num)
	}
	switch len(nums) {
	case 0:
		return "", "", nil
	case 1:
		d, err := decimal.NewFromString(nums[0])
		if err != nil {
			return "", "", fmt.Errorf("extent %q: %w", extent, err)
		}
		whole := d.Truncate(0)
		return whole.String(), d.Sub(whole).Mul(hundred).String(), nil
	case 2:
		for _, n := range nums {
			if _, err := decimal.NewFromString(n); err != nil {
				return "", "", fmt.Errorf("extent %q: %w", extent, err)
			}
		}
		return nums[0], nums[1], nil
	default:
		return "", "", fmt.Errorf("extent %q: too many numbers", extent)
	}
}
