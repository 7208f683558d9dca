package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/opencivic/roster/pkg/records"
)

// DefaultFuzzyThreshold is the confidence above which two records are
// judged fuzzy duplicates. Tunable; 0.85 keeps "ACME CORP." and
// "Acme Corp" together without collapsing distinct franchises that share
// a city and ZIP.
const DefaultFuzzyThreshold = 0.85

// keyFieldWeights are the canonical fields compared by the fuzzy strategy
// and their contribution to the combined confidence score. Weights are
// renormalized over the fields actually present in a pair.
var keyFieldWeights = []struct {
	field  string
	weight float64
}{
	{"business_name", 0.40},
	{"street_address", 0.30},
	{"city", 0.15},
	{"zip_code", 0.15},
}

// Relative contribution of the two per-field measures.
const (
	tokenWeight = 0.6
	jaroWeight  = 0.4
)

// diacriticStripper removes combining marks after NFD decomposition, so
// "Café" and "Cafe" compare equal.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText prepares a field value for similarity comparison:
// diacritics stripped, lowercased, punctuation collapsed to spaces.
func normalizeText(s string) string {
	if folded, _, err := transform.String(diacriticStripper, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenSetRatio returns the Jaccard overlap of the token sets of two
// normalized strings.
func tokenSetRatio(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}

	union := len(set)
	intersection := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// jaro computes the Jaro similarity of two strings.
func jaro(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0

	for i := range ra {
		lo := max(0, i-window)
		hi := min(lb-1, i+window)
		for j := lo; j <= hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range ra {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3
}

// jaroWinkler boosts the Jaro score for strings sharing a common prefix,
// up to four characters.
func jaroWinkler(a, b string) float64 {
	j := jaro(a, b)

	prefix := 0
	for i := 0; i < len(a) && i < len(b) && i < 4; i++ {
		if a[i] != b[i] {
			break
		}
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

// fieldSimilarity scores two normalized field values with a blend of
// token-set overlap and Jaro-Winkler.
func fieldSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return tokenWeight*tokenSetRatio(a, b) + jaroWeight*jaroWinkler(a, b)
}

// Confidence scores how likely two canonical records describe the same
// entity, in [0, 1]. Key fields absent from both records are excluded and
// the remaining weights renormalized; a field present on only one side
// counts as fully dissimilar. Records sharing no key fields score 0.
func Confidence(a, b records.Record) float64 {
	var total, score float64

	for _, kf := range keyFieldWeights {
		av, aok := a.Get(kf.field)
		bv, bok := b.Get(kf.field)
		aEmpty := !aok || records.IsEmpty(av)
		bEmpty := !bok || records.IsEmpty(bv)

		if aEmpty && bEmpty {
			continue
		}
		total += kf.weight
		if aEmpty || bEmpty {
			continue
		}
		score += kf.weight * fieldSimilarity(
			normalizeText(records.Stringify(av)),
			normalizeText(records.Stringify(bv)),
		)
	}

	if total == 0 {
		return 0
	}
	return score / total
}
