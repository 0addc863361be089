package analyzer

import "strings"

// Stem reduces a lower-case English word to its Porter stem. Words shorter
// than three letters are returned unchanged.
func Stem(word string) string {
	if len(word) < 3 {
		return word
	}

	word = step1a(word)
	word = step1b(word)
	word, _, _ = applyFirst(word, step1cRules)
	word, _, _ = applyFirst(word, step2Rules)
	word, _, _ = applyFirst(word, step3Rules)
	word, _, _ = applyFirst(word, step4Rules)
	return step5(word)
}

// rule replaces suffix with repl when cond holds for the remaining stem.
type rule struct {
	suffix string
	repl   string
	cond   func(stem string) bool
}

// applyFirst finds the first rule whose suffix matches. Only that rule is
// considered: if its condition fails the word is returned unchanged.
func applyFirst(word string, rules []rule) (out string, matched, applied bool) {
	for _, r := range rules {
		if !strings.HasSuffix(word, r.suffix) {
			continue
		}
		stem := word[:len(word)-len(r.suffix)]
		if r.cond != nil && !r.cond(stem) {
			return word, true, false
		}
		return stem + r.repl, true, true
	}
	return word, false, false
}

func measureAbove(n int) func(string) bool {
	return func(stem string) bool { return measure(stem) > n }
}

var (
	step1aRules = []rule{
		{"sses", "ss", nil},
		{"ies", "i", nil},
		{"ss", "ss", nil},
		{"s", "", nil},
	}

	step1cRules = []rule{
		{"y", "i", hasVowel},
	}

	// Longer suffixes come before the shorter ones they end with.
	step2Rules = []rule{
		{"ational", "ate", measureAbove(0)},
		{"tional", "tion", measureAbove(0)},
		{"enci", "ence", measureAbove(0)},
		{"anci", "ance", measureAbove(0)},
		{"izer", "ize", measureAbove(0)},
		{"abli", "able", measureAbove(0)},
		{"alli", "al", measureAbove(0)},
		{"entli", "ent", measureAbove(0)},
		{"eli", "e", measureAbove(0)},
		{"ousli", "ous", measureAbove(0)},
		{"ization", "ize", measureAbove(0)},
		{"ation", "ate", measureAbove(0)},
		{"ator", "ate", measureAbove(0)},
		{"alism", "al", measureAbove(0)},
		{"iveness", "ive", measureAbove(0)},
		{"fulness", "ful", measureAbove(0)},
		{"ousness", "ous", measureAbove(0)},
		{"aliti", "al", measureAbove(0)},
		{"iviti", "ive", measureAbove(0)},
		{"biliti", "ble", measureAbove(0)},
	}

	step3Rules = []rule{
		{"icate", "ic", measureAbove(0)},
		{"ative", "", measureAbove(0)},
		{"alize", "al", measureAbove(0)},
		{"iciti", "ic", measureAbove(0)},
		{"ical", "ic", measureAbove(0)},
		{"ful", "", measureAbove(0)},
		{"ness", "", measureAbove(0)},
	}

	step4Rules = []rule{
		{"ement", "", measureAbove(1)},
		{"ment", "", measureAbove(1)},
		{"ent", "", measureAbove(1)},
		{"ance", "", measureAbove(1)},
		{"ence", "", measureAbove(1)},
		{"able", "", measureAbove(1)},
		{"ible", "", measureAbove(1)},
		{"ant", "", measureAbove(1)},
		{"ism", "", measureAbove(1)},
		{"ate", "", measureAbove(1)},
		{"iti", "", measureAbove(1)},
		{"ous", "", measureAbove(1)},
		{"ive", "", measureAbove(1)},
		{"ize", "", measureAbove(1)},
		{"ion", "", func(stem string) bool {
			return measure(stem) > 1 && (strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "t"))
		}},
		{"al", "", measureAbove(1)},
		{"er", "", measureAbove(1)},
		{"ic", "", measureAbove(1)},
		{"ou", "", measureAbove(1)},
	}
)

func step1a(word string) string {
	word, _, _ = applyFirst(word, step1aRules)
	return word
}

// step1b strips -eed, -ed and -ing, then repairs the stem so that
// "hopping" gives "hop" and "hoping" gives "hope".
func step1b(word string) string {
	if out, matched, _ := applyFirst(word, []rule{{"eed", "ee", measureAbove(0)}}); matched {
		return out
	}

	out, _, applied := applyFirst(word, []rule{
		{"ed", "", hasVowel},
		{"ing", "", hasVowel},
	})
	if !applied {
		return word
	}

	switch {
	case strings.HasSuffix(out, "at"), strings.HasSuffix(out, "bl"), strings.HasSuffix(out, "iz"):
		return out + "e"
	case endsDoubleConsonant(out) && !strings.ContainsRune("lsz", rune(out[len(out)-1])):
		return out[:len(out)-1]
	case measure(out) == 1 && endsCVC(out):
		return out + "e"
	}
	return out
}

// step5 drops a final -e and reduces a final -ll.
func step5(word string) string {
	if stem, ok := strings.CutSuffix(word, "e"); ok {
		if m := measure(stem); m > 1 || (m == 1 && !endsCVC(stem)) {
			word = stem
		}
	}
	if measure(word) > 1 && strings.HasSuffix(word, "ll") {
		word = word[:len(word)-1]
	}
	return word
}

// isConsonant treats y as a consonant at the start of a word or after a vowel.
func isConsonant(s string, i int) bool {
	switch s[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !isConsonant(s, i-1)
	}
	return true
}

// measure counts vowel-consonant transitions, the m in [C](VC)^m[V].
func measure(s string) int {
	m := 0
	prevVowel := false
	for i := 0; i < len(s); i++ {
		vowel := !isConsonant(s, i)
		if prevVowel && !vowel {
			m++
		}
		prevVowel = vowel
	}
	return m
}

func hasVowel(s string) bool {
	for i := range len(s) {
		if !isConsonant(s, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(s string) bool {
	n := len(s)
	return n >= 2 && s[n-1] == s[n-2] && isConsonant(s, n-1)
}

// endsCVC reports consonant-vowel-consonant at the end, where the last
// consonant is not w, x or y.
func endsCVC(s string) bool {
	n := len(s)
	if n < 3 || !isConsonant(s, n-3) || isConsonant(s, n-2) || !isConsonant(s, n-1) {
		return false
	}
	return !strings.ContainsRune("wxy", rune(s[n-1]))
}
