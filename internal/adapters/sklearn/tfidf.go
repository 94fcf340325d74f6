package sklearn

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/coastguard/svm-spam-filter/internal/core"
)

// DefaultTokenPattern is scikit-learn's default token_pattern
const DefaultTokenPattern = `(?u)\b\w\w+\b`

// vectorizerFile is the exported form of a fitted TfidfVectorizer
type vectorizerFile struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Norm         *string        `json:"norm"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Binary       bool           `json:"binary"`
	NgramRange   []int          `json:"ngram_range"`
	StopWords    []string       `json:"stop_words"`
	TokenPattern string         `json:"token_pattern"`
	Lowercase    *bool          `json:"lowercase"`
}

// TfidfVectorizer reproduces scikit-learn's TfidfVectorizer.transform for word analyzers.
// It is immutable after loading and safe for concurrent use.
type TfidfVectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	norm        string
	sublinearTF bool
	binary      bool
	minN, maxN  int
	stopWords   map[string]struct{}
	token       *regexp.Regexp
	lowercase   bool
}

// LoadVectorizer decodes and validates an exported vectorizer
func LoadVectorizer(data []byte) (*TfidfVectorizer, error) {
	var f vectorizerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode vectorizer: %w", err)
	}
	return newVectorizer(f)
}

func newVectorizer(f vectorizerFile) (*TfidfVectorizer, error) {
	if len(f.Vocabulary) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	if len(f.IDF) != len(f.Vocabulary) {
		return nil, fmt.Errorf("idf has %d weights for %d vocabulary terms", len(f.IDF), len(f.Vocabulary))
	}

	seen := make([]bool, len(f.IDF))
	for term, idx := range f.Vocabulary {
		if idx < 0 || idx >= len(f.IDF) {
			return nil, fmt.Errorf("vocabulary term %q has out of range index %d", term, idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d is assigned twice", idx)
		}
		seen[idx] = true
	}
	for i, w := range f.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("idf weight %d is not finite", i)
		}
	}

	norm := "l2"
	if f.Norm != nil {
		norm = *f.Norm
	}
	if norm != "l1" && norm != "l2" && norm != "" {
		return nil, fmt.Errorf("unsupported norm %q", norm)
	}

	minN, maxN := 1, 1
	if len(f.NgramRange) != 0 {
		if len(f.NgramRange) != 2 || f.NgramRange[0] < 1 || f.NgramRange[1] < f.NgramRange[0] {
			return nil, fmt.Errorf("invalid ngram_range %v", f.NgramRange)
		}
		minN, maxN = f.NgramRange[0], f.NgramRange[1]
	}

	pattern := f.TokenPattern
	if pattern == "" {
		pattern = DefaultTokenPattern
	}
	token, err := compileTokenPattern(pattern)
	if err != nil {
		return nil, err
	}

	stopWords := make(map[string]struct{}, len(f.StopWords))
	for _, w := range f.StopWords {
		stopWords[w] = struct{}{}
	}

	lowercase := true
	if f.Lowercase != nil {
		lowercase = *f.Lowercase
	}

	return &TfidfVectorizer{
		vocabulary:  f.Vocabulary,
		idf:         f.IDF,
		norm:        norm,
		sublinearTF: f.SublinearTF,
		binary:      f.Binary,
		minN:        minN,
		maxN:        maxN,
		stopWords:   stopWords,
		token:       token,
		lowercase:   lowercase,
	}, nil
}

// compileTokenPattern translates a Python token pattern into RE2.
// The (?u) flag is dropped: RE2 classes are ASCII, which matches Python's
// Unicode classes on the a-z text the normalizer produces.
func compileTokenPattern(pattern string) (*regexp.Regexp, error) {
	pattern = strings.ReplaceAll(pattern, "(?u)", "")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid token_pattern: %w", err)
	}
	if re.NumSubexp() > 1 {
		return nil, fmt.Errorf("token_pattern has %d capturing groups, at most one is allowed", re.NumSubexp())
	}
	return re, nil
}

// Dimension returns the vocabulary size
func (v *TfidfVectorizer) Dimension() int {
	return len(v.idf)
}

// Transform computes the TF-IDF vector of one document
func (v *TfidfVectorizer) Transform(text string) (*core.FeatureVector, error) {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	vec := &core.FeatureVector{
		Dim:     len(v.idf),
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	for _, idx := range vec.Indices {
		tf := counts[idx]
		switch {
		case v.binary:
			tf = 1
		case v.sublinearTF:
			tf = math.Log(tf) + 1
		}
		vec.Values = append(vec.Values, tf*v.idf[idx])
	}

	normalize(vec.Values, v.norm)
	return vec, nil
}

// analyze tokenizes, removes stop words and builds n-grams
func (v *TfidfVectorizer) analyze(text string) []string {
	if v.lowercase {
		text = strings.ToLower(text)
	}

	var tokens []string
	if v.token.NumSubexp() == 1 {
		for _, m := range v.token.FindAllStringSubmatch(text, -1) {
			tokens = append(tokens, m[1])
		}
	} else {
		tokens = v.token.FindAllString(text, -1)
	}

	if len(v.stopWords) > 0 {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, stop := v.stopWords[t]; !stop {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	if v.maxN == 1 {
		return tokens
	}

	var terms []string
	minN := v.minN
	if minN == 1 {
		terms = append(terms, tokens...)
		minN = 2
	}
	for n := minN; n <= v.maxN && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// normalize scales values in place to unit l1 or l2 norm; zero vectors are left alone
func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range values {
			total += float64(x * x)
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
