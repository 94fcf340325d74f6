package sklearn

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixtureVectorizer(t *testing.T) *TfidfVectorizer {
	t.Helper()
	data, err := os.ReadFile("testdata/spam_vectorizer.json")
	require.NoError(t, err)
	v, err := LoadVectorizer(data)
	require.NoError(t, err)
	return v
}

func TestTransformL2(t *testing.T) {
	v := loadFixtureVectorizer(t)
	assert.Equal(t, 11, v.Dimension())

	vec, err := v.Transform("free meeting")
	require.NoError(t, err)
	assert.Equal(t, 11, vec.Dim)
	assert.Equal(t, []int{3, 4}, vec.Indices)
	require.Len(t, vec.Values, 2)
	assert.InDelta(t, 0.6, vec.Values[0], 1e-12)
	assert.InDelta(t, 0.8, vec.Values[1], 1e-12)
}

func TestTransformTermFrequency(t *testing.T) {
	v := loadFixtureVectorizer(t)

	vec, err := v.Transform("meeting free free")
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, vec.Indices)

	norm := math.Sqrt(3.0*3.0 + 2.0*2.0)
	assert.InDelta(t, 3.0/norm, vec.Values[0], 1e-12)
	assert.InDelta(t, 2.0/norm, vec.Values[1], 1e-12)
}

func TestTransformIgnoresUnknownAndStopWords(t *testing.T) {
	v := loadFixtureVectorizer(t)

	vec, err := v.Transform("the cat is at the door to you")
	require.NoError(t, err)
	assert.Empty(t, vec.Indices)
	assert.Empty(t, vec.Values)

	vec, err = v.Transform("")
	require.NoError(t, err)
	assert.Equal(t, 11, vec.Dim)
	assert.Zero(t, vec.NNZ())
}

func TestTransformSingleCharTokensDropped(t *testing.T) {
	v := loadFixtureVectorizer(t)

	vec, err := v.Transform("a b c free")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, vec.Indices)
	assert.InDelta(t, 1.0, vec.Values[0], 1e-12)
}

func TestTransformWeighting(t *testing.T) {
	tests := []struct {
		name   string
		config string
		text   string
		want   []float64
	}{
		{
			name:   "raw counts without norm",
			config: `{"vocabulary":{"aa":0,"bb":1},"idf":[1.5,1.0],"norm":""}`,
			text:   "aa aa aa bb",
			want:   []float64{4.5, 1.0},
		},
		{
			name:   "sublinear tf",
			config: `{"vocabulary":{"aa":0,"bb":1},"idf":[1.0,1.0],"norm":"","sublinear_tf":true}`,
			text:   "aa aa aa bb",
			want:   []float64{math.Log(3) + 1, 1.0},
		},
		{
			name:   "binary",
			config: `{"vocabulary":{"aa":0,"bb":1},"idf":[2.0,1.0],"norm":"","binary":true}`,
			text:   "aa aa bb",
			want:   []float64{2.0, 1.0},
		},
		{
			name:   "l1 norm",
			config: `{"vocabulary":{"aa":0,"bb":1},"idf":[1.0,1.0],"norm":"l1"}`,
			text:   "aa aa bb",
			want:   []float64{2.0 / 3.0, 1.0 / 3.0},
		},
		{
			name:   "null norm defaults to l2",
			config: `{"vocabulary":{"aa":0,"bb":1},"idf":[3.0,4.0],"norm":null}`,
			text:   "bb aa",
			want:   []float64{0.6, 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := LoadVectorizer([]byte(tt.config))
			require.NoError(t, err)

			vec, err := v.Transform(tt.text)
			require.NoError(t, err)
			require.Equal(t, []int{0, 1}, vec.Indices)
			require.Len(t, vec.Values, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], vec.Values[i], 1e-12)
			}
		})
	}
}

func TestTransformNgrams(t *testing.T) {
	config := `{
		"vocabulary": {"free": 0, "free prize": 1, "prize": 2, "win free": 3, "win": 4},
		"idf": [1, 1, 1, 1, 1],
		"norm": "",
		"ngram_range": [1, 2],
		"stop_words": ["the"]
	}`
	v, err := LoadVectorizer([]byte(config))
	require.NoError(t, err)

	vec, err := v.Transform("win free prize")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, vec.Indices)

	// stop words are removed before n-grams are built
	vec, err = v.Transform("free the prize")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, vec.Indices)
}

func TestTransformBigramsOnly(t *testing.T) {
	config := `{
		"vocabulary": {"free": 0, "free prize": 1},
		"idf": [1, 1],
		"norm": "",
		"ngram_range": [2, 2]
	}`
	v, err := LoadVectorizer([]byte(config))
	require.NoError(t, err)

	vec, err := v.Transform("free prize")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, vec.Indices)

	vec, err = v.Transform("free")
	require.NoError(t, err)
	assert.Empty(t, vec.Indices)
}

func TestTransformCaseHandling(t *testing.T) {
	lower, err := LoadVectorizer([]byte(`{"vocabulary":{"free":0},"idf":[1]}`))
	require.NoError(t, err)
	vec, err := lower.Transform("FREE Free")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, vec.Indices)

	exact, err := LoadVectorizer([]byte(`{"vocabulary":{"Free":0},"idf":[1],"lowercase":false,"norm":""}`))
	require.NoError(t, err)
	vec, err = exact.Transform("Free free")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, vec.Indices)
	assert.Equal(t, []float64{1}, vec.Values)
}

func TestTransformCapturingTokenPattern(t *testing.T) {
	v, err := LoadVectorizer([]byte(`{"vocabulary":{"free":0},"idf":[1],"token_pattern":"#(\\w+)"}`))
	require.NoError(t, err)

	vec, err := v.Transform("free #free")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, vec.Indices)
	assert.InDelta(t, 1.0, vec.Values[0], 1e-12)
}

func TestLoadVectorizerErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"invalid json", `{`, "failed to decode vectorizer"},
		{"empty vocabulary", `{"vocabulary":{},"idf":[]}`, "vocabulary is empty"},
		{"idf length mismatch", `{"vocabulary":{"a":0,"b":1},"idf":[1]}`, "idf has 1 weights for 2 vocabulary terms"},
		{"index out of range", `{"vocabulary":{"a":0,"b":5},"idf":[1,1]}`, "out of range index 5"},
		{"index assigned twice", `{"vocabulary":{"a":1,"b":1},"idf":[1,1]}`, "assigned twice"},
		{"unsupported norm", `{"vocabulary":{"a":0},"idf":[1],"norm":"max"}`, `unsupported norm "max"`},
		{"bad ngram range", `{"vocabulary":{"a":0},"idf":[1],"ngram_range":[2,1]}`, "invalid ngram_range"},
		{"short ngram range", `{"vocabulary":{"a":0},"idf":[1],"ngram_range":[1]}`, "invalid ngram_range"},
		{"invalid token pattern", `{"vocabulary":{"a":0},"idf":[1],"token_pattern":"("}`, "invalid token_pattern"},
		{"two capture groups", `{"vocabulary":{"a":0},"idf":[1],"token_pattern":"(a)(b)"}`, "capturing groups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadVectorizer([]byte(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	values := []float64{0, 0}
	normalize(values, "l2")
	assert.Equal(t, []float64{0, 0}, values)
}
