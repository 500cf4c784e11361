package pdfutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHash(t *testing.T) {
	// sha256("hello") is a known vector
	hash := ComputeHash([]byte("hello"))

	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)
	assert.Len(t, hash, 64)
}

func TestComputeHashDiffersPerContent(t *testing.T) {
	assert.NotEqual(t, ComputeHash([]byte("a")), ComputeHash([]byte("b")))
}

func TestExtractTextRejectsGarbage(t *testing.T) {
	_, err := ExtractText([]byte("this is not a pdf"))

	assert.Error(t, err)
}

func TestSplitKeywordString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"comma separated", "medicaid, audit, eligibility", []string{"medicaid", "audit", "eligibility"}},
		{"semicolon separated", "medicaid; audit", []string{"medicaid", "audit"}},
		{"single keyword", "medicaid audit", []string{"medicaid audit"}},
		{"empty", "  ", nil},
		{"trims blanks", "medicaid, , audit", []string{"medicaid", "audit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitKeywordString(tt.input))
		})
	}
}

func TestProcessKeywordsMergesAndDeduplicates(t *testing.T) {
	pdfKeywords := []string{"Medicaid", "Eligibility ", "audit"}
	aiKeywords := []string{"audit", "MEDICAID", "overpayments"}

	merged := ProcessKeywords(pdfKeywords, aiKeywords)

	assert.Equal(t, []string{"medicaid", "eligibility", "audit", "overpayments"}, merged)
}

func TestProcessKeywordsPreservesFirstSeenOrder(t *testing.T) {
	merged := ProcessKeywords([]string{"b", "a"}, []string{"c", "b"})

	assert.Equal(t, []string{"b", "a", "c"}, merged)
}

func TestProcessKeywordsDropsEmpty(t *testing.T) {
	merged := ProcessKeywords([]string{"", "  "}, []string{"x"})

	assert.Equal(t, []string{"x"}, merged)
}

func TestProcessKeywordsEmptyInputs(t *testing.T) {
	assert.Nil(t, ProcessKeywords(nil, nil))
}
