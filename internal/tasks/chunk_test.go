package tasks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackChunksRespectsChunkSize(t *testing.T) {
	items := make([]string, 20)
	for i := range items {
		items[i] = "word"
	}
	chunks := PackChunks(items, 5, nil)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Tokens, 5)
	}
}

func TestPackChunksOverlapWithinHalfBudget(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	chunks := PackChunks(items, 4, nil)
	require.Greater(t, len(chunks), 1)

	// Every chunk after the first must repeat a suffix of the previous
	// chunk whose token sum does not exceed chunkSize/2.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Text)
		curWords := strings.Fields(chunks[i].Text)
		assert.LessOrEqual(t, commonSuffixPrefixLen(prevWords, curWords), 2,
			"overlap must not exceed chunkSize/2 tokens")
	}
}

func TestPackChunksSingleOversizedItemStandsAlone(t *testing.T) {
	items := []string{"one two three four five six"}
	chunks := PackChunks(items, 2, nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, 6, chunks[0].Tokens)
}

func TestPackChunksOverlapPlusNextItemNeverOverflows(t *testing.T) {
	// Token counts 3,3,3,8 against chunkSize=10 (overlapBudget=5): the
	// first three items fill a chunk to 9 tokens, the fourth overflows it
	// and leaves a 3-token retained suffix, and 3+8=11 would exceed
	// chunkSize if appended directly onto that suffix.
	items := []string{"a b c", "d e f", "g h i", "j k l m n o p q"}
	chunks := PackChunks(items, 10, nil)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Tokens, 10)
	}
}

func TestPackChunksEmptyInput(t *testing.T) {
	assert.Empty(t, PackChunks(nil, 10, nil))
}

// commonSuffixPrefixLen returns the longest L such that the last L words of
// prev equal the first L words of cur.
func commonSuffixPrefixLen(prev, cur []string) int {
	max := len(prev)
	if len(cur) < max {
		max = len(cur)
	}
	for l := max; l > 0; l-- {
		if strings.Join(prev[len(prev)-l:], " ") == strings.Join(cur[:l], " ") {
			return l
		}
	}
	return 0
}
