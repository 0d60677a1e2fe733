package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileIdentifierShard(t *testing.T) {
	assert.Equal(t, "aa1", FileIdentifier("aa1234567890").Shard())
	assert.Equal(t, "ab", FileIdentifier("ab").Shard())
	assert.Equal(t, "", FileIdentifier("").Shard())
}

func TestContentKindValid(t *testing.T) {
	assert.True(t, KindVideo.Valid())
	assert.True(t, KindWebPage.Valid())
	assert.False(t, ContentKind("carrier-pigeon").Valid())
}

func TestPriorityKeyOrdering(t *testing.T) {
	high := PriorityKey{Level: PriorityHigh, SubmitTimestampMs: 100, InsertSeq: 5}
	low := PriorityKey{Level: PriorityLow, SubmitTimestampMs: 1, InsertSeq: 0}
	require.True(t, high.Less(low), "higher priority level must sort first regardless of timestamp")

	earlier := PriorityKey{Level: PriorityNormal, SubmitTimestampMs: 10, InsertSeq: 9}
	later := PriorityKey{Level: PriorityNormal, SubmitTimestampMs: 20, InsertSeq: 0}
	assert.True(t, earlier.Less(later))

	a := PriorityKey{Level: PriorityNormal, SubmitTimestampMs: 10, InsertSeq: 1}
	b := PriorityKey{Level: PriorityNormal, SubmitTimestampMs: 10, InsertSeq: 2}
	assert.True(t, a.Less(b), "ties break on insert sequence")
}

func TestPriorityKeyCompareIsAntisymmetric(t *testing.T) {
	a := PriorityKey{Level: PriorityHigh, SubmitTimestampMs: 1, InsertSeq: 1}
	b := PriorityKey{Level: PriorityNormal, SubmitTimestampMs: 1, InsertSeq: 1}
	assert.Equal(t, -a.Compare(b), b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestNodeKindClassification(t *testing.T) {
	assert.True(t, NodeDocument.IsRoot())
	assert.True(t, NodeImage.IsRoot())
	assert.False(t, NodeText.IsRoot())
	assert.True(t, NodePage.IsIndexable())
	assert.True(t, NodeAudioFrame.IsIndexable())
	assert.False(t, NodeText.IsIndexable())
}

func TestContentTaskTypeTextRoundTrip(t *testing.T) {
	tt := NewTaskType(KindVideo, TaskVideoTransChunkSumEmbed)
	text, err := tt.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "video/trans-chunk-sum-embed", string(text))

	var decoded ContentTaskType
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, tt, decoded)
}
