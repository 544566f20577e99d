package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryLookup(t *testing.T) {
	c, err := CategoryByKey("business")
	require.NoError(t, err)
	assert.Equal(t, "business", c.Key)
	assert.NotEmpty(t, c.Label)

	_, err = CategoryByKey("nope")
	require.Error(t, err)

	var unknown *ErrUnknownKey
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "UNKNOWN_CATALOG_KEY", unknown.Code())
}

func TestTopicLookup(t *testing.T) {
	tp, err := TopicByKey("q_price")
	require.NoError(t, err)
	assert.Equal(t, "интересует стоимость", tp.Summary)

	_, err = TopicByKey("q_nope")
	assert.Error(t, err)
}

func TestTopicSummaryFallback(t *testing.T) {
	assert.Equal(t, "интересует стоимость", TopicSummary("q_price"))
	assert.Equal(t, "q_mystery", TopicSummary("q_mystery"))
}

func TestOrderingStable(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	assert.Equal(t, "business", cats[0].Key)
	assert.Equal(t, "support", cats[4].Key)

	topics := Topics()
	require.Len(t, topics, 10)
	assert.Equal(t, "q_price", topics[0].Key)
	assert.Equal(t, "q_custom", topics[9].Key)
}

func TestListingsAreCopies(t *testing.T) {
	cats := Categories()
	cats[0].Key = "mutated"
	assert.Equal(t, "business", Categories()[0].Key)
}

func TestKeyPredicates(t *testing.T) {
	assert.True(t, IsCategoryKey("ai"))
	assert.False(t, IsCategoryKey("q_ai"))
	assert.True(t, IsTopicKey("q_ai"))
	assert.False(t, IsTopicKey("ai"))
}
