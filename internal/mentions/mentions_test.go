package mentions

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandguard/internal/model"
)

const socialCSV = `Tweet ID,Entity,Sentiment,Tweet content
1,Nvidia,Positive,love the new card
2,nvidia,Negative,drivers crash again and again
3,Amazon,Neutral,package arrives tomorrow
4,Amazon, Irrelevant ,random chatter
5,Google,Negative,search is broken
6,Google,mixed,not sure what to think
`

func loadSocial(t *testing.T) *Table {
	t.Helper()
	table, err := Load(strings.NewReader(socialCSV), ColumnMapping{})
	require.NoError(t, err)
	return table
}

func TestAutoMapTwitterHeaders(t *testing.T) {
	m, err := AutoMap([]string{"Tweet ID", "Entity", "Sentiment", "Tweet content"})
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{ID: "Tweet ID", Text: "Tweet content", Brand: "Entity", Sentiment: "Sentiment"}, m)
}

func TestAutoMapAirlineHeaders(t *testing.T) {
	header := []string{
		"tweet_id", "airline_sentiment", "airline_sentiment_confidence", "negativereason",
		"airline", "airline_sentiment_gold", "name", "text", "tweet_coord", "clean_text",
	}
	m, err := AutoMap(header)
	require.NoError(t, err)
	assert.Equal(t, "airline_sentiment", m.Sentiment)
	// tweet_coord still matches "tweet", so clean_text only wins by coming last.
	assert.Equal(t, "clean_text", m.Text)
	assert.Equal(t, "airline", m.Brand)
	assert.Equal(t, "tweet_id", m.ID)
}

func TestAutoMapPositionalFallback(t *testing.T) {
	header := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10"}
	m, err := AutoMap(header)
	require.NoError(t, err)
	assert.Equal(t, "c2", m.Sentiment)
	assert.Equal(t, "c10", m.Text)
	assert.Equal(t, "c5", m.Brand)
	assert.Empty(t, m.ID)
}

func TestAutoMapFallbackOutOfRange(t *testing.T) {
	_, err := AutoMap([]string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestLoadWithExplicitColumns(t *testing.T) {
	src := "k,who,feel,body\nx1,Acme,positive,great stuff\n"
	table, err := Load(strings.NewReader(src), ColumnMapping{ID: "k", Text: "body", Brand: "who", Sentiment: "feel"})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	m := table.Head(1)[0]
	assert.Equal(t, Mention{ID: "x1", Brand: "Acme", Sentiment: "positive", Label: model.Positive, Text: "great stuff"}, m)

	_, err = Load(strings.NewReader(src), ColumnMapping{Text: "body", Brand: "who", Sentiment: "missing"})
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestLoadEdgeCases(t *testing.T) {
	_, err := Load(strings.NewReader(""), ColumnMapping{})
	assert.ErrorIs(t, err, ErrEmptyFile)

	table, err := Load(strings.NewReader("\ufeffid,brand,sentiment,text\n"), ColumnMapping{})
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	assert.Equal(t, "id", table.Mapping().ID)

	// Short rows are padded with empty fields.
	table, err = Load(strings.NewReader("id,brand,sentiment,text\n1,Acme\n"), ColumnMapping{})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Acme", table.Head(1)[0].Brand)
	assert.Empty(t, table.Head(1)[0].Text)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mentions.csv")
	require.NoError(t, os.WriteFile(path, []byte(socialCSV), 0o644))

	table, err := LoadFile(path, ColumnMapping{})
	require.NoError(t, err)
	assert.Equal(t, 6, table.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), ColumnMapping{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStatsAllEqualsRowCount(t *testing.T) {
	table := loadSocial(t)

	for _, brand := range []string{"all", "ALL", " All "} {
		s := table.Stats(brand)
		assert.Equal(t, table.Len(), s.Total, brand)
	}

	s := table.Stats("all")
	assert.Equal(t, Stats{Positive: 1, Neutral: 1, Negative: 2, Irrelevant: 1, Total: 6}, s)
}

func TestStatsBrandIsCaseInsensitive(t *testing.T) {
	table := loadSocial(t)

	assert.Equal(t, Stats{Positive: 1, Negative: 1, Total: 2}, table.Stats("NVIDIA"))
	assert.Equal(t, Stats{Negative: 1, Total: 2}, table.Stats("google"))
	assert.Equal(t, 1, table.Stats("google").Count(model.Negative))
}

func TestStatsUnknownBrandIsZero(t *testing.T) {
	assert.Equal(t, Stats{}, loadSocial(t).Stats("Tesla"))
}

func TestBrandsAndHead(t *testing.T) {
	table := loadSocial(t)

	assert.Equal(t, []string{"Amazon", "Google", "Nvidia", "nvidia"}, table.Brands())
	assert.Len(t, table.Head(2), 2)
	assert.Len(t, table.Head(100), 6)
	assert.Empty(t, table.Head(-1))
}

func TestSampleIsDistinctAndBounded(t *testing.T) {
	table := loadSocial(t)
	rng := rand.New(rand.NewPCG(1, 2))

	sample := table.Sample(rng, 4)
	require.Len(t, sample, 4)
	ids := make(map[string]bool)
	for _, m := range sample {
		assert.False(t, ids[m.ID], "duplicate row %s", m.ID)
		ids[m.ID] = true
	}

	assert.Len(t, table.Sample(rng, 25), table.Len())
}

func TestLengthHistogram(t *testing.T) {
	table := loadSocial(t)

	h := table.LengthHistogram("all", 2)
	// Word counts: 4, 5, 3, 2, 3, 5.
	assert.Equal(t, []float64{2, 3.5, 5}, h.Edges)
	assert.Equal(t, []int{3, 3}, h.Counts)

	h = table.LengthHistogram("nobody", 3)
	assert.Equal(t, []int{0, 0, 0}, h.Counts)
	assert.Empty(t, h.Edges)

	h = table.LengthHistogram("Nvidia", 0)
	assert.Equal(t, []int{2}, h.Counts)
}

func TestLabelledSkipsUnknownSentiment(t *testing.T) {
	docs, labels := loadSocial(t).Labelled()
	require.Len(t, docs, 5)
	assert.Equal(t, []model.Label{model.Positive, model.Negative, model.Neutral, model.Irrelevant, model.Negative}, labels)
	assert.Equal(t, "search is broken", docs[4])
}
