package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

const sampleDocs = `<doc>
<docno>1</docno>
<title>experimental investigation of the aerodynamics of a
wing in a slipstream .</title>
<author>brenckman,m.</author>
<bib>j. ae. scs. 25, 1958, 324.</bib>
<text>an experimental study of a wing in a propeller slipstream .</text>
</doc>
<doc>
<docno>2</docno>
<title>simple shear flow past a flat plate</title>
<author>ting-yili</author>
<text></text>
</doc>
<doc>
<docno></docno>
<title>no id</title>
</doc>
`

const sampleTopics = `<top>
<num>001</num>
<title>what similarity laws must be obeyed when constructing aeroelastic models
of heated high speed aircraft .</title>
</top>
<top>
<num>002</num>
<title>what are the structural and aeroelastic problems associated with flight
of high speed aircraft .</title>
</top>
<top>
<num>004</num>
<title>what problems of heat conduction in composite slabs have been solved so
far .</title>
</top>
`

func TestParseDocuments(t *testing.T) {
	docs, err := ParseDocuments(strings.NewReader(sampleDocs))
	require.NoError(t, err)
	require.Len(t, docs, 2, "the record without a docno is skipped")

	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "brenckman,m.", docs[0].Author)
	assert.True(t, strings.HasPrefix(docs[0].Title, "experimental investigation"))
	assert.Equal(t, "an experimental study of a wing in a propeller slipstream .", docs[0].Body)
	assert.Equal(t, docs[0].Title+" "+docs[0].Body, docs[0].IndexableText())
	assert.Equal(t, "", docs[1].Body)
}

func TestParseDocumentsWithRoot(t *testing.T) {
	docs, err := ParseDocuments(strings.NewReader(`<?xml version="1.0"?><xml>` + sampleDocs + `</xml>`))
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestParseDocumentsMalformed(t *testing.T) {
	docs, err := ParseDocuments(strings.NewReader(`<doc><docno>1</docno><title>open`))
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestParseQueries(t *testing.T) {
	queries, ids, err := ParseQueries(strings.NewReader(sampleTopics))
	require.NoError(t, err)
	require.Len(t, queries, 3)

	assert.Equal(t, Query{ID: "3", OriginalID: "004", Text: "what problems of heat conduction in composite slabs have been solved so\nfar ."}, queries[2])
	orig, ok := ids.Original("3")
	require.True(t, ok)
	assert.Equal(t, "004", orig)
	seq, ok := ids.Sequential("002")
	require.True(t, ok)
	assert.Equal(t, "2", seq)
	_, ok = ids.Sequential("003")
	assert.False(t, ok)
	assert.Equal(t, 3, ids.Len())
}

func TestParseQueriesSkippedTopicKeepsPosition(t *testing.T) {
	topics := `<top><num>001</num><title>first</title></top>
<top><num></num><title>no number</title></top>
<top><num>004</num><title>third</title></top>
`
	queries, ids, err := ParseQueries(strings.NewReader(topics))
	require.NoError(t, err)
	require.Len(t, queries, 2)

	assert.Equal(t, Query{ID: "1", OriginalID: "001", Text: "first"}, queries[0])
	assert.Equal(t, Query{ID: "3", OriginalID: "004", Text: "third"}, queries[1])
	seq, ok := ids.Sequential("004")
	require.True(t, ok)
	assert.Equal(t, "3", seq)
	_, ok = ids.Original("2")
	assert.False(t, ok)
	assert.Equal(t, 2, ids.Len())
}

func TestIDMapPairsNumericOrder(t *testing.T) {
	m := NewIDMap()
	for i := 11; i >= 1; i-- {
		m.Add(strconv.Itoa(i), fmt.Sprintf("%03d", i*2))
	}
	pairs := m.Pairs()
	require.Len(t, pairs, 11)
	assert.Equal(t, IDPair{Sequential: "1", Original: "002"}, pairs[0])
	assert.Equal(t, IDPair{Sequential: "2", Original: "004"}, pairs[1])
	assert.Equal(t, IDPair{Sequential: "11", Original: "022"}, pairs[10])
}

func TestParseQrels(t *testing.T) {
	input := `1 0 184 2
1 0 29 2
1 0 12 -1
2 0 12 3
this line is broken
2 0 14 x

`
	qrels, err := ParseQrels(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, qrels.Grade("1", "184"))
	assert.Equal(t, -1, qrels.Grade("1", "12"))
	assert.Equal(t, 0, qrels.Grade("1", "999"))
	assert.Equal(t, 2, qrels.NumRelevant("1"))
	assert.Equal(t, []string{"1", "2"}, qrels.QueryIDs())
	assert.Equal(t, 0, qrels.Grade("2", "14"))
}

func TestQrelsRemap(t *testing.T) {
	qrels := Qrels{"001": {"a": 1}, "009": {"b": 1}}
	ids := NewIDMap()
	ids.Add("1", "001")

	remapped := qrels.Remap(ids.Sequential)
	assert.Equal(t, Qrels{"1": {"a": 1}}, remapped)
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDocuments(filepath.Join(dir, "absent.xml"))
	assert.ErrorIs(t, err, apperrors.ErrDatasetMissing)
	_, _, err = LoadQueries(filepath.Join(dir, "absent.xml"))
	assert.ErrorIs(t, err, apperrors.ErrDatasetMissing)
	_, err = LoadQrels(filepath.Join(dir, "absent.txt"))
	assert.ErrorIs(t, err, apperrors.ErrDatasetMissing)
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cran.all.1400.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocs), 0o644))

	docs, err := LoadDocuments(path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"plain", "184", true},
		{"empty", "", false},
		{"whitespace", "18 4", false},
		{"too long", strings.Repeat("x", 256), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(Document{ID: tt.id})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "docno")
		})
	}
}
