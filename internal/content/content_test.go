package content

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `[
  {
    "unit": "Cells",
    "overview": "Building blocks of life",
    "sections": [
      {
        "section_title": "Membranes",
        "narrative": "Membranes separate inside from outside.",
        "key_points": ["Lipid bilayer"],
        "quizzes": [
          {"question": "What forms the membrane?", "choices": ["Lipids", "Sugars", "Salts", "Metals"], "correct_answer": "Lipids"}
        ]
      }
    ],
    "unit_quiz": [
      {"question": "Smallest unit of life?", "choices": ["Atom", "Cell", "Organ", "Tissue"], "correct_answer": "Cell"}
    ]
  }
]`

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.data[key], nil
}

func (c *memCache) Put(_ context.Context, key string, value []byte) error {
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		ok      bool
	}{
		{name: "valid", input: validDoc, ok: true},
		{name: "object", input: `{"unit":"x"}`, wantErr: ErrNotArray},
		{name: "empty array", input: `[]`, wantErr: ErrEmpty},
		{name: "null", input: `null`, wantErr: ErrEmpty},
		{name: "missing overview", input: `[{"unit":"a","sections":[]}]`},
		{name: "sections not array", input: `[{"unit":"a","overview":"b","sections":"nope"}]`},
		{name: "sections null", input: `[{"unit":"a","overview":"b","sections":null}]`},
		{name: "garbage", input: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			if tt.ok {
				require.NoError(t, err)
				require.Len(t, doc, 1)
				assert.Equal(t, "Cells", doc[0].Title)
				assert.Equal(t, "Membranes", doc[0].Sections[0].Title)
				assert.Len(t, doc[0].UnitQuiz, 1)
				return
			}
			require.Error(t, err)
			assert.Nil(t, doc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckReportsMismatchedAnswers(t *testing.T) {
	doc := Document{{
		Title: "U",
		Sections: []Section{{
			Title: "S",
			Quizzes: []Question{
				{Question: "ok", Choices: []string{"A", "B"}, CorrectAnswer: "A"},
				{Question: "bad", Choices: []string{"A", "B"}, CorrectAnswer: "a"},
			},
		}},
		UnitQuiz: []Question{
			{Question: "unit bad", Choices: []string{"X"}, CorrectAnswer: "Y"},
		},
	}}

	issues := Check(doc)
	require.Len(t, issues, 2)
	assert.Equal(t, Issue{Unit: 0, Section: 0, Question: 1, Text: "bad"}, issues[0])
	assert.Equal(t, Issue{Unit: 0, Section: -1, Question: 0, Text: "unit bad"}, issues[1])
	assert.Contains(t, issues[1].String(), "unit 1 quiz question 1")
}

func TestQuestionCount(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.QuestionCount())
}

func TestLoadFromFileRefreshesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o644))
	cache := newMemCache()

	doc := NewLoader(path, cache, WithLogger(quietLogger())).Load(context.Background())

	require.NotNil(t, doc)
	assert.Equal(t, "Cells", doc[0].Title)
	assert.JSONEq(t, validDoc, string(cache.data[CacheKey]))
}

func TestLoadInvalidSourceClearsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	cache := newMemCache()
	cache.data[CacheKey] = []byte(validDoc)

	doc := NewLoader(path, cache, WithLogger(quietLogger())).Load(context.Background())

	assert.Nil(t, doc)
	assert.NotContains(t, cache.data, CacheKey)
}

func TestLoadMissingSourceFallsBackToCache(t *testing.T) {
	cache := newMemCache()
	cache.data[CacheKey] = []byte(validDoc)

	missing := filepath.Join(t.TempDir(), "nope.json")
	doc := NewLoader(missing, cache, WithLogger(quietLogger())).Load(context.Background())

	require.NotNil(t, doc)
	assert.Equal(t, "Cells", doc[0].Title)
	assert.Contains(t, cache.data, CacheKey)
}

func TestLoadNothingAvailable(t *testing.T) {
	doc := NewLoader("", newMemCache(), WithLogger(quietLogger())).Load(context.Background())
	assert.Nil(t, doc)

	doc = NewLoader("", nil, WithLogger(quietLogger())).Load(context.Background())
	assert.Nil(t, doc)
}

func TestLoadCorruptCacheIsDiscarded(t *testing.T) {
	cache := newMemCache()
	cache.data[CacheKey] = []byte(`{broken`)

	doc := NewLoader("", cache, WithLogger(quietLogger())).Load(context.Background())

	assert.Nil(t, doc)
	assert.NotContains(t, cache.data, CacheKey)
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+FileName {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, validDoc)
	}))
	defer srv.Close()

	cache := newMemCache()
	doc := NewLoader(srv.URL+"/"+FileName, cache, WithLogger(quietLogger())).Load(context.Background())
	require.NotNil(t, doc)
	assert.Contains(t, cache.data, CacheKey)

	// A 404 is "unavailable", so the cache just filled is used.
	doc = NewLoader(srv.URL+"/missing.json", cache, WithLogger(quietLogger())).Load(context.Background())
	require.NotNil(t, doc)
	assert.Equal(t, "Cells", doc[0].Title)
}

func TestWriteFileRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "public", FileName)
	require.NoError(t, WriteFile(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"unit\": \"Cells\"")

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc, again)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")
}
