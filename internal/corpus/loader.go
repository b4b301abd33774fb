package corpus

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/errors"
)

type xmlDocument struct {
	DocNo  string `xml:"docno"`
	Title  string `xml:"title"`
	Author string `xml:"author"`
	Text   string `xml:"text"`
}

type xmlTopic struct {
	Num   string `xml:"num"`
	Title string `xml:"title"`
}

// LoadDocuments reads the document collection at path.
func LoadDocuments(path string) ([]Document, error) {
	f, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := ParseDocuments(f)
	if err != nil {
		return docs, fmt.Errorf("parsing %s: %w", path, err)
	}
	return docs, nil
}

// ParseDocuments decodes every <doc> element of r. A root element is not
// required. Records that fail validation are skipped with a warning. If the
// markup is malformed the result is empty and the error wraps
// ErrMalformedInput.
func ParseDocuments(r io.Reader) ([]Document, error) {
	logger := slog.Default().With("component", "corpus")
	docs := make([]Document, 0, 1400)
	skipped := 0
	err := decodeElements(r, "doc", func(d *xml.Decoder, start *xml.StartElement) error {
		var raw xmlDocument
		if err := d.DecodeElement(&raw, start); err != nil {
			return err
		}
		doc := Document{
			ID:     strings.TrimSpace(raw.DocNo),
			Title:  strings.TrimSpace(raw.Title),
			Author: strings.TrimSpace(raw.Author),
			Body:   strings.TrimSpace(raw.Text),
		}
		if err := ValidateDocument(doc); err != nil {
			skipped++
			logger.Warn("skipping invalid document", "position", len(docs)+skipped, "error", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return []Document{}, err
	}
	logger.Info("documents parsed", "documents", len(docs), "skipped", skipped)
	return docs, nil
}

// LoadQueries reads the topic file at path.
func LoadQueries(path string) ([]Query, *IDMap, error) {
	f, err := openDataset(path)
	if err != nil {
		return nil, NewIDMap(), err
	}
	defer f.Close()
	queries, ids, err := ParseQueries(f)
	if err != nil {
		return queries, ids, fmt.Errorf("parsing %s: %w", path, err)
	}
	return queries, ids, nil
}

// ParseQueries decodes every <top> element of r and assigns sequential ids
// 1..N by topic position. A topic that fails validation is skipped but keeps
// its position, so later topics never shift to a neighbour's id.
func ParseQueries(r io.Reader) ([]Query, *IDMap, error) {
	logger := slog.Default().With("component", "corpus")
	var topics []xmlTopic
	err := decodeElements(r, "top", func(d *xml.Decoder, start *xml.StartElement) error {
		var raw xmlTopic
		if err := d.DecodeElement(&raw, start); err != nil {
			return err
		}
		topics = append(topics, raw)
		return nil
	})
	if err != nil {
		return []Query{}, NewIDMap(), err
	}

	queries := make([]Query, 0, len(topics))
	ids := NewIDMap()
	for i, t := range topics {
		q := Query{
			ID:         strconv.Itoa(i + 1),
			OriginalID: strings.TrimSpace(t.Num),
			Text:       strings.TrimSpace(t.Title),
		}
		if err := ValidateQuery(q); err != nil {
			logger.Warn("skipping invalid topic", "position", q.ID, "error", err)
			continue
		}
		ids.Add(q.ID, q.OriginalID)
		queries = append(queries, q)
	}
	if len(queries) > 0 {
		logger.Info("queries parsed",
			"queries", len(queries),
			"first_original_id", queries[0].OriginalID,
			"last_original_id", queries[len(queries)-1].OriginalID,
		)
	}
	return queries, ids, nil
}

// decodeElements streams r and calls fn for every start element named
// name, at any depth.
func decodeElements(r io.Reader, name string, fn func(*xml.Decoder, *xml.StartElement) error) error {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrMalformedInput, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}
		if err := fn(d, &start); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrMalformedInput, err)
		}
	}
}

func openDataset(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDatasetMissing, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}
