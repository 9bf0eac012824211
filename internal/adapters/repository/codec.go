package repository

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/standings"
)

// record is the persisted form shared by the SQL drivers.
type record struct {
	matchID  string
	summary  []byte
	document []byte
}

func encodeRecord(m model.MatchMetadata, o options) (record, error) {
	doc, err := json.Marshal(m)
	if err != nil {
		return record{}, fmt.Errorf("encode match %s: %w", m.MatchID, err)
	}
	sum, err := json.Marshal(standings.Summarize(m, o.now()))
	if err != nil {
		return record{}, fmt.Errorf("encode summary %s: %w", m.MatchID, err)
	}
	return record{matchID: m.MatchID, summary: sum, document: doc}, nil
}

func decodeDocument(raw []byte) (model.MatchMetadata, error) {
	var m model.MatchMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.MatchMetadata{}, fmt.Errorf("decode match document: %w", err)
	}
	return m, nil
}

func decodeSummary(raw []byte) (model.MatchSummary, error) {
	var s model.MatchSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.MatchSummary{}, fmt.Errorf("decode match summary: %w", err)
	}
	return s, nil
}
