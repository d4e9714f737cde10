package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadJSON stages a JSON array of records as a table. Any other document is
// kept as a Raw item.
func (l *Loader) loadJSON(ctx context.Context, path, name string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Item{}, fmt.Errorf("failed to decode json: %w", err)
	}

	records, ok := asRecords(doc)
	if !ok {
		l.logger.Debug("json is not a record list, keeping raw", "name", name)
		return Item{Name: name, Raw: &Raw{Name: name, Source: path, Value: doc}}, nil
	}
	if len(records) == 0 {
		return emptyTable(path, name, nil), nil
	}
	return l.loadTable(ctx, path, name, l.store.LoadJSONArray)
}

// loadYAML stages a YAML list of flat records as a table. Any other document
// is kept as a Raw item.
func (l *Loader) loadYAML(ctx context.Context, path, name string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Item{}, fmt.Errorf("failed to decode yaml: %w", err)
	}

	records, ok := asRecords(doc)
	if !ok || !flat(records) {
		l.logger.Debug("yaml is not a flat record list, keeping raw", "name", name)
		return Item{Name: name, Raw: &Raw{Name: name, Source: path, Value: doc}}, nil
	}
	if len(records) == 0 {
		return emptyTable(path, name, nil), nil
	}

	tmp, err := writeStagingNDJSON(records)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = os.Remove(tmp) }()

	relation := l.nextRelation(name)
	if err := l.store.LoadNDJSON(ctx, relation, tmp); err != nil {
		return Item{}, err
	}
	return l.itemFor(ctx, path, name, relation)
}

func asRecords(doc any) ([]map[string]any, bool) {
	list, ok := doc.([]any)
	if !ok {
		return nil, false
	}
	records := make([]map[string]any, 0, len(list))
	for _, v := range list {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, rec)
	}
	return records, true
}

func flat(records []map[string]any) bool {
	for _, rec := range records {
		for _, v := range rec {
			switch v.(type) {
			case map[string]any, []any:
				return false
			}
		}
	}
	return true
}

// writeStagingNDJSON writes one JSON object per line. encoding/json sorts
// map keys, so staged columns come out in alphabetical order.
func writeStagingNDJSON(records []map[string]any) (string, error) {
	tmp, err := os.CreateTemp("", "ledgerlens-*.ndjson")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			_ = tmp.Close()
			return "", fmt.Errorf("failed to write staging record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to flush staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}
	return tmp.Name(), nil
}

// RawText renders a raw value as text. Maps and lists are rendered as YAML
// with sorted keys; scalars use their natural string form.
func RawText(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case map[string]any, []any:
		out, err := yaml.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(bytes.TrimRight(out, "\n"))
	default:
		return fmt.Sprint(t)
	}
}
