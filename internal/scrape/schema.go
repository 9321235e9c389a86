package scrape

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"ritasuite/internal/providers/gemini"
)

// ListingsKey is the container property holding extracted records.
const ListingsKey = "listings"

// ListingSchema is the data-driven extraction schema built from the
// user-declared field list. Each field becomes a required string attribute of
// one listing record; listings are collected under ListingsKey.
type ListingSchema struct {
	fields []string
}

// NewListingSchema builds a schema from trimmed, non-empty field names. Field
// names keep their declared order; spaces are normalized to underscores the
// way extraction models expect attribute names.
func NewListingSchema(fields []string) (*ListingSchema, error) {
	var cleaned []string
	seen := make(map[string]bool)
	for _, f := range fields {
		f = strings.ReplaceAll(strings.TrimSpace(f), " ", "_")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		cleaned = append(cleaned, f)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("scrape: field list is empty")
	}
	return &ListingSchema{fields: cleaned}, nil
}

// Fields returns the normalized field names in declared order.
func (s *ListingSchema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// ResponseSchema renders the schema in the form the extraction provider
// expects: an object with a required array of listing objects whose string
// attributes are all required.
func (s *ListingSchema) ResponseSchema() *gemini.Schema {
	properties := make(map[string]*gemini.Schema, len(s.fields))
	for _, f := range s.fields {
		properties[f] = gemini.NewStringSchema()
	}
	listing := gemini.NewObjectSchema(properties, s.Fields())
	return gemini.NewObjectSchema(
		map[string]*gemini.Schema{ListingsKey: gemini.NewArraySchema(listing)},
		[]string{ListingsKey},
	)
}

// Decode validates the extraction payload against the schema and returns the
// listings. The payload must be an object with the listings container; every
// listing must provide a string value for every declared field. A payload
// carrying an "error" key is reported with the provider's detail message.
func (s *ListingSchema) Decode(payload json.RawMessage) ([]map[string]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("scrape: payload is not a JSON object: %w", err)
	}

	if errRaw, ok := envelope["error"]; ok {
		detail := string(errRaw)
		if d, ok := envelope["details"]; ok {
			detail = string(d)
		}
		return nil, fmt.Errorf("scrape: extraction reported an error: %s", strings.Trim(detail, `"`))
	}

	listingsRaw, ok := envelope[ListingsKey]
	if !ok {
		return nil, fmt.Errorf("scrape: payload is missing %q", ListingsKey)
	}

	var rawListings []map[string]json.RawMessage
	if err := json.Unmarshal(listingsRaw, &rawListings); err != nil {
		return nil, fmt.Errorf("scrape: %q is not an array of objects: %w", ListingsKey, err)
	}

	listings := make([]map[string]string, 0, len(rawListings))
	for i, raw := range rawListings {
		listing := make(map[string]string, len(s.fields))
		for _, field := range s.fields {
			valueRaw, ok := raw[field]
			if !ok {
				return nil, fmt.Errorf("scrape: listing %d is missing field %q", i, field)
			}
			var value string
			if err := json.Unmarshal(valueRaw, &value); err != nil {
				return nil, fmt.Errorf("scrape: listing %d field %q is not a string", i, field)
			}
			listing[field] = value
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// CSV flattens listings to tabular form: one header row of declared fields,
// one data row per listing.
func (s *ListingSchema) CSV(listings []map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.fields); err != nil {
		return nil, fmt.Errorf("scrape: write csv header: %w", err)
	}
	for _, listing := range listings {
		row := make([]string, len(s.fields))
		for i, field := range s.fields {
			row[i] = listing[field]
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("scrape: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("scrape: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
