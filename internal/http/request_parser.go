// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating JSON request
// bodies and path parameters.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"categorizer/internal/core"
	"categorizer/internal/services"
)

// maxJSONBody caps JSON request bodies; uploads have their own limit.
const maxJSONBody = 1 << 20

// decodeJSON reads the whole body as one JSON value. Numbers are kept as
// json.Number so integral values and decimal amounts survive unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request) (any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return nil, err
		case errors.Is(err, io.EOF):
			return nil, core.Validationf("Missing request body.")
		default:
			return nil, core.Validationf("Invalid JSON body.")
		}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, core.Validationf("Invalid JSON body.")
	}
	return v, nil
}

// decodeObject is decodeJSON for endpoints that take a JSON object.
func decodeObject(w http.ResponseWriter, r *http.Request) (fields, error) {
	v, err := decodeJSON(w, r)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, core.Validationf("Request body must be a JSON object.")
	}
	return fields(obj), nil
}

// fields reads typed values out of a decoded JSON object. Getters return nil
// for absent keys and a validation error for values of the wrong type.
type fields map[string]any

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// text returns a sanitized string for key; absent and null both give nil.
func (f fields) text(key string) (*string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, core.Validationf("'%s' must be a string.", key)
	}
	s = sanitizeInput(s)
	return &s, nil
}

// optionalText keeps the difference between an absent key and an explicit null.
func (f fields) optionalText(key string) (services.OptionalString, error) {
	if !f.has(key) {
		return services.OptionalString{}, nil
	}
	s, err := f.text(key)
	if err != nil {
		return services.OptionalString{}, err
	}
	return services.OptionalString{Set: true, Value: s}, nil
}

// date returns the raw date string. A present non-string value is invalid.
func (f fields) date(key string) (*string, error) {
	v, ok := f[key]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, core.ErrInvalidDate
	}
	return &s, nil
}

// amount accepts a JSON string or number and returns its textual form.
func (f fields) amount(key string) (*string, error) {
	v, ok := f[key]
	if !ok {
		return nil, nil
	}
	s, ok := amountText(v)
	if !ok {
		return nil, core.ErrInvalidAmount
	}
	return &s, nil
}

func (f fields) boolean(key string) (*bool, error) {
	v, ok := f[key]
	if !ok {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, core.Validationf("'%s' must be a boolean.", key)
	}
	return &b, nil
}

// id accepts an integral JSON number or a digit string.
func (f fields) id(key string) (*int64, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, core.Validationf("'%s' must be an integer.", key)
	}
	return &n, nil
}

func (f fields) idList(key string) ([]int64, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, core.Validationf("'%s' must be a list of integers.", key)
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		n, ok := toInt64(item)
		if !ok {
			return nil, core.Validationf("'%s' must be a list of integers.", key)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func amountText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// duplicateCandidates turns the bulk duplicate-check body into candidates.
// Entries that cannot be read are marked malformed instead of failing the batch.
func duplicateCandidates(v any) ([]services.DuplicateCandidate, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, core.Validationf("Expected a list of transactions.")
	}

	out := make([]services.DuplicateCandidate, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			out[i].Malformed = true
			continue
		}
		date, dateOK := obj["Date"].(string)
		amount, amountOK := amountText(obj["Amount"])
		if !dateOK || !amountOK {
			out[i].Malformed = true
			continue
		}
		out[i].Date = date
		out[i].Amount = amount

		switch desc := obj["Description"].(type) {
		case nil:
		case string:
			desc = sanitizeInput(desc)
			out[i].Description = &desc
		default:
			out[i].Malformed = true
		}
	}
	return out, nil
}

// pathID reads an integer path segment. Non-integers never match a resource.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, core.NotFoundf("The requested URL was not found on the server.")
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
