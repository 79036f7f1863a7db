// Package http exposes the ledger as a JSON API.
//
// This file implements utilities for parsing and validating request bodies.
// Handlers accept JSON objects and, for simple clients, form-encoded bodies.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"orcamento/internal/core"
)

var (
	errMissingField = errors.New("required field missing")
	errMalformed    = errors.New("malformed request body")
)

// FieldError names the body field a parse failure belongs to.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// RequestBodyParser reads a request body once and exposes typed accessors
// over its fields, whether it was sent as JSON or form data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	fields      map[string]any
	form        url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r. Read errors, including an
// exceeded size limit, surface from Parse.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(r.Body)
	}
	return p
}

// Parse decodes the body. Empty bodies parse to no fields.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.form = url.Values{}
		return nil
	}

	if p.IsJSON() || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.fields); err != nil || p.fields == nil {
			p.err = fmt.Errorf("%w: expected a JSON object", errMalformed)
			return p.err
		}
		return nil
	}

	p.form, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformed, p.err)
	}
	return p.err
}

// Decode unmarshals the whole JSON body into v.
func (p *RequestBodyParser) Decode(v any) error {
	if p.err != nil {
		return p.err
	}
	if err := json.Unmarshal(p.body, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// IsJSON reports whether the request declared a JSON body.
func (p *RequestBodyParser) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(p.contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// Has reports whether key was sent, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.fields != nil {
		v, ok := p.fields[key]
		return ok && v != nil
	}
	if p.form != nil {
		_, ok := p.form[key]
		return ok
	}
	return false
}

// Get returns the sanitized string value of key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.fields != nil {
		if val, ok := p.fields[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.form != nil {
		return sanitizeInput(p.form.Get(key))
	}
	return ""
}

// Optional returns a pointer to the value of key, or nil when absent.
func (p *RequestBodyParser) Optional(key string) *string {
	if !p.Has(key) {
		return nil
	}
	v := p.Get(key)
	return &v
}

// Money parses a required amount. Both "1234.5" and "1234,50" are accepted.
func (p *RequestBodyParser) Money(key string) (core.Money, error) {
	if !p.Has(key) || p.Get(key) == "" {
		return core.Money{}, &FieldError{Field: key, Err: errMissingField}
	}
	cents, err := core.ParseAmountToCents(p.Get(key))
	if err != nil {
		return core.Money{}, &FieldError{Field: key, Err: err}
	}
	return core.FromCents(cents), nil
}

// OptionalMoney parses an amount if key was sent.
func (p *RequestBodyParser) OptionalMoney(key string) (*core.Money, error) {
	if !p.Has(key) {
		return nil, nil
	}
	m, err := p.Money(key)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Date parses a YYYY-MM-DD value. Absent or empty yields the zero date.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	d, err := core.ParseDate(p.Get(key))
	if err != nil {
		return core.Date{}, &FieldError{Field: key, Err: err}
	}
	return d, nil
}

// OptionalDate parses a date if key was sent.
func (p *RequestBodyParser) OptionalDate(key string) (*core.Date, error) {
	if !p.Has(key) {
		return nil, nil
	}
	d, err := p.Date(key)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// stringValue converts a decoded JSON value to its string form.
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		// json.Number
		return val.String()
	default:
		return ""
	}
}

// parseBody reads and decodes r, answering 400/413 itself on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeParseError(w, err)
		return nil, false
	}
	return p, true
}

// writeParseError maps parser and field errors to API errors.
func writeParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteError(w, ErrBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
		return
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		details := map[string]string{"field": fe.Field}
		switch {
		case errors.Is(err, errMissingField):
			WriteError(w, ErrMissingRequiredData, fe.Field+" is required", details)
		default:
			WriteError(w, ErrInvalidFormat, fe.Error(), details)
		}
		return
	}

	WriteError(w, ErrInvalidRequest, err.Error(), nil)
}
