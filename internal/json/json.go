package json

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

func Write(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return nil
}

// Encode returns a request body for v. A nil v yields a nil reader so that
// body-less POSTs stay body-less.
func Encode(v any) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode reads a response body into v. An empty body leaves v untouched.
func Decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

// Indent is used by the CLI to print responses.
func Indent(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
