// Copyright (c) 2025, Kubeterm Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serializers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents the output format type
type Format string

const (
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
	// FormatTable outputs data in table format
	FormatTable Format = "table"
)

func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// Writer handles serialization of data to various output formats.
type Writer struct {
	format Format
	output io.Writer
}

// NewWriter creates a new Writer with the specified format and output destination.
// If output is nil, os.Stdout will be used.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	return &Writer{
		format: format,
		output: output,
	}
}

// Write serializes v to the configured output in the configured format.
func (w *Writer) Write(v any) error {
	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w.output)
		defer enc.Close()
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return nil
	case FormatTable:
		return w.writeTable(v)
	default:
		enc := json.NewEncoder(w.output)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

// writeTable renders a struct or a slice of structs as an aligned table using
// the json field tags for column names.
func (w *Writer) writeTable(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))

	tw := tabwriter.NewWriter(w.output, 0, 4, 2, ' ', 0)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			fmt.Fprintln(tw, "(no items)")
			return tw.Flush()
		}
		first := reflect.Indirect(rv.Index(0))
		if first.Kind() != reflect.Struct {
			for i := 0; i < rv.Len(); i++ {
				fmt.Fprintf(tw, "%v\n", rv.Index(i).Interface())
			}
			return tw.Flush()
		}
		cols := columnNames(first.Type())
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
		for i := 0; i < rv.Len(); i++ {
			row := reflect.Indirect(rv.Index(i))
			fmt.Fprintln(tw, strings.Join(rowValues(row), "\t"))
		}
	case reflect.Struct:
		// Single struct renders as KEY VALUE pairs.
		cols := columnNames(rv.Type())
		vals := rowValues(rv)
		for i := range cols {
			fmt.Fprintf(tw, "%s\t%s\n", cols[i], vals[i])
		}
	default:
		fmt.Fprintf(tw, "%v\n", v)
	}

	return tw.Flush()
}

func columnNames(t reflect.Type) []string {
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if base, _, _ := strings.Cut(tag, ","); base != "" && base != "-" {
				name = base
			}
		}
		names = append(names, strings.ToUpper(name))
	}
	return names
}

func rowValues(v reflect.Value) []string {
	vals := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		vals = append(vals, fmt.Sprintf("%v", v.Field(i).Interface()))
	}
	return vals
}
