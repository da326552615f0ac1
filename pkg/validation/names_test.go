// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		wantErr    bool
	}{
		// Valid names
		{"simple", "Article", false},
		{"single char", "A", false},
		{"with digit", "Article2", false},
		{"underscore", "Trace_Demo", false},
		{"max length", "A" + strings.Repeat("b", MaxNameLength-1), false},

		// Invalid names
		{"empty", "", true},
		{"lowercase start", "article", true},
		{"digit start", "1Article", true},
		{"graphql injection", `Article {id} }`, true},
		{"hyphen", "Trace-Demo", true},
		{"spaces", "Trace Demo", true},
		{"unicode", "Artículo", true},
		{"too long", "A" + strings.Repeat("b", MaxNameLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.collection)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCollectionName(%q) error = %v, wantErr %v", tt.collection, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePropertyName(t *testing.T) {
	tests := []struct {
		name     string
		property string
		wantErr  bool
	}{
		{"lowercase", "title", false},
		{"camel case", "docContent", false},
		{"leading underscore", "_hidden", false},
		{"empty", "", true},
		{"digit start", "2nd", true},
		{"dot", "meta.title", true},
		{"brace", "title}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePropertyName(tt.property)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePropertyName(%q) error = %v, wantErr %v", tt.property, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeCollectionName(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		want       string
		wantErr    bool
	}{
		{"already valid", "Article", "Article", false},
		{"lowercase first letter", "article", "Article", false},
		{"trimmed", "  traceDemo  ", "TraceDemo", false},
		{"invalid rejected", "trace-demo", "", true},
		{"empty rejected", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCollectionName(tt.collection)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeCollectionName(%q) error = %v, wantErr %v", tt.collection, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeCollectionName(%q) = %q, want %q", tt.collection, got, tt.want)
			}
		})
	}
}
