// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for names that end up in
// Weaviate schema requests and GraphQL queries.
//
// Collection and property names are interpolated into GraphQL query text
// by the Weaviate client, so anything outside the GraphQL name grammar is
// rejected before it reaches the wire.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest collection or property name accepted.
const MaxNameLength = 230

var (
	// collectionPattern matches Weaviate class names: a capital letter
	// followed by letters, digits or underscores.
	collectionPattern = regexp.MustCompile(`^[A-Z][_0-9A-Za-z]*$`)

	// propertyPattern matches GraphQL field names.
	propertyPattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)
)

// ValidateCollectionName validates a Weaviate collection (class) name.
//
// Valid names:
//   - 1-230 characters
//   - Start with an uppercase letter A-Z
//   - Continue with letters, digits or underscores
//
// Example:
//
//	if err := validation.ValidateCollectionName(name); err != nil {
//	    return fmt.Errorf("invalid collection: %w", err)
//	}
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("collection name %q exceeds %d characters", name, MaxNameLength)
	}
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q (must start with A-Z and contain only letters, digits or underscores)", name)
	}
	return nil
}

// ValidatePropertyName validates a property name of a collection.
func ValidatePropertyName(name string) error {
	if name == "" {
		return fmt.Errorf("property name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("property name %q exceeds %d characters", name, MaxNameLength)
	}
	if !propertyPattern.MatchString(name) {
		return fmt.Errorf("invalid property name %q", name)
	}
	return nil
}

// NormalizeCollectionName trims name and upper-cases its first letter, as
// Weaviate does when it stores a class, then validates the result.
//
//	name, err := validation.NormalizeCollectionName(" articles ")
//	// name == "Articles"
func NormalizeCollectionName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if r, size := utf8.DecodeRuneInString(name); size > 0 {
		name = string(unicode.ToUpper(r)) + name[size:]
	}
	if err := ValidateCollectionName(name); err != nil {
		return "", err
	}
	return name, nil
}
