// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Agentready - governance tooling that scores OpenAPI documents for consumption by AI agents
and records the resulting readiness level against versioned resources in an API registry.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package openapi reads the identifying header of an OpenAPI document.
//
// The document body is otherwise opaque here; validating it is the
// linter's job.
package openapi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ErrNotOpenAPI is returned for documents without an openapi or swagger key.
var ErrNotOpenAPI = errors.New("not an OpenAPI document")

// Document is the identifying header of an OpenAPI (or Swagger 2.0) document.
type Document struct {
	Path    string `yaml:"-"`
	OpenAPI string `yaml:"openapi"`
	Swagger string `yaml:"swagger"`
	Info    Info   `yaml:"info"`
}

// Info is the info object.
type Info struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// SpecVersion returns the declared OpenAPI or Swagger version.
func (d *Document) SpecVersion() string {
	if d.OpenAPI != "" {
		return d.OpenAPI
	}
	return d.Swagger
}

// MimeType guesses the media type from the file extension.
func (d *Document) MimeType() string {
	if strings.EqualFold(filepath.Ext(d.Path), ".json") {
		return "application/json"
	}
	return "application/yaml"
}

// ResourceID derives a registry id from the title, falling back to the
// file name. For example, "Orders API" -> "orders-api".
func (d *Document) ResourceID() string {
	if id := Slug(d.Info.Title); id != "" {
		return id
	}
	base := filepath.Base(d.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if id := Slug(base); id != "" && id != "openapi" && id != "swagger" {
		return id
	}
	return Slug(filepath.Base(filepath.Dir(d.Path)))
}

// VersionID derives a registry id from info.version. Versions starting with
// a digit get a "v" prefix: "1.2.0" -> "v1-2-0", "v2" -> "v2".
func (d *Document) VersionID() string {
	id := Slug(d.Info.Version)
	if id == "" {
		return "v1"
	}
	if unicode.IsDigit(rune(id[0])) {
		id = "v" + id
	}
	return id
}

// Probe reads and parses the header of the document at path.
func Probe(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes a YAML or JSON document header.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOpenAPI, err)
	}
	if doc.OpenAPI == "" && doc.Swagger == "" {
		return nil, ErrNotOpenAPI
	}
	return &doc, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses anything outside [a-z0-9] into single
// hyphens, trimming them from both ends. The result is capped at 63
// characters.
func Slug(s string) string {
	out := nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	out = strings.Trim(out, "-")
	if len(out) > 63 {
		out = strings.TrimRight(out[:63], "-")
	}
	return out
}
