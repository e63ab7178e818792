// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package quirks loads a YAML database of enclosures whose firmware needs special treatment
// when joining their diagnostic pages.
package quirks

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/ses"
)

// EnclosureModel is one entry of the quirk database. Vendor is compared case-insensitively
// after trimming; an empty Vendor matches any vendor.
type EnclosureModel struct {
	Name           string         `yaml:"name"`
	Vendor         string         `yaml:"vendor"`
	ProductRegex   string         `yaml:"product_regex"`
	Eiioe          string         `yaml:"eiioe"`
	Warning        string         `yaml:"warning"`
	CompiledRegexp *regexp.Regexp `yaml:"-"`
}

// Mode returns the EIIOE handling requested by the entry.
func (m EnclosureModel) Mode() (ses.EiioeMode, error) {
	return ses.ParseEiioeMode(m.Eiioe)
}

func (m EnclosureModel) matches(vendor, product string) bool {
	if m.Vendor != "" && !strings.EqualFold(strings.TrimSpace(m.Vendor), vendor) {
		return false
	}

	return m.CompiledRegexp != nil && m.CompiledRegexp.MatchString(product)
}

type QuirkDb struct {
	Enclosures []EnclosureModel `yaml:"enclosures"`
}

// LookupEnclosure returns the first entry matching the INQUIRY vendor and product strings.
// If none matches, the DEFAULT entry is returned, or the zero EnclosureModel if there is none.
func (db *QuirkDb) LookupEnclosure(vendor, product string) (EnclosureModel, bool) {
	var model EnclosureModel

	vendor = strings.TrimSpace(vendor)
	product = strings.TrimSpace(product)

	for _, e := range db.Enclosures {
		if e.Name == "DEFAULT" {
			model = e
			continue
		}

		if e.matches(vendor, product) {
			return e, true
		}
	}

	return model, false
}

// ParseQuirkDb decodes a YAML quirk database and compiles its product regexes.
func ParseQuirkDb(r io.Reader) (QuirkDb, error) {
	var db QuirkDb

	if err := yaml.NewDecoder(r).Decode(&db); err != nil && err != io.EOF {
		return db, err
	}

	for i, e := range db.Enclosures {
		if _, err := e.Mode(); err != nil {
			return db, fmt.Errorf("quirk %q: %w", e.Name, err)
		}

		if e.Name == "DEFAULT" {
			continue
		}

		re, err := regexp.Compile(e.ProductRegex)
		if err != nil {
			return db, fmt.Errorf("quirk %q: %w", e.Name, err)
		}
		db.Enclosures[i].CompiledRegexp = re
	}

	return db, nil
}

// OpenQuirkDb opens a YAML-formatted quirk database, unmarshalls it, and returns a QuirkDb.
func OpenQuirkDb(path string) (QuirkDb, error) {
	f, err := os.Open(path)
	if err != nil {
		return QuirkDb{}, err
	}

	defer f.Close()

	return ParseQuirkDb(f)
}
