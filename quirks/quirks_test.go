// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package quirks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/ses"
)

func TestOpenQuirkDb(t *testing.T) {
	db, err := OpenQuirkDb("quirks.yaml")
	require.NoError(t, err)
	require.Len(t, db.Enclosures, 3)

	m, ok := db.LookupEnclosure("ARECA   ", "ARC-8028        ")
	assert.True(t, ok)
	assert.Equal(t, "Areca SAS expander", m.Name)
	assert.NotEmpty(t, m.Warning)

	mode, err := m.Mode()
	require.NoError(t, err)
	assert.Equal(t, ses.EiioeAuto, mode)

	m, ok = db.LookupEnclosure("LSI", "SAS2X36")
	assert.True(t, ok)
	mode, _ = m.Mode()
	assert.Equal(t, ses.EiioeForce, mode)

	// Product matches, vendor does not.
	m, ok = db.LookupEnclosure("HGST", "SAS2X36")
	assert.False(t, ok)
	assert.Equal(t, "DEFAULT", m.Name)
	mode, _ = m.Mode()
	assert.Equal(t, ses.EiioeDeclared, mode)
}

func TestParseQuirkDb(t *testing.T) {
	db, err := ParseQuirkDb(strings.NewReader(""))
	require.NoError(t, err)
	m, ok := db.LookupEnclosure("ACME", "Shelf")
	assert.False(t, ok)
	assert.Empty(t, m.Name)

	_, err = ParseQuirkDb(strings.NewReader("enclosures:\n  - name: x\n    product_regex: \"(\"\n"))
	assert.Error(t, err)

	_, err = ParseQuirkDb(strings.NewReader("enclosures:\n  - name: x\n    product_regex: y\n    eiioe: sometimes\n"))
	assert.Error(t, err)

	// No vendor means any vendor.
	db, err = ParseQuirkDb(strings.NewReader("enclosures:\n  - name: any\n    product_regex: \"^Shelf\"\n"))
	require.NoError(t, err)
	_, ok = db.LookupEnclosure("ACME", "Shelf 9000")
	assert.True(t, ok)
}

func TestOpenQuirkDbMissing(t *testing.T) {
	_, err := OpenQuirkDb(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
