package avglen_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/avglen"
)

func TestStoreFlushReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "5.46-0.4.ini")

	c, err := avglen.Open(path)
	assert.NoError(t, err)
	_, ok := c.Lookup(50)
	assert.False(t, ok)

	c.Store(avglen.Record{ReadLen: 50, SelectedAvr: 210.5, RecordedAvr: 190.2})
	assert.NoError(t, c.Flush())

	c2, err := avglen.Open(path)
	assert.NoError(t, err)
	rec, ok := c2.Lookup(50)
	assert.True(t, ok)
	assert.Equal(t, 210.5, rec.SelectedAvr)
	assert.Equal(t, 190.2, rec.RecordedAvr)
	assert.False(t, rec.HaveMda)
}

func TestFlushNoopWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.ini")
	c, err := avglen.Open(path)
	assert.NoError(t, err)
	assert.NoError(t, c.Flush())
	_, err = avglen.Open(path)
	assert.NoError(t, err)
}

func TestStoreFlushReopenGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "5.46-0.4.ini.gz")

	c, err := avglen.Open(path)
	assert.NoError(t, err)
	c.Store(avglen.Record{ReadLen: 36, SelectedAvr: 150, RecordedAvr: 140})
	assert.NoError(t, c.Flush())

	c2, err := avglen.Open(path)
	assert.NoError(t, err)
	rec, ok := c2.Lookup(36)
	assert.True(t, ok)
	assert.Equal(t, 150.0, rec.SelectedAvr)
	assert.Equal(t, 140.0, rec.RecordedAvr)
}

func TestMdaRecordRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "5.46-0.4.ini")
	c, err := avglen.Open(path)
	assert.NoError(t, err)
	c.Store(avglen.Record{ReadLen: 50, SelectedAvr: 210, RecordedAvr: 190, MdaAvr: 85, HaveMda: true})
	assert.NoError(t, c.Flush())

	c2, err := avglen.Open(path)
	assert.NoError(t, err)
	rec, ok := c2.Lookup(50)
	assert.True(t, ok)
	assert.True(t, rec.HaveMda)
	assert.Equal(t, 85.0, rec.MdaAvr)
}
