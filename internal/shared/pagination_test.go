package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	start, end := p.Bounds()
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	last := NewPagination(9, 10, 25)
	assert.Equal(t, 3, last.Page)
	start, end = last.Bounds()
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)
	assert.False(t, last.HasNext())

	empty := NewPagination(0, 0, 0)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, DefaultPerPage, empty.PerPage)
	start, end = empty.Bounds()
	assert.Zero(t, start)
	assert.Zero(t, end)
	assert.False(t, empty.HasPrev())
}

func TestPageFromQuery(t *testing.T) {
	assert.Equal(t, 3, PageFromQuery(url.Values{"page": {"3"}}))
	assert.Equal(t, 1, PageFromQuery(url.Values{"page": {"-2"}}))
	assert.Equal(t, 1, PageFromQuery(url.Values{"page": {"abc"}}))
	assert.Equal(t, 1, PageFromQuery(url.Values{}))
}
