package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Normalizes(t *testing.T) {
	assert.Equal(t, Params{Page: 1, PerPage: DefaultPerPage}, New(0, 0))
	assert.Equal(t, Params{Page: 1, PerPage: DefaultPerPage}, New(-3, -1))
	assert.Equal(t, Params{Page: 2, PerPage: MaxPerPage}, New(2, 500))
	assert.Equal(t, Params{Page: 3, PerPage: 10}, New(3, 10))
}

func TestParams_OffsetLimit(t *testing.T) {
	p := New(3, 25)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 25, p.Limit())
	assert.Equal(t, 0, DefaultParams().Offset())
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/units/low-stock?page=2&per_page=5", nil)
	assert.Equal(t, Params{Page: 2, PerPage: 5}, FromRequest(r))

	r = httptest.NewRequest("GET", "/units/low-stock?page=abc&per_page=1000", nil)
	assert.Equal(t, Params{Page: 1, PerPage: MaxPerPage}, FromRequest(r))
}

func TestNewResult(t *testing.T) {
	res := NewResult([]int{1, 2}, 5, New(1, 2))
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.False(t, res.HasPrev)

	last := NewResult([]int{5}, 5, New(3, 2))
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)
}

func TestNewResult_NilBecomesEmpty(t *testing.T) {
	res := NewResult[string](nil, 0, DefaultParams())
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, 0, res.TotalPages)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Slice(items, New(1, 2)))
	assert.Equal(t, []int{5}, Slice(items, New(3, 2)))
	assert.Empty(t, Slice(items, New(4, 2)))
}
