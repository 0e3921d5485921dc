package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateParserMonthFirst(t *testing.T) {
	p, err := DateParserFor("mdy")
	require.NoError(t, err)

	cases := map[string]time.Time{
		"01/02/1980":  day(1980, time.January, 2),
		"1/2/1980":    day(1980, time.January, 2),
		"01-02-1980":  day(1980, time.January, 2),
		"01.02.80":    day(1980, time.January, 2),
		"1980-01-02":  day(1980, time.January, 2),
		" 12/31/1999": day(1999, time.December, 31),
	}
	for in, want := range cases {
		got, err := p.Parse(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%q: want %s got %s", in, want, got)
	}

	_, err = p.Parse("31/12/1999")
	assert.ErrorIs(t, err, ErrUnparseableDate)
}

func TestDateParserDayFirst(t *testing.T) {
	p, err := DateParserFor("dmy")
	require.NoError(t, err)

	got, err := p.Parse("01/02/1980")
	require.NoError(t, err)
	assert.True(t, day(1980, time.February, 1).Equal(got))
}

func TestDateParserBothSurfacesAmbiguity(t *testing.T) {
	p, err := DateParserFor("both")
	require.NoError(t, err)

	_, err = p.Parse("01/02/1980")
	assert.ErrorIs(t, err, ErrAmbiguousDate)

	got, err := p.Parse("05/05/1980")
	require.NoError(t, err, "same reading under both orders is not ambiguous")
	assert.True(t, day(1980, time.May, 5).Equal(got))

	got, err = p.Parse("13/02/1980")
	require.NoError(t, err)
	assert.True(t, day(1980, time.February, 13).Equal(got))
}

func TestDateParserRejectsGarbage(t *testing.T) {
	p := NewDateParser("2006-01-02")
	for _, in := range []string{"", "   ", "yesterday", "1980-13-01"} {
		_, err := p.Parse(in)
		assert.ErrorIs(t, err, ErrUnparseableDate, in)
	}

	_, err := DateParserFor("ymd")
	assert.Error(t, err)
}
