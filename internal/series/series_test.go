package series

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(ts string, close float64) Bar {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return Bar{
		Time:   t,
		Open:   Num(close),
		High:   Num(close),
		Low:    Num(close),
		Close:  Num(close),
		Volume: Num(100),
	}
}

func TestParseValue(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  Value
	}{
		{name: "Plain number", input: "42.5", want: Num(42.5)},
		{name: "Whitespace trimmed", input: " 1.0 ", want: Num(1.0)},
		{name: "Empty", input: "", want: Value{}},
		{name: "Garbage", input: "not-a-number", want: Value{}},
		{name: "Literal NaN stays invalid", input: "NaN", want: Value{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseValue(tc.input))
		})
	}
}

func TestValueAsFloat(t *testing.T) {
	assert.Equal(t, 3.14, Num(3.14).AsFloat())
	assert.True(t, math.IsNaN(Value{}.AsFloat()))
}

func TestLogReturns(t *testing.T) {
	s := New([]Bar{
		bar("2024-01-01T00:00:00Z", 100),
		bar("2024-01-02T00:00:00Z", 110),
		bar("2024-01-03T00:00:00Z", 99),
	})

	rets := s.LogReturns()
	require.Len(t, rets, 3)
	assert.True(t, math.IsNaN(rets[0]), "first bar has no predecessor")
	assert.InDelta(t, math.Log(110.0/100.0), rets[1], 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), rets[2], 1e-12)
}

func TestLogReturnsInvalidClose(t *testing.T) {
	bars := []Bar{
		bar("2024-01-01T00:00:00Z", 100),
		bar("2024-01-02T00:00:00Z", 110),
		bar("2024-01-03T00:00:00Z", 120),
	}
	bars[1].Close = Value{} // failed coercion upstream

	rets := New(bars).LogReturns()
	assert.True(t, math.IsNaN(rets[1]), "return into the bad bar")
	assert.True(t, math.IsNaN(rets[2]), "return out of the bad bar")
}

func TestSlice(t *testing.T) {
	s := New([]Bar{
		bar("2024-01-01T00:00:00Z", 1),
		bar("2024-01-02T00:00:00Z", 2),
		bar("2024-01-03T00:00:00Z", 3),
		bar("2024-01-04T00:00:00Z", 4),
	})

	t.Run("Inclusive bounds", func(t *testing.T) {
		got := s.Slice(
			mustTime(t, "2024-01-02T00:00:00Z"),
			mustTime(t, "2024-01-03T00:00:00Z"),
		)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, 2.0, got.Bars[0].Close.Float)
		assert.Equal(t, 3.0, got.Bars[1].Close.Float)
	})

	t.Run("Open ended", func(t *testing.T) {
		got := s.Slice(mustTime(t, "2024-01-03T00:00:00Z"), time.Time{})
		assert.Equal(t, 2, got.Len())
	})

	t.Run("Start beyond range yields empty series", func(t *testing.T) {
		got := s.Slice(mustTime(t, "2025-01-01T00:00:00Z"), time.Time{})
		assert.True(t, got.Empty())
	})

	t.Run("Original series untouched", func(t *testing.T) {
		_ = s.Slice(mustTime(t, "2024-01-02T00:00:00Z"), time.Time{})
		assert.Equal(t, 4, s.Len())
	})
}

func TestSpanDays(t *testing.T) {
	s := New([]Bar{
		bar("2024-01-01T00:00:00Z", 1),
		bar("2024-01-02T00:00:00Z", 2),
		bar("2024-01-03T00:00:00Z", 3),
	})
	assert.Equal(t, 2.0, s.SpanDays(), "3 daily bars span 2 calendar days")

	assert.Equal(t, 0.0, New([]Bar{bar("2024-01-01T00:00:00Z", 1)}).SpanDays())
	assert.Equal(t, 0.0, Series{}.SpanDays())
}

func TestCSVRoundTrip(t *testing.T) {
	bars := []Bar{
		bar("2024-01-01T00:00:00Z", 100.5),
		bar("2024-01-02T00:00:00Z", 101.25),
	}
	bars[1].Volume = Value{} // invalid values survive the round trip

	var buf bytes.Buffer
	require.NoError(t, New(bars).WriteCSV(&buf))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, bars[0].Time, got.Bars[0].Time)
	assert.Equal(t, 100.5, got.Bars[0].Close.Float)
	assert.False(t, got.Bars[1].Volume.Valid)
	assert.Equal(t, 101.25, got.Bars[1].Close.Float)
}

func TestReadCSVRejectsBadHeader(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("Foo,Bar\n1,2\n"))
	assert.Error(t, err)
}

func TestReadCSVRejectsBadDate(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("Date,Open,High,Low,Close,Volume\nyesterday,1,1,1,1,1\n"))
	assert.Error(t, err)
}

func mustTime(t *testing.T, ts string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	return parsed
}
