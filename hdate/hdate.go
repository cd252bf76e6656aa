// Package hdate models historical datations: a single point or a span of
// two points, each a year or a century, optionally approximate or dubious.
// Dates reduce to a comparable numeric sort value and render to a short
// human-readable text.
package hdate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Point is one end of a datation. Value is a year, or a century ordinal
// when IsCentury is set; negative values are BC.
type Point struct {
	Value     int    `json:"value"`
	IsCentury bool   `json:"isCentury,omitempty"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
	IsApprox  bool   `json:"isApprox,omitempty"`
	IsDubious bool   `json:"isDubious,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// SortValue reduces the point to a comparable year number. A century maps
// to its midpoint year; month and day add fractions of a year.
func (p Point) SortValue() float64 {
	if p.IsCentury {
		// 13th century -> 1250; -3rd century -> -250.
		if p.Value > 0 {
			return float64(p.Value*100) - 50
		}
		return float64(p.Value*100) + 50
	}
	v := float64(p.Value)
	if p.Month > 0 {
		v += float64(p.Month-1) / 12
	}
	if p.Day > 0 {
		v += float64(p.Day-1) / 365
	}
	return v
}

// String renders the point: "c. 1265 AD", "1265", "13th c.", "250 BC?".
func (p Point) String() string {
	var b strings.Builder
	if p.IsApprox {
		b.WriteString("c. ")
	}
	if p.IsCentury {
		v := p.Value
		if v < 0 {
			v = -v
		}
		fmt.Fprintf(&b, "%s c.", ordinal(v))
	} else {
		v := p.Value
		if v < 0 {
			v = -v
		}
		fmt.Fprintf(&b, "%d", v)
	}
	if p.Value < 0 {
		b.WriteString(" BC")
	} else {
		b.WriteString(" AD")
	}
	if p.IsDubious {
		b.WriteString("?")
	}
	return b.String()
}

// Date is a historical datation: a point, or a span from A to B.
type Date struct {
	A Point  `json:"a"`
	B *Point `json:"b,omitempty"`
}

// SortValue reduces the date to one comparable number: the point's value,
// or the midpoint of the span.
func (d Date) SortValue() float64 {
	if d.B == nil {
		return d.A.SortValue()
	}
	return (d.A.SortValue() + d.B.SortValue()) / 2
}

// String renders the date, joining span ends with "-".
func (d Date) String() string {
	if d.B == nil {
		return d.A.String()
	}
	return d.A.String() + " - " + d.B.String()
}

// Parse decodes a date from its JSON payload form:
// {"a":{"value":1265,"isApprox":true},"b":{"value":1270}}.
func Parse(payload []byte) (Date, error) {
	var d Date
	if err := json.Unmarshal(payload, &d); err != nil {
		return Date{}, fmt.Errorf("hdate: parse: %w", err)
	}
	if d.A == (Point{}) && d.B == nil {
		return Date{}, fmt.Errorf("hdate: empty datation")
	}
	return d, nil
}

// FormatSortValue renders a sort value the way it is stored as a literal:
// integral values without decimals.
func FormatSortValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
