// Package popup builds the HTML shown when a map feature is clicked.
package popup

import (
	"html"
	"math"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// AreaPlaces is the number of decimals areas are shown with.
const AreaPlaces = 3

// Formatter renders popup content for one layer.
// AreaKey is optional; when empty, or when the feature has no finite
// numeric value under it, the area line is omitted.
type Formatter struct {
	CategoryKey   string
	CategoryLabel string
	AreaKey       string
}

// New creates a formatter with the "Land Use" label.
func New(categoryKey, areaKey string) *Formatter {
	return &Formatter{CategoryKey: categoryKey, CategoryLabel: "Land Use", AreaKey: areaKey}
}

// Format returns popup HTML for a feature's properties.
func (f *Formatter) Format(props geojson.Properties) string {
	label := f.CategoryLabel
	if label == "" {
		label = "Category"
	}

	category, _ := props[f.CategoryKey].(string)

	var b strings.Builder
	b.WriteString("<div><b>")
	b.WriteString(html.EscapeString(label))
	b.WriteString(":</b> ")
	b.WriteString(html.EscapeString(category))
	if area, ok := f.area(props); ok {
		b.WriteString("<br /><b>Area:</b> ")
		b.WriteString(FormatArea(area))
		b.WriteString(" Ha")
	}
	b.WriteString("</div>")
	return b.String()
}

func (f *Formatter) area(props geojson.Properties) (float64, bool) {
	if f.AreaKey == "" {
		return 0, false
	}
	v, ok := props[f.AreaKey].(float64)
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FormatArea renders hectares with exactly three decimals, rounding half
// away from zero on the shortest decimal form of v: 12.3456 -> "12.346",
// 2.0005 -> "2.001", 0 -> "0.000". NaN and infinities render as "".
func FormatArea(v float64) string {
	if !finite(v) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(AreaPlaces)
}
