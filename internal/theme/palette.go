// Package theme resolves a color scheme into a fixed palette once per
// process, so callers receive explicit colors instead of branching on
// light/dark at every call site.
package theme

// FallbackColor is used whenever a category or income type has no
// configured display color.
const FallbackColor = "#9e9e9e"

type Scheme string

const (
	Light Scheme = "light"
	Dark  Scheme = "dark"
)

// Palette is the resolved set of display colors for one scheme.
type Palette struct {
	Scheme   Scheme
	Fallback string
	Income   string
	Expense  string
	Net      string
}

// Resolve maps a scheme name to its palette. Unknown schemes resolve to
// the light palette.
func Resolve(scheme string) Palette {
	switch Scheme(scheme) {
	case Dark:
		return Palette{
			Scheme:   Dark,
			Fallback: FallbackColor,
			Income:   "#81c784",
			Expense:  "#e57373",
			Net:      "#64b5f6",
		}
	default:
		return Palette{
			Scheme:   Light,
			Fallback: FallbackColor,
			Income:   "#2e7d32",
			Expense:  "#c62828",
			Net:      "#1565c0",
		}
	}
}
