package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Presets are the named page sizes accepted by ParsePageSize.
var Presets = map[string]PageSize{
	"A4":     {WidthMM: 210, HeightMM: 297},
	"LETTER": {WidthMM: 215.9, HeightMM: 279.4},
	"A3":     {WidthMM: 297, HeightMM: 420},
}

// PresetNames returns the preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the preset name when p matches one, otherwise "WxHmm".
func (p PageSize) String() string {
	for _, name := range PresetNames() {
		if Presets[name] == p {
			return name
		}
	}
	return fmt.Sprintf("%gx%gmm", p.WidthMM, p.HeightMM)
}

// String describes c in the form "A4 2x3, margin 10mm, spacing 5mm".
func (c Config) String() string {
	page := "auto"
	if c.PageSize != nil {
		page = c.PageSize.String()
	}
	return fmt.Sprintf("%s %dx%d, margin %gmm, spacing %gmm", page, c.Rows, c.Cols, c.MarginMM, c.SpacingMM)
}

// ParsePageSize accepts a preset name (case-insensitive) or "WxH" in
// millimetres. The empty string and "auto" mean no explicit page size.
func ParsePageSize(s string) (*PageSize, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return nil, nil
	}
	if preset, ok := Presets[strings.ToUpper(s)]; ok {
		return &preset, nil
	}
	w, h, err := parsePair(s)
	if err != nil {
		return nil, fmt.Errorf("page size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page size %q: dimensions must be positive", s)
	}
	return &PageSize{WidthMM: w, HeightMM: h}, nil
}

// ParseGrid parses "RxC" into rows and columns.
func ParseGrid(s string) (rows, cols int, err error) {
	r, c, err := parsePair(s)
	if err != nil {
		return 0, 0, fmt.Errorf("grid %q: %w", s, err)
	}
	if r != float64(int(r)) || c != float64(int(c)) || r < 1 || c < 1 {
		return 0, 0, fmt.Errorf("grid %q: rows and columns must be whole numbers >= 1", s)
	}
	return int(r), int(c), nil
}

func parsePair(s string) (float64, float64, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "×", "x")
	a, b, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH")
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
