// Package countries resolves ISO 3166-1 alpha-2 codes and their English names.
package countries

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Option is a select option for a country picker.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var (
	optionsOnce sync.Once
	options     []Option
	names       map[string]string
)

// Normalize trims and upper-cases a country code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code names an assigned country region.
func Valid(code string) bool {
	_, ok := Name(code)
	return ok
}

// Name returns the English display name of code.
func Name(code string) (string, bool) {
	load()
	name, ok := names[Normalize(code)]
	return name, ok
}

// Options returns every known country sorted by English name.
func Options() []Option {
	load()
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

func load() {
	optionsOnce.Do(func() {
		namer := display.English.Regions()
		names = make(map[string]string)
		for a := 'A'; a <= 'Z'; a++ {
			for b := 'A'; b <= 'Z'; b++ {
				code := string([]rune{a, b})
				region, err := language.ParseRegion(code)
				if err != nil || region.String() != code || !region.IsCountry() || region.IsPrivateUse() {
					continue
				}
				name := namer.Name(region)
				if name == "" {
					continue
				}
				names[code] = name
				options = append(options, Option{Label: name, Value: code})
			}
		}
		col := collate.New(language.English)
		sort.SliceStable(options, func(i, j int) bool {
			return col.CompareString(options[i].Label, options[j].Label) < 0
		})
	})
}
