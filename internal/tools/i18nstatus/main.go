// Package main renders translator status reports for the error message catalogs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/burrowworks/critterledger/internal/errors/i18n"
)

type report struct {
	BaseLocale string         `json:"base_locale"`
	Locales    []localeStatus `json:"locales"`
}

type localeStatus struct {
	Locale       string   `json:"locale"`
	BaseCodes    int      `json:"base_codes"`
	Translated   int      `json:"translated"`
	Missing      int      `json:"missing"`
	Extra        int      `json:"extra"`
	Completion   float64  `json:"completion"`
	MissingCodes []string `json:"missing_codes"`
	ExtraCodes   []string `json:"extra_codes"`
}

func main() {
	var baseLocale string
	var markdownOut string
	var jsonOut string

	flag.StringVar(&baseLocale, "base-locale", i18n.BaseLocale, "base locale used as translation source of truth")
	flag.StringVar(&markdownOut, "out", "i18n-status.md", "markdown output path")
	flag.StringVar(&jsonOut, "json-out", "i18n-status.json", "json output path")
	flag.Parse()

	locales := i18n.Locales()
	if !containsLocale(locales, baseLocale) {
		fatalf("base locale %q is missing from catalogs", baseLocale)
	}

	rep := buildReport(locales, baseLocale)
	if err := writeJSON(jsonOut, rep); err != nil {
		fatalf("write json report: %v", err)
	}
	if err := writeMarkdown(markdownOut, rep); err != nil {
		fatalf("write markdown report: %v", err)
	}
	fmt.Printf("wrote %s and %s\n", markdownOut, jsonOut)
}

func buildReport(locales []string, baseLocale string) report {
	baseCodes := i18n.GetCatalog(baseLocale).Codes()
	baseSet := codeSet(baseCodes)

	statuses := make([]localeStatus, 0, len(locales))
	for _, locale := range locales {
		codes := i18n.GetCatalog(locale).Codes()
		missing := codesNotIn(baseCodes, codeSet(codes))
		extra := codesNotIn(codes, baseSet)
		translated := len(baseCodes) - len(missing)

		statuses = append(statuses, localeStatus{
			Locale:       locale,
			BaseCodes:    len(baseCodes),
			Translated:   translated,
			Missing:      len(missing),
			Extra:        len(extra),
			Completion:   percent(translated, len(baseCodes)),
			MissingCodes: missing,
			ExtraCodes:   extra,
		})
	}

	return report{BaseLocale: baseLocale, Locales: statuses}
}

func writeJSON(path string, rep report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeMarkdown(path string, rep report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	var b strings.Builder
	b.WriteString("# Error Message Catalog Status\n\n")
	b.WriteString("Generated by `go run ./internal/tools/i18nstatus`.\n\n")
	b.WriteString("Base locale: `")
	b.WriteString(rep.BaseLocale)
	b.WriteString("`.\n\n")

	b.WriteString("## Locale Summary\n\n")
	b.WriteString("| Locale | Base Codes | Translated | Missing | Extra | Completion |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
	for _, locale := range rep.Locales {
		b.WriteString(fmt.Sprintf("| `%s` | %d | %d | %d | %d | %.1f%% |\n", locale.Locale, locale.BaseCodes, locale.Translated, locale.Missing, locale.Extra, locale.Completion))
	}

	for _, locale := range rep.Locales {
		if len(locale.MissingCodes) == 0 && len(locale.ExtraCodes) == 0 {
			continue
		}
		b.WriteString("\n## Locale: `")
		b.WriteString(locale.Locale)
		b.WriteString("`\n")

		if len(locale.MissingCodes) > 0 {
			b.WriteString("\n### Missing Codes\n\n")
			for _, code := range locale.MissingCodes {
				b.WriteString("- `")
				b.WriteString(code)
				b.WriteString("`\n")
			}
		}
		if len(locale.ExtraCodes) > 0 {
			b.WriteString("\n### Extra Codes\n\n")
			for _, code := range locale.ExtraCodes {
				b.WriteString("- `")
				b.WriteString(code)
				b.WriteString("`\n")
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// codesNotIn keeps the sorted order of codes, so report lists stay stable.
func codesNotIn(codes []string, set map[string]struct{}) []string {
	out := make([]string, 0)
	for _, code := range codes {
		if _, ok := set[code]; !ok {
			out = append(out, code)
		}
	}
	return out
}

func codeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

func containsLocale(locales []string, locale string) bool {
	for _, candidate := range locales {
		if candidate == locale {
			return true
		}
	}
	return false
}

func percent(numerator int, denominator int) float64 {
	if denominator <= 0 {
		return 100
	}
	value := float64(numerator) * 100 / float64(denominator)
	return math.Round(value*10) / 10
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
