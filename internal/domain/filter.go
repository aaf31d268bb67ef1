package domain

import (
	"path"
	"slices"
)

// Filter — правила отбора файлов по имени.
//
// Сопоставление идёт по базовому имени файла. Patterns — glob-шаблоны
// (path.Match), Names — точные имена. Исключение важнее включения.
// Пустой набор включений означает "подходит всё".
type Filter struct {
	IncludePatterns []string `yaml:"include_patterns,omitempty" json:"include_patterns,omitempty"`
	IncludeNames    []string `yaml:"include_names,omitempty" json:"include_names,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`
	ExcludeNames    []string `yaml:"exclude_names,omitempty" json:"exclude_names,omitempty"`
}

// IsEmpty возвращает true, если фильтр не содержит правил.
func (f Filter) IsEmpty() bool {
	return len(f.IncludePatterns) == 0 && len(f.IncludeNames) == 0 &&
		len(f.ExcludePatterns) == 0 && len(f.ExcludeNames) == 0
}

// HasIncludes возвращает true, если задано хотя бы одно правило включения.
func (f Filter) HasIncludes() bool {
	return len(f.IncludePatterns) > 0 || len(f.IncludeNames) > 0
}

// Match проверяет имя (или путь) по правилам фильтра.
func (f Filter) Match(name string) bool {
	base := path.Base(name)

	if slices.Contains(f.ExcludeNames, base) || matchAny(f.ExcludePatterns, base) {
		return false
	}

	if !f.HasIncludes() {
		return true
	}

	return slices.Contains(f.IncludeNames, base) || matchAny(f.IncludePatterns, base)
}

// WithIncludeName возвращает копию фильтра с дополнительным точным именем.
func (f Filter) WithIncludeName(name string) Filter {
	out := f
	out.IncludeNames = append(slices.Clone(f.IncludeNames), name)
	return out
}

// Includes возвращает все правила включения одной строкой для сообщений об ошибках.
func (f Filter) Includes() []string {
	out := make([]string, 0, len(f.IncludeNames)+len(f.IncludePatterns))
	out = append(out, f.IncludeNames...)
	out = append(out, f.IncludePatterns...)
	return out
}

// Validate проверяет синтаксис glob-шаблонов.
func (f Filter) Validate() error {
	for _, p := range slices.Concat(f.IncludePatterns, f.ExcludePatterns) {
		if _, err := path.Match(p, ""); err != nil {
			return err
		}
	}
	return nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
