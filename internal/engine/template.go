package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// CommandContext — данные для рендеринга команд контейнера.
//
// Используется в Go templates:
//   - {{ .RunID }}, {{ .Workdir }}
//   - {{ .Input }}, {{ .Output }} — пути входного и выходного файла стадии
//   - {{ .Params.name }}
type CommandContext struct {
	RunID   string            `json:"run_id"`
	Workdir string            `json:"workdir"`
	Input   string            `json:"input"`
	Output  string            `json:"output"`
	Params  map[string]string `json:"params"`
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	"split":     func(sep, s string) []string { return strings.Split(s, sep) },
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,

	// base, dir, ext — части пути
	"base": filepath.Base,
	"dir":  filepath.Dir,
	"ext":  filepath.Ext,

	// quote — экранирует строку для sh
	"quote": shellQuote,
}

// shellQuote оборачивает строку в одинарные кавычки для sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Render рендерит строковый шаблон с контекстом.
//
//	{{ .Input }}
//	{{ .Params.threshold | default "0.5" }}
func Render(tmpl string, ctx *CommandContext) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderCommands рендерит все команды по порядку.
func RenderCommands(commands []string, ctx *CommandContext) ([]string, error) {
	out := make([]string, 0, len(commands))
	for i, c := range commands {
		rendered, err := Render(c, ctx)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, rendered)
	}
	return out, nil
}

// Env возвращает переменные окружения контейнера: INPUT, OUTPUT, WORKDIR,
// RUN_ID и параметры run. Пустые INPUT и OUTPUT не передаются.
func (c *CommandContext) Env() map[string]string {
	env := make(map[string]string, len(c.Params)+4)
	for k, v := range c.Params {
		env[k] = v
	}
	env["RUN_ID"] = c.RunID
	env["WORKDIR"] = c.Workdir
	if c.Input != "" {
		env["INPUT"] = c.Input
	}
	if c.Output != "" {
		env["OUTPUT"] = c.Output
	}
	return env
}
