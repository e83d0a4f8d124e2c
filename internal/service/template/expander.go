// Package template 实现宿主侧的模板变量替换。
// 支持 $name、${name}、${name:format} 与 [[name]] 四种写法，未绑定的变量保持原样。
package template

import (
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"regexp"
	"strings"
)

// 编译期断言
var _ port.TemplateExpander = (*Expander)(nil)

var variablePattern = regexp.MustCompile(`\$(\w+)|\[\[(\w+?)(?::(\w+))?\]\]|\$\{(\w+)(?::([^\}]+))?\}`)

// Expander 是 port.TemplateExpander 的默认实现，无状态，可并发使用
type Expander struct{}

// New 创建一个 Expander
func New() *Expander { return &Expander{} }

// Replace 扫描 text 中的占位符并用 bindings 中的取值替换。
// 没有显式格式时使用 format 渲染；format 为 nil 时列表以逗号连接。
func (e *Expander) Replace(text string, bindings domain.Bindings, format domain.ValueFormatter) string {
	if text == "" || len(bindings) == 0 {
		return text
	}
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := variablePattern.FindStringSubmatch(match)
		name, fmtName := groups[1], ""
		switch {
		case groups[2] != "":
			name, fmtName = groups[2], groups[3]
		case groups[4] != "":
			name, fmtName = groups[4], groups[5]
		}

		value, ok := bindings[name]
		if !ok {
			return match
		}
		if fmtName != "" {
			if rendered, known := applyNamedFormat(fmtName, value); known {
				return rendered
			}
		}
		if format == nil {
			return value.String()
		}
		return format(value)
	})
}

// applyNamedFormat 处理 ${name:format} 中的内置格式
func applyNamedFormat(name string, value domain.VariableValue) (string, bool) {
	values := value.Values()
	switch name {
	case "csv", "raw":
		return strings.Join(values, ","), true
	case "pipe":
		return strings.Join(values, "|"), true
	case "sqlstring":
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		return strings.Join(quoted, ","), true
	case "doublequote":
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
		}
		return strings.Join(quoted, ","), true
	}
	return "", false
}
