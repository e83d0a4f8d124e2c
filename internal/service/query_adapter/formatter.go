// Package query_adapter file: internal/service/query_adapter/formatter.go
package query_adapter

import (
	"SnowAegis/internal/core/domain"
	"strings"
)

// FormatSQLList 把变量取值渲染为可直接放入 SQL 的文本。
// 列表取值渲染为 'a','b','c'，可以直接放在 IN (...) 中；
// 标量取值原样返回，引号由查询文本自己负责。
// 注意：元素内的单引号不会被转义。
func FormatSQLList(value domain.VariableValue) string {
	if !value.IsList() {
		return value.String()
	}
	return "'" + strings.Join(value.Values(), "','") + "'"
}

var _ domain.ValueFormatter = FormatSQLList
