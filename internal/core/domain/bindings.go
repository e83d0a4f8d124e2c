// Package domain file: internal/core/domain/bindings.go
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VariableValue 是模板变量的取值：标量字符串或有序字符串列表
type VariableValue struct {
	scalar string
	list   []string
	multi  bool
}

// Scalar 构造一个标量取值
func Scalar(v string) VariableValue {
	return VariableValue{scalar: v}
}

// List 构造一个列表取值
func List(values ...string) VariableValue {
	return VariableValue{list: append([]string{}, values...), multi: true}
}

// IsList 判断是否为列表取值
func (v VariableValue) IsList() bool { return v.multi }

// String 返回标量取值；列表取值返回以逗号连接的文本
func (v VariableValue) String() string {
	if !v.multi {
		return v.scalar
	}
	var b bytes.Buffer
	for i, s := range v.list {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s)
	}
	return b.String()
}

// Values 返回列表取值的副本；标量取值返回单元素列表
func (v VariableValue) Values() []string {
	if !v.multi {
		return []string{v.scalar}
	}
	return append([]string{}, v.list...)
}

// MarshalJSON 标量编码为字符串，列表编码为数组
func (v VariableValue) MarshalJSON() ([]byte, error) {
	if v.multi {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON 接受字符串、数组以及其他 JSON 标量 (转为文本)
func (v *VariableValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, item := range raw {
			list = append(list, stringify(item))
		}
		*v = VariableValue{list: list, multi: true}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw.(map[string]any); ok {
		return fmt.Errorf("变量取值不支持对象: %s", data)
	}
	*v = VariableValue{scalar: stringify(raw)}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Bindings 是变量名到取值的映射，由调用方提供，核心只读
type Bindings map[string]VariableValue

// ValueFormatter 把一个变量取值渲染为替换文本
type ValueFormatter func(VariableValue) string
