// file: internal/adapter/datasource/snowflake/frames.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// FieldTypeTime 标记时间列
const FieldTypeTime = "time"

// maxExactInt 是 float64 能精确表示的最大整数 2^53。结果经 structpb 传输时数字都会变成 double。
const maxExactInt = 1 << 53

// frameFromRows 把结果集按列转换为一个 DataFrame
func frameFromRows(rows *sql.Rows) (*domain.DataFrame, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("读取结果列信息失败: %w", err)
	}
	frame := &domain.DataFrame{Fields: make([]*domain.Field, len(cols))}
	for i, c := range cols {
		frame.Fields[i] = &domain.Field{Name: c.Name(), Type: c.DatabaseTypeName(), Values: []any{}}
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range dest {
			frame.Fields[i].Values = append(frame.Fields[i].Values, normalizeValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frame, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	case int64:
		if t > maxExactInt || t < -maxExactInt {
			return strconv.FormatInt(t, 10)
		}
		return v
	case uint64:
		if t > maxExactInt {
			return strconv.FormatUint(t, 10)
		}
		return v
	default:
		return v
	}
}

// toTimeSeries 把 timeColumns 指定的列标记为时间列，并按第一个时间列升序排序行。
// timeColumns 为空时自动识别值为时间的列。返回排序所用列的下标，没有时间列时返回 -1。
func toTimeSeries(frame *domain.DataFrame, timeColumns []string) int {
	var timeIdx []int
	if len(timeColumns) > 0 {
		for _, name := range timeColumns {
			for i, f := range frame.Fields {
				if f.Name == name {
					timeIdx = append(timeIdx, i)
				}
			}
		}
	} else {
		for i, f := range frame.Fields {
			if len(f.Values) > 0 {
				if _, ok := asTime(f.Values[0]); ok {
					timeIdx = append(timeIdx, i)
				}
			}
		}
	}
	if len(timeIdx) == 0 {
		return -1
	}

	for _, i := range timeIdx {
		f := frame.Fields[i]
		f.Type = FieldTypeTime
		for j, v := range f.Values {
			if t, ok := asTime(v); ok {
				f.Values[j] = t
			}
		}
	}

	sortBy := frame.Fields[timeIdx[0]].Values
	order := make([]int, len(sortBy))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, _ := asTime(sortBy[order[a]])
		tb, _ := asTime(sortBy[order[b]])
		return ta.Before(tb)
	})
	for _, f := range frame.Fields {
		sorted := make([]any, len(f.Values))
		for dst, src := range order {
			if src < len(f.Values) {
				sorted[dst] = f.Values[src]
			}
		}
		f.Values = sorted
	}
	return timeIdx[0]
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
