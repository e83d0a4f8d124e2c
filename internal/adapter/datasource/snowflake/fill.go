// file: internal/adapter/datasource/snowflake/fill.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxFillPoints 限制补点后单个 frame 的桶数
const maxFillPoints = 100000

// FillMode 是时间序列缺失桶的补点方式
type FillMode int

const (
	FillNone FillMode = iota
	FillNull
	FillPrevious
	FillValue
)

// FillSpec 描述补点方式，Mode 为 FillValue 时使用 Value
type FillSpec struct {
	Mode  FillMode
	Value float64
}

// ParseFill 解析 none、null、previous 或一个数字
func ParseFill(s string) (FillSpec, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none":
		return FillSpec{}, nil
	case "null", "nil":
		return FillSpec{Mode: FillNull}, nil
	case "previous":
		return FillSpec{Mode: FillPrevious}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return FillSpec{}, fmt.Errorf("无效的补点方式 '%s'", s)
	}
	return FillSpec{Mode: FillValue, Value: v}, nil
}

func (f FillSpec) String() string {
	switch f.Mode {
	case FillNull:
		return "null"
	case FillPrevious:
		return "previous"
	case FillValue:
		return strconv.FormatFloat(f.Value, 'f', -1, 64)
	default:
		return "none"
	}
}

// fillGaps 在 [from, to) 内每个间隔起点上补齐缺失的行。frame 需已按 timeIdx 列升序排序。
func fillGaps(frame *domain.DataFrame, timeIdx int, tr domain.TimeRange, interval time.Duration, spec FillSpec) {
	if spec.Mode == FillNone || interval <= 0 || !tr.To.After(tr.From) {
		return
	}
	// 与 TIME_SLICE 一样以 Unix 纪元为对齐起点
	epoch := time.Unix(0, 0).UTC()
	start := epoch.Add(tr.From.Sub(epoch) / interval * interval)
	if int64(tr.To.Sub(start)/interval) > maxFillPoints {
		return
	}

	times := frame.Fields[timeIdx].Values
	out := make([][]any, len(frame.Fields))
	copyRow := func(j int) {
		for i, f := range frame.Fields {
			var v any
			if j < len(f.Values) {
				v = f.Values[j]
			}
			out[i] = append(out[i], v)
		}
	}
	fillRow := func(at time.Time) {
		for i := range frame.Fields {
			var v any
			switch {
			case i == timeIdx:
				v = at
			case spec.Mode == FillValue:
				v = spec.Value
			case spec.Mode == FillPrevious && len(out[i]) > 0:
				v = out[i][len(out[i])-1]
			}
			out[i] = append(out[i], v)
		}
	}

	j := 0
	for at := start; at.Before(tr.To); at = at.Add(interval) {
		matched := false
		for j < len(times) {
			rt, ok := asTime(times[j])
			if ok && rt.After(at) {
				break
			}
			if ok && rt.Equal(at) {
				matched = true
			}
			copyRow(j)
			j++
		}
		if !matched {
			fillRow(at)
		}
	}
	for ; j < len(times); j++ {
		copyRow(j)
	}

	for i, f := range frame.Fields {
		f.Values = out[i]
	}
}
