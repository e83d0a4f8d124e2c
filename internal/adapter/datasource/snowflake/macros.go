// file: internal/adapter/datasource/snowflake/macros.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	macroRe    = regexp.MustCompile(`\$__(\w+)\(([^)]*)\)`)
	intervalRe = regexp.MustCompile(`\$__interval(_ms)?\b`)
)

// Expansion 是宏展开的结果
type Expansion struct {
	SQL string
	// Interval 是 $__timeGroup 的分组间隔，查询没有使用 $__timeGroup 时为 0
	Interval time.Duration
	// Fill 是 $__timeGroup 第三个参数给出的补点方式，HasFill 为 false 时未指定
	Fill    FillSpec
	HasFill bool
}

// ExpandMacros 展开查询中的宏：
//
//	$__interval                         -> 查询间隔，如 1m
//	$__interval_ms                      -> 查询间隔的毫秒数
//	$__timeFilter(col)                  -> col > 'from' AND col < 'to'
//	$__timeFrom()                       -> 'from'
//	$__timeTo()                         -> 'to'
//	$__timeGroup(col, interval[, fill]) -> TIME_SLICE(TO_TIMESTAMP_NTZ(col), 秒数, 'SECOND', 'START')
//
// 时间以 UTC RFC3339Nano 输出。使用时间宏但请求没有时间窗口时返回错误。
func ExpandMacros(sql string, req domain.QueryRequest) (Expansion, error) {
	var exp Expansion

	if intervalRe.MatchString(sql) {
		interval, err := queryInterval(req)
		if err != nil {
			return Expansion{}, err
		}
		sql = intervalRe.ReplaceAllStringFunc(sql, func(m string) string {
			if strings.HasSuffix(m, "_ms") {
				return strconv.FormatInt(interval.Milliseconds(), 10)
			}
			return formatInterval(interval)
		})
	}

	var firstErr error
	tr := req.Range
	out := macroRe.ReplaceAllStringFunc(sql, func(m string) string {
		if firstErr != nil {
			return m
		}
		parts := macroRe.FindStringSubmatch(m)
		name, arg := parts[1], strings.TrimSpace(parts[2])

		switch name {
		case "timeFilter", "timeFrom", "timeTo":
			if tr == nil || tr.IsZero() {
				firstErr = fmt.Errorf("宏 '$__%s' 需要查询时间窗口", name)
				return m
			}
		}

		switch name {
		case "timeFilter":
			if arg == "" {
				firstErr = fmt.Errorf("宏 '$__timeFilter' 缺少列名参数")
				return m
			}
			return fmt.Sprintf("%s > %s AND %s < %s", arg, quoteTime(tr.From), arg, quoteTime(tr.To))
		case "timeFrom":
			return quoteTime(tr.From)
		case "timeTo":
			return quoteTime(tr.To)
		case "timeGroup":
			expanded, err := expandTimeGroup(arg, &exp)
			if err != nil {
				firstErr = err
				return m
			}
			return expanded
		default:
			firstErr = fmt.Errorf("不支持的宏 '$__%s'", name)
			return m
		}
	})
	if firstErr != nil {
		return Expansion{}, firstErr
	}
	exp.SQL = out
	return exp, nil
}

func expandTimeGroup(arg string, exp *Expansion) (string, error) {
	args := strings.Split(arg, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	if len(args) < 2 || len(args) > 3 || args[0] == "" {
		return "", fmt.Errorf("宏 '$__timeGroup' 需要 (列名, 间隔[, 补点方式]) 参数")
	}
	interval, err := parseInterval(args[1])
	if err != nil {
		return "", fmt.Errorf("宏 '$__timeGroup' 的间隔无效: %w", err)
	}
	secs := int64(math.Ceil(interval.Seconds()))
	if secs < 1 {
		secs = 1
	}
	exp.Interval = time.Duration(secs) * time.Second
	if len(args) == 3 {
		fill, err := ParseFill(args[2])
		if err != nil {
			return "", err
		}
		exp.Fill, exp.HasFill = fill, true
	}
	return fmt.Sprintf("TIME_SLICE(TO_TIMESTAMP_NTZ(%s), %d, 'SECOND', 'START')", args[0], secs), nil
}

// queryInterval 优先使用请求给出的间隔，否则按时间窗口和最大点数估算
func queryInterval(req domain.QueryRequest) (time.Duration, error) {
	if req.IntervalMs > 0 {
		return time.Duration(req.IntervalMs) * time.Millisecond, nil
	}
	if req.Range != nil && !req.Range.IsZero() && req.MaxDataPoints > 0 {
		d := req.Range.To.Sub(req.Range.From) / time.Duration(req.MaxDataPoints)
		d = d.Truncate(time.Millisecond)
		if d < time.Millisecond {
			d = time.Millisecond
		}
		return d, nil
	}
	return 0, fmt.Errorf("宏 '$__interval' 需要查询间隔")
}

// parseInterval 解析 30s、5m、1h、1d 这类间隔
func parseInterval(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("'%s' 不是有效的间隔", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("'%s' 不是有效的间隔", s)
	}
	return d, nil
}

func formatInterval(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}

func quoteTime(t time.Time) string {
	return "'" + t.UTC().Format(time.RFC3339Nano) + "'"
}
