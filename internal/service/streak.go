package service

import (
	"academy_backend/internal/util"
	"sort"
	"time"
)

// StreakResult 连续天数重算结果
type StreakResult struct {
	Current int
	Longest int
}

// CanonicalDay 把任意时刻归一化为UTC日历日（YYYY-MM-DD）。
// 连续天数统一按UTC计算，避免跨设备时区差异产生不一致。
func CanonicalDay(t time.Time) string {
	return t.UTC().Format(util.DateFormat)
}

// ComputeStreak 由活动日历日集合重算连续学习天数。
//
// current：最近活动日不是 asOf 当天或前一天时归零；否则从最近活动日向前
// 逐日回数，相邻日期恰好差一天则累加，遇到断档停止。
// longest：整段历史扫描所有连续段取最大值，再与既有记录取最大——
// 历史最长只会增长，重算永远不会把它降低。
func ComputeStreak(activityDates []string, asOf time.Time, previousLongest int) StreakResult {
	days := distinctDaysDesc(activityDates)
	result := StreakResult{Current: 0, Longest: previousLongest}
	if len(days) == 0 {
		return result
	}

	today := asOf.UTC().Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)

	// current
	if days[0].Equal(today) || days[0].Equal(yesterday) {
		current := 1
		for i := 1; i < len(days); i++ {
			if days[i-1].Sub(days[i]) == 24*time.Hour {
				current++
			} else {
				break
			}
		}
		result.Current = current
	}

	// longest：全历史扫描
	run := 1
	longest := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	if longest > result.Longest {
		result.Longest = longest
	}
	if result.Current > result.Longest {
		result.Longest = result.Current
	}
	return result
}

// WeekHistory 最近7天是否有活动；索引0为6天前，索引6为 asOf 当天
func WeekHistory(activityDates []string, asOf time.Time) []bool {
	set := make(map[string]bool, len(activityDates))
	for _, d := range activityDates {
		set[d] = true
	}

	history := make([]bool, 7)
	today := asOf.UTC()
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i-6).Format(util.DateFormat)
		history[i] = set[day]
	}
	return history
}

// distinctDaysDesc 解析、去重并按新到旧排序；非法日期串被忽略
func distinctDaysDesc(dates []string) []time.Time {
	seen := make(map[string]bool, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if seen[d] {
			continue
		}
		t, err := time.ParseInLocation(util.DateFormat, d, time.UTC)
		if err != nil {
			continue
		}
		seen[d] = true
		days = append(days, t)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}
