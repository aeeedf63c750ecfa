package automation

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	// ProteinTarget protein_gap_gt 使用的固定每日蛋白目标（克）
	ProteinTarget      = 150.0
	defaultProteinGapG = 30.0
)

func (e *Engine) checkCondition(ctx context.Context, rule *domain.AutomationRule) (bool, error) {
	switch rule.Condition.Kind() {
	case domain.ConditionAlways:
		return true, nil
	case domain.ConditionJournalAbsent:
		entries, err := e.today(ctx, rule.UserID, "/journal")
		if err != nil {
			return false, err
		}
		return JournalAbsent(entries, e.opts.Now()), nil
	case domain.ConditionProteinGapGT:
		meals, err := e.today(ctx, rule.UserID, "/meals")
		if err != nil {
			return false, err
		}
		grams := defaultProteinGapG
		if rule.Condition.Grams != nil {
			grams = *rule.Condition.Grams
		}
		return ProteinGapExceeds(meals, e.opts.Now(), grams), nil
	}
	log.Printf("rule %s: unknown condition type %q, treated as false", rule.ID, rule.Condition.Type)
	return false, nil
}

// today 读取当天（UTC 日历日）全天的记录，包括 dt 晚于当前时刻的
func (e *Engine) today(ctx context.Context, userID int64, path string) ([]json.RawMessage, error) {
	day := domain.DateUTC(e.opts.Now().UTC())
	q := url.Values{
		"user_id": {strconv.FormatInt(userID, 10)},
		"start":   {day.Format(time.RFC3339)},
		"end":     {day.AddDate(0, 0, 1).Add(-time.Second).Format(time.RFC3339)},
	}
	return e.api.GetList(ctx, path, q)
}

// onDate 记录的 dt 是否落在 day 所在的 UTC 日历日
func onDate(rec json.RawMessage, day time.Time) bool {
	dt, err := domain.ParseTime(gjson.GetBytes(rec, "dt").String())
	if err != nil {
		return false
	}
	return domain.DateUTC(dt).Equal(domain.DateUTC(day))
}

// JournalAbsent 今天没有任何日记时为 true
func JournalAbsent(entries []json.RawMessage, now time.Time) bool {
	for _, e := range entries {
		if onDate(e, now) {
			return false
		}
	}
	return true
}

// ProteinGap 今日蛋白缺口，不小于 0
func ProteinGap(meals []json.RawMessage, now time.Time) float64 {
	total := 0.0
	for _, m := range meals {
		if onDate(m, now) {
			total += gjson.GetBytes(m, "protein_g").Float()
		}
	}
	return math.Max(0, ProteinTarget-total)
}

// ProteinGapExceeds 缺口 >= grams 时为 true
func ProteinGapExceeds(meals []json.RawMessage, now time.Time, grams float64) bool {
	return ProteinGap(meals, now) >= grams
}
