package contextbuilder

import (
	"encoding/json"
	"math"
	"time"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/tidwall/gjson"
)

type MacroTotals struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// CalculateMacros 对餐食逐项求和，缺失字段按 0
func CalculateMacros(meals []json.RawMessage) MacroTotals {
	var t MacroTotals
	for _, m := range meals {
		t.Calories += gjson.GetBytes(m, "calories").Float()
		t.ProteinG += gjson.GetBytes(m, "protein_g").Float()
		t.CarbsG += gjson.GetBytes(m, "carbs_g").Float()
		t.FatG += gjson.GetBytes(m, "fat_g").Float()
	}
	return t
}

type Birthday struct {
	Contact   json.RawMessage `json:"contact"`
	DaysUntil int             `json:"days_until"`
}

// UpcomingBirthdays 生日投影到今年（已过则明年），按 UTC 日历日计算距离，0 <= days <= within
func UpcomingBirthdays(contacts []json.RawMessage, now time.Time, within int) []Birthday {
	today := domain.DateUTC(now)
	res := []Birthday{}
	for _, c := range contacts {
		raw := gjson.GetBytes(c, "birthday").String()
		if raw == "" {
			continue
		}
		bday, err := domain.ParseTime(raw)
		if err != nil {
			continue
		}
		next := time.Date(today.Year(), bday.Month(), bday.Day(), 0, 0, 0, 0, time.UTC)
		if next.Before(today) {
			next = time.Date(today.Year()+1, bday.Month(), bday.Day(), 0, 0, 0, 0, time.UTC)
		}
		days := int(next.Sub(today).Hours() / 24)
		if days >= 0 && days <= within {
			res = append(res, Birthday{Contact: c, DaysUntil: days})
		}
	}
	return res
}

type Fatigue struct {
	AvgSleepHours  float64 `json:"avg_sleep_hours"`
	WorkoutsLast3d int     `json:"workouts_last_3d"`
	EnergyLevel    string  `json:"energy_level"`
}

// FatigueSignal 取最近 3 条睡眠的平均时长与近 3 天训练次数估算精力
func FatigueSignal(sleep, workouts []json.RawMessage, now time.Time) Fatigue {
	recent := sleep
	if len(recent) > 3 {
		recent = recent[:3]
	}
	total := 0.0
	for _, s := range recent {
		total += gjson.GetBytes(s, "duration_min").Float()
	}
	avg := total / math.Max(float64(len(recent)), 1)

	cutoff := now.Add(-72 * time.Hour)
	count := 0
	for _, w := range workouts {
		dt, err := domain.ParseTime(gjson.GetBytes(w, "dt").String())
		if err != nil {
			continue
		}
		if !dt.Before(cutoff) {
			count++
		}
	}

	level := "low"
	switch {
	case avg >= 420 && count <= 2:
		level = "high"
	case avg >= 360:
		level = "medium"
	}
	return Fatigue{
		AvgSleepHours:  math.Round(avg/60*10) / 10,
		WorkoutsLast3d: count,
		EnergyLevel:    level,
	}
}
