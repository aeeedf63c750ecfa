package recipe

type DigestHealth struct {
	MacroDelta        string `json:"macro_delta"`
	WorkoutSuggestion string `json:"workout_suggestion"`
	SleepNote         string `json:"sleep_note"`
}

type DigestBible struct {
	NextPassage string `json:"next_passage"`
	Rationale   string `json:"rationale"`
}

type DailyDigest struct {
	Plan          []any        `json:"plan"`
	Conflicts     []any        `json:"conflicts"`
	Blocks        []any        `json:"blocks"`
	Health        DigestHealth `json:"health"`
	Bible         DigestBible  `json:"bible"`
	JournalPrompt string       `json:"journal_prompt"`
	Error         string       `json:"error,omitempty"`
}

type WeeklyReview struct {
	Wins         []any          `json:"wins"`
	Improvements []any          `json:"improvements"`
	Metrics      map[string]any `json:"metrics"`
	GoalsCheckin []any          `json:"goals_checkin"`
	HabitNotes   []any          `json:"habit_notes"`
	Error        string         `json:"error,omitempty"`
}

type MacroCoaching struct {
	ProteinGapG float64 `json:"protein_gap_g"`
	Suggestions []any   `json:"suggestions"`
	Warnings    []any   `json:"warnings"`
	Error       string  `json:"error,omitempty"`
}

type NextStep struct {
	Action      string  `json:"action"`
	DurationMin float64 `json:"duration_min"`
	Why         string  `json:"why"`
	Refs        []any   `json:"refs"`
}

type ScheduleRebalance struct {
	Blocks    []any  `json:"blocks"`
	Dropped   []any  `json:"dropped"`
	Rationale string `json:"rationale"`
	Error     string `json:"error,omitempty"`
}

type BibleReflection struct {
	Summary        string `json:"summary"`
	ThreeQuestions []any  `json:"three_questions"`
	PrayerPoints   []any  `json:"prayer_points"`
	Error          string `json:"error,omitempty"`
}

// ProfileQuestion 要么是一个问题，要么是 skip
type ProfileQuestion struct {
	Question string `json:"question,omitempty"`
	Field    string `json:"field,omitempty"`
	Skip     bool   `json:"skip,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type SkinRoutine struct {
	Routine []any  `json:"routine"`
	Notes   string `json:"notes"`
}

type ChatReply struct {
	Response string `json:"response"`
}

type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type CodeReply struct {
	Response   string            `json:"response"`
	Files      map[string]string `json:"files"`
	CodeBlocks []CodeBlock       `json:"code_blocks"`
	Operation  string            `json:"operation,omitempty"`
	Structure  string            `json:"structure,omitempty"`
	Applied    []string          `json:"applied,omitempty"`
}

type AskResult struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	Reasoning *string  `json:"reasoning"`
}
