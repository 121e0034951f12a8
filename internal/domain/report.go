package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed   = "processed"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
	StatusUnsupported = "unsupported"
)

const (
	FileStatusPlanned = "planned"
	FileStatusWritten = "written"
	FileStatusExists  = "exists"
	FileStatusFailed  = "failed"
)

const (
	ErrCodeUnsupportedURL  = "unsupported_url"
	ErrCodeContentNotFound = "content_not_found"
	ErrCodeFetchFailed     = "fetch_failed"
	ErrCodeParseFailed     = "parse_failed"
	ErrCodeMissingID       = "missing_id"
	ErrCodeIOFailed        = "io_failed"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Out    string `json:"out"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed   int `json:"processed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Unsupported int `json:"unsupported"`
}

type ItemResult struct {
	InputURL  string `json:"input_url"`
	Extractor string `json:"extractor"`
	DisplayID string `json:"display_id"`
	ID        string `json:"id"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Meta     *VideoMeta        `json:"meta,omitempty"`
	Attempts []ProviderAttempt `json:"attempts"`
	Files    []FileResult      `json:"files"`
}

// ProviderAttempt 是 provider 尝试链路的可序列化形态（Err 被展开为字符串）。
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Stage    string `json:"stage"`
	Error    string `json:"error,omitempty"`
}

type FileResult struct {
	Dst    string `json:"dst"`
	Status string `json:"status"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 input_url 字典序；input_url=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].InputURL
		b := r.Items[j].InputURL
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnsupported:
			s.Unsupported++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}
