package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/pmvx/internal/app/run"
	"github.com/John-Robertt/pmvx/internal/config"
	"github.com/John-Robertt/pmvx/internal/domain"
)

var _ run.Observer = (*progressLog)(nil)

// progressLog 把 run 事件写成结构化日志（stderr），不污染 stdout 的 JSON 输出契约。
// zerolog.Logger 本身并发安全，这里不需要额外加锁。
type progressLog struct {
	log zerolog.Logger
}

func newProgressLog(l zerolog.Logger) *progressLog {
	return &progressLog{log: l}
}

func (p *progressLog) OnStart(eff config.EffectiveConfig, total int) {
	mode := "dry-run"
	if eff.Apply {
		mode = "apply"
	}
	p.log.Info().
		Str("mode", mode).
		Int("urls", total).
		Str("out", eff.Out).
		Msg("pmvx extract")
	p.log.Debug().
		Int("concurrency", eff.Concurrency).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Bool("image_proxy", eff.ImageProxy).
		Bool("write_nfo", eff.WriteNFO).
		Bool("write_thumbnail", eff.WriteThumbnail).
		Bool("custom_ua", strings.TrimSpace(eff.UserAgent) != "").
		Msg("配置（生效）")
}

func (p *progressLog) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	ev := p.log.Debug().Str("phase", name).Str("dur", formatShortDuration(dur))
	if name == "input" {
		ev = ev.Int("urls", intField(fields, "urls")).
			Int("duplicates", intField(fields, "duplicates")).
			Int("workers", intField(fields, "workers"))
	}
	ev.Msg("阶段完成")
}

func (p *progressLog) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	prefix := fmt.Sprintf("[%d/%d]", idx, total)
	switch res.Status {
	case domain.StatusFailed, domain.StatusUnsupported:
		p.log.Warn().
			Str("url", res.InputURL).
			Str("code", res.ErrorCode).
			Str("attempts", formatAttemptChain(res.Attempts, -1)).
			Str("dur", formatShortDuration(dur)).
			Msg(prefix + " " + truncate(res.ErrorMsg, 160))
	case domain.StatusSkipped:
		p.log.Info().
			Str("url", res.InputURL).
			Str("id", res.ID).
			Msg(prefix + " SKIP（sidecar 已存在）")
	default:
		p.log.Info().
			Str("url", res.InputURL).
			Str("id", res.ID).
			Int("files", len(res.Files)).
			Str("dur", formatShortDuration(dur)).
			Msg(prefix + " OK")
	}
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// truncate 按字符（rune）截断，不会切坏中文错误信息。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatAttemptChain(attempts []domain.ProviderAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
		if em := strings.TrimSpace(a.Error); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}
