package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/pmvx/internal/config"
	"github.com/John-Robertt/pmvx/internal/domain"
	"github.com/John-Robertt/pmvx/internal/infra/cache"
	"github.com/John-Robertt/pmvx/internal/infra/fsx"
	"github.com/John-Robertt/pmvx/internal/infra/httpx"
	"github.com/John-Robertt/pmvx/internal/infra/imgx"
	"github.com/John-Robertt/pmvx/internal/nfo"
	"github.com/John-Robertt/pmvx/internal/provider"
	"github.com/John-Robertt/pmvx/internal/provider/metatag"
)

const (
	infoName   = "info.json"
	nfoName    = "movie.nfo"
	posterName = "poster.jpg"

	stageCache = "cache"
)

// Execute 对一组 URL 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 单条失败只影响该条 item，不影响其他 URL。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, urls []string) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, reg, urls, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, urls []string, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	inputs, duplicates := dedupURLs(reg, urls)
	if obs != nil {
		obs.OnStart(eff, len(inputs))
	}

	rr := domain.RunReport{
		Out:       eff.Out,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, len(inputs)),
	}

	metaClient, err := httpx.NewMetaClient(eff.ProxyURL, eff.UserAgent)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	var imageClient *http.Client
	if eff.Apply && eff.WriteThumbnail {
		ic, e := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy)
		if e != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, e.Error()))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return rr
		}
		imageClient = ic
	}

	store := cache.New(eff.Out, !eff.Apply)

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(inputs) && len(inputs) > 0 {
		workers = len(inputs)
	}

	if obs != nil {
		obs.OnPhaseDone("input", map[string]any{
			"urls":       len(inputs),
			"duplicates": duplicates,
			"workers":    workers,
		}, time.Since(started))
	}

	type execResult struct {
		res domain.ItemResult
		dur time.Duration
	}

	jobs := make(chan string)
	results := make(chan execResult, len(inputs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				oneStarted := time.Now()
				r := execOne(ctx, eff, u, reg, metaClient, imageClient, store)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, u := range inputs {
			jobs <- u
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(inputs), it.res, it.dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// dedupURLs 去掉空行与重复输入。能被路由的 URL 按 (provider, display id) 去重，
// 因此 http/https、带不带 www. 的同一页面只处理一次；保留首次出现的写法。
func dedupURLs(reg provider.Registry, urls []string) ([]string, int) {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	dup := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		key := u
		if p, displayID, err := reg.Resolve(u); err == nil {
			key = strings.ToLower(p.Name()) + "\x00" + displayID
		}
		if _, ok := seen[key]; ok {
			dup++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out, dup
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.ProviderAttempt{},
		Files:     []domain.FileResult{},
	}
}

func execOne(ctx context.Context, eff config.EffectiveConfig, rawURL string, reg provider.Registry, metaClient, imageClient *http.Client, store cache.Store) domain.ItemResult {
	item := domain.ItemResult{
		InputURL: rawURL,
		Status:   domain.StatusProcessed, // 失败时覆盖
		Attempts: []domain.ProviderAttempt{},
		Files:    []domain.FileResult{},
	}

	p, displayID, err := reg.Resolve(rawURL)
	if err != nil {
		item.Attempts = append(item.Attempts, domain.ProviderAttempt{Stage: provider.StageResolve, Error: err.Error()})
		fillProviderError(&item, err)
		item.ErrorMsg = fmt.Sprintf("%s；支持的站点：%s", item.ErrorMsg, strings.Join(reg.Names(), ", "))
		return item
	}
	item.Extractor = strings.ToLower(p.Name())
	item.DisplayID = displayID

	res, attempts, err := scrape(ctx, store, reg, p, displayID, rawURL, metaClient, eff.Apply)
	item.Attempts = append(item.Attempts, attempts...)
	if res.Meta.DisplayID != "" {
		m := res.Meta
		item.Meta = &m
		item.ID = m.ID
	}
	if err != nil {
		fillProviderError(&item, err)
		return item
	}

	key := res.Meta.Key()
	if !safeDirName(key) {
		failItem(&item, domain.ErrCodeParseFailed, fmt.Sprintf("%s 页面给出的 id 不能作为目录名：%q", item.Extractor, key))
		return item
	}
	outDir := filepath.Join(eff.Out, key)
	targets := plannedFiles(eff, res.Meta)
	for _, name := range targets {
		item.Files = append(item.Files, domain.FileResult{Dst: relOut(eff.Out, filepath.Join(outDir, name)), Status: domain.FileStatusPlanned})
	}

	// dry-run：只做 fetch+parse 验证；不落盘、不下载图片。
	if !eff.Apply {
		return item
	}

	if err := fsx.EnsureDir(outDir); err != nil {
		failItem(&item, domain.ErrCodeIOFailed, err.Error())
		return item
	}

	existed := 0
	for i, name := range targets {
		// 已存在的 sidecar 不再生成（避免重复下载缩略图）。
		if fi, err := os.Lstat(filepath.Join(outDir, name)); err == nil && fi.Mode().IsRegular() {
			item.Files[i].Status = domain.FileStatusExists
			existed++
			continue
		}
		b, code, err := renderSidecar(ctx, name, res.Meta, imageClient)
		if err != nil {
			failItem(&item, code, err.Error())
			item.Files[i].Status = domain.FileStatusFailed
			return item
		}
		// sidecar 写入（原子 + 不覆盖）。已存在视为满足。
		if err := fsx.WriteFileAtomicNoOverwrite(outDir, name, b); err != nil {
			if errors.Is(err, os.ErrExist) {
				item.Files[i].Status = domain.FileStatusExists
				existed++
				continue
			}
			msg := fmt.Sprintf("写入 %s 失败：%v", name, err)
			if fsx.IsPathTypeConflict(err) {
				msg += "（请移除同名目录/特殊文件后重试）"
			}
			failItem(&item, domain.ErrCodeIOFailed, msg)
			item.Files[i].Status = domain.FileStatusFailed
			return item
		}
		item.Files[i].Status = domain.FileStatusWritten
	}
	if existed == len(targets) {
		item.Status = domain.StatusSkipped
	}
	return item
}

// safeDirName 拒绝会逃出 out/ 的目录名（id 来自页面内容，不可信）。
func safeDirName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`+"\x00")
}

func plannedFiles(eff config.EffectiveConfig, meta domain.VideoMeta) []string {
	out := []string{infoName}
	if eff.WriteNFO {
		out = append(out, nfoName)
	}
	if eff.WriteThumbnail && strings.TrimSpace(meta.Thumbnail) != "" {
		out = append(out, posterName)
	}
	return out
}

func renderSidecar(ctx context.Context, name string, meta domain.VideoMeta, imageClient *http.Client) ([]byte, string, error) {
	switch name {
	case infoName:
		b, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, domain.ErrCodeIOFailed, fmt.Errorf("生成 info.json 失败：%w", err)
		}
		return append(b, '\n'), "", nil
	case nfoName:
		b, err := nfo.Encode(meta)
		if err != nil {
			return nil, domain.ErrCodeIOFailed, fmt.Errorf("生成 NFO 失败：%w", err)
		}
		return b, "", nil
	case posterName:
		raw, err := download(ctx, imageClient, meta.Thumbnail, meta.WebpageURL)
		if err != nil {
			return nil, domain.ErrCodeFetchFailed, fmt.Errorf("下载缩略图失败：%w", err)
		}
		b, err := imgx.PosterJPEG(raw)
		if err != nil {
			return nil, domain.ErrCodeIOFailed, fmt.Errorf("生成 poster 失败：%w", err)
		}
		return b, "", nil
	default:
		return nil, domain.ErrCodeIOFailed, fmt.Errorf("未知 sidecar：%q", name)
	}
}

func relOut(out, p string) string {
	if rel, err := filepath.Rel(out, p); err == nil {
		return rel
	}
	return p
}

func failItem(item *domain.ItemResult, code, msg string) {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	item.ErrorMsg = msg
}

func download(ctx context.Context, c *http.Client, u string, referer string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("image client 为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(referer) != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

// scrape 先查 HTML 缓存（命中则不再打网络），未命中走 provider.ExtractTrace；apply 时写回缓存。
// 缓存的是转成 UTF-8 的原始 HTML 而不是解析结果：解析规则变化后重跑即可生效，
// 且命中缓存时的解码结果与首次抓取一致。
func scrape(ctx context.Context, store cache.Store, reg provider.Registry, p provider.Provider, displayID, rawURL string, c *http.Client, allowWrite bool) (provider.Result, []domain.ProviderAttempt, error) {
	name := strings.ToLower(p.Name())

	if b, ok, err := store.ReadProviderHTML(name, displayID); err == nil && ok {
		res, attempt, perr := provider.ParseWith(p, displayID, rawURL, b, cache.HTMLContentType)
		attempts := []domain.ProviderAttempt{{Provider: name, Stage: stageCache}, toAttempt(attempt)}
		if perr == nil || errors.Is(perr, provider.ErrMissingID) {
			return res, attempts, perr
		}
		// 坏缓存：忽略，走网络（apply 会写回新缓存）。
	}

	res, trace, err := provider.ExtractTrace(ctx, reg, rawURL, c)
	attempts := make([]domain.ProviderAttempt, 0, len(trace))
	for _, a := range trace {
		attempts = append(attempts, toAttempt(a))
	}
	if err != nil && !errors.Is(err, provider.ErrMissingID) {
		return provider.Result{}, attempts, err
	}

	// apply：写缓存（HTML + JSON）。dry-run 禁止写入。
	if allowWrite && !store.ReadOnly {
		if page, e := metatag.UTF8(res.HTML, res.ContentType); e == nil {
			_ = store.WriteProviderHTML(name, displayID, page)
		}
		if b, e := json.Marshal(res.Meta); e == nil {
			_ = store.WriteProviderJSON(name, displayID, b)
		}
	}
	return res, attempts, err
}

func toAttempt(a provider.Attempt) domain.ProviderAttempt {
	out := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return out
}

func fillProviderError(item *domain.ItemResult, err error) {
	if provider.IsUnsupportedURL(err) {
		item.Status = domain.StatusUnsupported
		item.ErrorCode = domain.ErrCodeUnsupportedURL
		item.ErrorMsg = err.Error()
		return
	}

	item.Status = domain.StatusFailed

	if errors.Is(err, provider.ErrMissingID) {
		item.ErrorCode = domain.ErrCodeMissingID
		item.ErrorMsg = fmt.Sprintf("%s 页面缺少 video-id meta，无法确定视频 id（display_id=%s）", item.Extractor, item.DisplayID)
		return
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case provider.StageFetch:
			item.ErrorCode = domain.ErrCodeFetchFailed
			if errors.Is(pe.Err, provider.ErrContentNotFound) {
				item.ErrorCode = domain.ErrCodeContentNotFound
			}
			item.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		case provider.StageParse:
			item.ErrorCode = domain.ErrCodeParseFailed
			item.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = fmt.Sprintf("%s 失败：%v", pe.Provider, pe.Err)
		}
		return
	}

	item.ErrorCode = domain.ErrCodeFetchFailed
	item.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	// HTTP 非 2xx：尽量给出可操作提示（反爬/限流是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		loc := strings.TrimSpace(hs.Location)
		switch hs.StatusCode {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议降低并发或配置 proxy.url。", providerName, hs.StatusCode)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Sprintf("%s 返回 HTTP %d（视频不存在或已下架）。", providerName, hs.StatusCode)
		default:
			if loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理，或降低并发后重试。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", providerName)
	}

	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	return fmt.Sprintf("%s 解析失败（返回了空页面或非 HTML 内容）：%v", providerName, err)
}
