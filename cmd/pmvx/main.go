package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/pmvx/internal/app/run"
	"github.com/John-Robertt/pmvx/internal/config"
	"github.com/John-Robertt/pmvx/internal/domain"
	"github.com/John-Robertt/pmvx/internal/infra/fsx"
	"github.com/John-Robertt/pmvx/internal/provider"
	"github.com/John-Robertt/pmvx/internal/provider/pmvhaven"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "extract":
		if code := extractCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func extractCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printExtractUsage()
			return 0
		}
	}

	ea, err := parseExtractArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printExtractUsage()
		return 2
	}
	setupLogging(ea.Verbose)

	if ea.From != "" {
		urls, err := readURLsFile(ea.From)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取 --from 失败：%v\n", err)
			return 2
		}
		ea.URLs = append(ea.URLs, urls...)
	}
	if len(ea.URLs) == 0 {
		fmt.Fprint(os.Stderr, "参数错误：至少需要一个 URL（参数或 --from）\n\n")
		printExtractUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: ea.ConfigPath,
		Out:        ea.Out,
		OutSet:     ea.OutSet,
		Apply:      ea.Apply,
		ApplySet:   ea.ApplySet,
	})
	if err != nil {
		emitReport(reportForConfigError(ea, err))
		return 1
	}

	reg, e := provider.NewRegistry(pmvhaven.Provider{})
	if e != nil {
		fmt.Fprintf(os.Stderr, "初始化 provider registry 失败：%v\n", e)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, reg, ea.URLs, newProgressLog(log.Logger))

	// apply：写入 <out>/report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Out, rr); err != nil {
			log.Error().Err(err).Msg("写入 report.json 失败")
			emitReport(rr)
			return 1
		}
		log.Info().Str("report", filepath.Join(eff.Out, "report.json")).Msg("已写入报告")
	}

	emitReport(rr)
	return exitCode(rr)
}

func exitCode(rr domain.RunReport) int {
	if rr.Summary.Failed == 0 && rr.Summary.Unsupported == 0 {
		return 0
	}
	return 1
}

type extractArgs struct {
	URLs       []string
	From       string
	ConfigPath string
	Verbose    bool

	Out    string
	OutSet bool

	Apply    bool
	ApplySet bool
}

func parseExtractArgs(args []string) (extractArgs, error) {
	ea := extractArgs{}

	// value 取 "--flag value" 或 "--flag=value" 两种写法。
	value := func(i *int, a, flag string) (string, bool, error) {
		if a == flag {
			if *i+1 >= len(args) {
				return "", true, fmt.Errorf("%s 需要一个值", flag)
			}
			*i++
			return args[*i], true, nil
		}
		if strings.HasPrefix(a, flag+"=") {
			return strings.TrimPrefix(a, flag+"="), true, nil
		}
		return "", false, nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]

		if v, ok, err := value(&i, a, "--out"); ok {
			if err != nil {
				return extractArgs{}, err
			}
			if strings.TrimSpace(v) == "" {
				return extractArgs{}, fmt.Errorf("--out 不能为空")
			}
			ea.Out, ea.OutSet = v, true
			continue
		}
		if v, ok, err := value(&i, a, "--from"); ok {
			if err != nil {
				return extractArgs{}, err
			}
			ea.From = v
			continue
		}
		if v, ok, err := value(&i, a, "--config"); ok {
			if err != nil {
				return extractArgs{}, err
			}
			ea.ConfigPath = v
			continue
		}

		switch {
		case a == "-v" || a == "--verbose":
			ea.Verbose = true
		case a == "--apply":
			ea.Apply = true
			ea.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ea.Apply = true
			case "false":
				ea.Apply = false
			default:
				return extractArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ea.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return extractArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ea.URLs = append(ea.URLs, a)
		}
	}

	return ea, nil
}

// readURLs 按行读取 URL：忽略空行与 # 注释行。
func readURLs(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func readURLsFile(path string) ([]string, error) {
	if path == "-" {
		return readURLs(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readURLs(f)
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
		NoColor:    !isTTY(os.Stderr),
	})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pmvx extract [url...] [--out DIR] [--apply[=true|false]] [--from FILE] [--config FILE] [-v]

命令：
  extract    抽取视频页元数据（默认 dry-run）

使用 "pmvx extract --help" 查看详细说明。
`)
}

func printExtractUsage() {
	fmt.Fprint(os.Stdout, `用法：
  pmvx extract [url...] [--out DIR] [--apply[=true|false]] [--from FILE] [--config FILE] [-v]

参数：
  --out       输出目录（默认 ./pmvx-out；未指定则读配置文件）
  --apply     写入 info.json/movie.nfo/poster.jpg 与缓存（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true
  --from      从文件读取 URL（每行一个，# 开头为注释）；"-" 表示 stdin
  --config    配置文件路径（默认 ./pmvx.json，可选）
  -v          输出调试日志
  -h, --help  显示帮助
`)
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：processed=%d skipped=%d failed=%d unsupported=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unsupported,
	)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed && it.Status != domain.StatusUnsupported {
				continue
			}
			key := it.InputURL
			if key == "" {
				key = "<config>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	writeReportJSON(os.Stdout, rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr))
}

func writeReportJSON(w io.Writer, rr domain.RunReport) {
	enc := json.NewEncoder(w)
	_ = enc.Encode(rr)
}

func reportForConfigError(ea extractArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Out:        ea.Out,
		DryRun:     !(ea.ApplySet && ea.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Attempts:  []domain.ProviderAttempt{},
			Files:     []domain.FileResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(out string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := fsx.EnsureDir(out); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(out, "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
