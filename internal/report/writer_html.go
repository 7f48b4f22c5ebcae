package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"CuboTrack/internal/config"
	"CuboTrack/internal/factory"
	"CuboTrack/internal/model"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func init() {
	factory.RegisterWriter("html", NewHTMLWriter)
}

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta http-equiv="Cache-Control" content="no-store, no-cache, must-revalidate, max-age=0"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>%s</title>
<style>
  body{margin:0;font-family:system-ui;background:#0b1020;color:#eaf0ff}
  a{color:#8cc6ff;text-decoration:none} a:hover{text-decoration:underline}
  main{max-width:1100px;margin:0 auto;padding:22px}
  table{width:100%%;border-collapse:collapse;margin:10px 0}
  th,td{padding:8px;border-bottom:1px solid rgba(255,255,255,.08);text-align:left}
  th{color:#9aa4c3;font-size:12px;text-transform:uppercase}
  h2{margin-top:28px}
</style>
</head>
<body>
<main>
%s
</main>
</body>
</html>
`

// HTMLWriter renders an index page and one page per operator. Pages are
// composed as GitHub-flavored markdown and converted with goldmark.
type HTMLWriter struct {
	root string
	md   goldmark.Markdown
}

// NewHTMLWriter creates an HTML writer rooted at def.RootPath.
func NewHTMLWriter(def config.WriterDef) (model.Writer, error) {
	root := def.RootPath
	if root == "" {
		root = "reports"
	}
	return &HTMLWriter{
		root: root,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// Name identifies the writer.
func (w *HTMLWriter) Name() string {
	return "html"
}

// Write renders every page of the report.
func (w *HTMLWriter) Write(ctx context.Context, report *model.Report) error {
	usersDir := filepath.Join(w.root, "users")
	if err := os.MkdirAll(usersDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	generated := report.GeneratedAt.Format(model.DateTimeLayout)
	slugs := Slugs(report.Operators)
	for i, op := range report.Operators {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(usersDir, slugs[i]+".html")
		if err := w.writePage(path, "Report: "+op.Name, operatorMarkdown(op, generated)); err != nil {
			return err
		}
	}
	return w.writePage(filepath.Join(w.root, "index.html"), "Reports", indexMarkdown(report, generated))
}

func (w *HTMLWriter) writePage(path, title, markdown string) error {
	var body bytes.Buffer
	if err := w.md.Convert([]byte(markdown), &body); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	page := fmt.Sprintf(pageTemplate, html.EscapeString(title), body.String())

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func indexMarkdown(report *model.Report, generated string) string {
	var b strings.Builder
	b.WriteString("# Reports\n\n")
	fmt.Fprintf(&b, "Generated at %s\n\n", generated)

	if len(report.Operators) == 0 {
		b.WriteString("_No data yet._\n")
		return b.String()
	}

	b.WriteString("| Operator | Last activity | Sessions |\n|---|---|---|\n")
	slugs := Slugs(report.Operators)
	for i, op := range report.Operators {
		fmt.Fprintf(&b, "| [%s](users/%s.html) | %s | %d |\n",
			mdText(op.Name), slugs[i], mdText(orDash(op.LastActivity)), len(op.Sessions))
	}
	return b.String()
}

func operatorMarkdown(op *model.OperatorReport, generated string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Operator: %s\n\n", mdText(op.Name))
	fmt.Fprintf(&b, "[Back](../index.html) · Generated at %s\n\n", generated)

	if len(op.Sessions) == 0 {
		b.WriteString("_No sessions yet for this operator._\n")
		return b.String()
	}

	for _, s := range op.Sessions {
		fmt.Fprintf(&b, "## Session %d · %s\n\n", s.Session, mdText(orDash(s.Mode)))
		if !s.Complete {
			b.WriteString("**No STOP received.**\n\n")
		}
		fmt.Fprintf(&b, "Device: %s\n\n", mdText(orDash(s.SrcIP)))

		b.WriteString("| Start | End | Duration | OK | ERR |\n|---|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n\n",
			mdText(orDash(s.StartedAt)), mdText(orDash(s.EndedAt)), FormatMs(s.DurationMs), s.OkTotal, s.ErrTotal)

		b.WriteString("| Microphone | Readings | Mean freq | Min freq | Max freq |\n|---|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n\n",
			s.Sensor.State, s.Sensor.Count, formatHz(s.Sensor.MeanFreq), formatHz(s.Sensor.MinFreq), formatHz(s.Sensor.MaxFreq))

		if len(s.ByMode) == 0 {
			continue
		}
		modes := make([]string, 0, len(s.ByMode))
		for m := range s.ByMode {
			modes = append(modes, m)
		}
		sort.Strings(modes)
		b.WriteString("Outcomes by mode:\n\n")
		for _, m := range modes {
			c := s.ByMode[m]
			fmt.Fprintf(&b, "- %s: **%d** ok, **%d** err\n", mdText(m), c.OK, c.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}
