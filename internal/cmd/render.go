package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/util"
)

const (
	defaultWidth  = 100
	maxLabelWidth = 36
)

// palette holds the styles used for terminal output. On a non-terminal
// writer the renderer degrades every style to plain text.
type palette struct {
	title     lipgloss.Style
	muted     lipgloss.Style
	warning   lipgloss.Style
	errorText lipgloss.Style
	success   lipgloss.Style
	speakers  map[turnplan.Speaker]lipgloss.Style
	body      lipgloss.Style
	header    lipgloss.Style
	cell      lipgloss.Style
	border    lipgloss.Style
}

func newPalette(r *lipgloss.Renderer, width int) palette {
	return palette{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		warning:   r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		errorText: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171")),
		success:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		speakers: map[turnplan.Speaker]lipgloss.Style{
			turnplan.SpeakerFor:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("#60A5FA")),
			turnplan.SpeakerAgainst:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F472B6")),
			turnplan.SpeakerModerator: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24")),
		},
		body:   r.NewStyle().Width(width).PaddingLeft(2),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

// printer writes plans and live events to a terminal or a plain stream.
type printer struct {
	out   io.Writer
	tty   bool
	width int
	p     palette

	// streaming is true while chunks of the current turn are being echoed.
	streaming bool
}

func newPrinter(out io.Writer) *printer {
	pr := &printer{out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pr.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			pr.width = w - 4
		}
	}
	pr.p = newPalette(lipgloss.NewRenderer(out), pr.width)
	return pr
}

func (pr *printer) println(s string) {
	_, _ = fmt.Fprintln(pr.out, s)
}

// planTable renders plan as a bordered table.
func (pr *printer) planTable(plan turnplan.Plan) string {
	rows := make([][]string, 0, len(plan))
	for _, tc := range plan {
		rows = append(rows, []string{
			strconv.Itoa(tc.Number()),
			string(tc.Speaker),
			string(tc.Kind),
			util.Truncate(tc.Label, maxLabelWidth),
			fmt.Sprintf("%d-%d", tc.MinTokens, tc.MaxTokens),
			tc.Timeout.String(),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(pr.p.border).
		Headers("#", "SPEAKER", "KIND", "LABEL", "TOKENS", "TIMEOUT").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return pr.p.header
			}
			return pr.p.cell
		}).
		String()
}

func (pr *printer) speaker(s turnplan.Speaker, text string) string {
	if st, ok := pr.p.speakers[s]; ok {
		return st.Render(text)
	}
	return text
}

// endStream terminates an echoed chunk line.
func (pr *printer) endStream() {
	if pr.streaming {
		pr.println("")
		pr.streaming = false
	}
}

// event prints one engine event. Chunks are echoed only on a terminal; a
// plain stream gets each turn's content once, on completion.
func (pr *printer) event(e event.Event) {
	switch e.Kind {
	case event.KindDebateStarted:
		pr.println(pr.p.title.Render("Debate started") + pr.p.muted.Render(" "+e.SessionID))
	case event.KindTurnStarted:
		if e.TurnRef == nil {
			return
		}
		pr.endStream()
		pr.println("")
		label := fmt.Sprintf("%s [%d]", e.TurnRef.Label, e.TurnRef.Number)
		pr.println(pr.speaker(e.TurnRef.Speaker, label))
	case event.KindTurnStreaming:
		if pr.tty {
			if !pr.streaming {
				_, _ = io.WriteString(pr.out, "  ")
				pr.streaming = true
			}
			_, _ = io.WriteString(pr.out, e.Chunk)
		}
	case event.KindTurnCompleted:
		if pr.streaming {
			pr.endStream()
		} else {
			pr.println(pr.p.body.Render(e.Content))
		}
		pr.println(pr.p.muted.Render(fmt.Sprintf("  %d tokens", e.TokenCount)))
	case event.KindTurnError:
		pr.endStream()
		pr.println(pr.p.errorText.Render("  " + util.Preview("turn failed: "+e.Error, pr.width-2)))
	case event.KindViolationDetected:
		pr.println(pr.p.warning.Render(util.Truncate("  flagged: "+util.OneLine(e.Reason), pr.width)))
	case event.KindIntervention:
		pr.println(pr.speaker(turnplan.SpeakerModerator, "Moderator Intervention"))
		pr.println(pr.p.body.Render(e.Content))
	case event.KindBudgetWarning:
		if e.Budget != nil {
			pr.println(pr.p.warning.Render(fmt.Sprintf("  budget %d%% used (%d/%d tokens)",
				e.Budget.UtilizationPercent, e.Budget.TotalTokens, e.Budget.BudgetTokens)))
		}
	case event.KindHeartbeat:
		pr.println(pr.p.muted.Render("  … " + util.Preview(e.Reason, pr.width-4)))
	case event.KindDebatePaused:
		pr.endStream()
		pr.println(pr.p.warning.Render("Debate paused"))
	case event.KindDebateResumed:
		pr.println(pr.p.title.Render("Debate resumed"))
	case event.KindDebateCancelled:
		pr.endStream()
		msg := "Debate ended early"
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		pr.println(pr.p.warning.Render(msg))
	case event.KindDebateError:
		pr.endStream()
		pr.println(pr.p.errorText.Render(fmt.Sprintf("Debate failed [%s]: %s", e.Code, e.Error)))
	case event.KindDebateCompleted:
		pr.endStream()
		pr.println("")
		pr.println(pr.p.success.Render("Debate completed"))
	}
}

// usage prints a one-line usage summary.
func (pr *printer) usage(u budget.SessionUsage) {
	parts := []string{
		fmt.Sprintf("tokens %d/%d (%d%%)", u.TotalTokens, u.BudgetTokens, u.BudgetUtilizationPercent),
		fmt.Sprintf("cost $%.4f", u.TotalCostUSD),
	}
	pr.println(pr.p.muted.Render(strings.Join(parts, " · ")))
}
