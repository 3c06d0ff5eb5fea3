package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded model calls and their cost",
}

// llmEventView is the JSON shape of one recorded call.
type llmEventView struct {
	ID           int       `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Purpose      string    `json:"purpose"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Request      string    `json:"request,omitempty"`
	Response     string    `json:"response,omitempty"`
}

func newLLMEventView(e store.LLMEventRecord, withBodies bool) llmEventView {
	v := llmEventView{
		ID:           e.ID,
		Timestamp:    e.Timestamp,
		Provider:     e.Provider,
		Model:        e.Model,
		Purpose:      e.Purpose,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		LatencyMs:    e.LatencyMs,
		Success:      e.Success,
		Error:        e.ErrorMessage,
	}
	if withBodies {
		v.Request = e.RequestBody
		v.Response = e.ResponseBody
	}
	return v
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		since, _ := cmd.Flags().GetDuration("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		opts := store.QueryOpts{Limit: limit, Purpose: purpose}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if asJSON {
			views := make([]llmEventView, len(events))
			for i, e := range events {
				views[i] = newLLMEventView(e, false)
			}
			return writeJSON(views)
		}
		if len(events) == 0 {
			fmt.Println("No model calls recorded.")
			return nil
		}

		rows := make([][]string, len(events))
		for i, e := range events {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			rows[i] = []string{
				strconv.Itoa(e.ID),
				e.Timestamp.Local().Format("01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				strconv.Itoa(e.InputTokens),
				strconv.Itoa(e.OutputTokens),
				strconv.FormatInt(e.LatencyMs, 10),
				status,
			}
		}
		fmt.Println(renderTable(
			[]string{"ID", "Time", "Purpose", "Model", "In", "Out", "Ms", "Status"},
			rows, 0, 4, 5, 6))
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the full request and response of one model call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}
		if asJSON {
			return writeJSON(newLLMEventView(*e, true))
		}

		fmt.Printf("Call %d  %s via %s (%s)\n", e.ID, e.Purpose, e.Model, e.Provider)
		fmt.Printf("At %s, %dms, %d tokens in, %d out\n",
			e.Timestamp.Local().Format(time.DateTime), e.LatencyMs, e.InputTokens, e.OutputTokens)
		if !e.Success {
			fmt.Printf("Failed: %s\n", e.ErrorMessage)
		}
		printSection("Request", e.RequestBody)
		printSection("Response", e.ResponseBody)
		return nil
	},
}

// purposeLine is one row of the per-purpose usage breakdown.
type purposeLine struct {
	Purpose      string `json:"purpose"`
	Calls        int    `json:"calls"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// modelLine is one row of the per-model cost breakdown. CostUSD is nil
// when the model has no known pricing.
type modelLine struct {
	Model        string   `json:"model"`
	Calls        int      `json:"calls"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	CostUSD      *float64 `json:"cost_usd"`
}

type usageReport struct {
	Purposes     []purposeLine `json:"purposes"`
	Models       []modelLine   `json:"models"`
	Calls        int           `json:"calls"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	// Unpriced lists models left out of CostUSD.
	Unpriced []string `json:"unpriced_models,omitempty"`
}

// buildUsageReport totals the purpose rows and prices the model rows.
func buildUsageReport(purposes []store.LLMPurposeUsage, models []store.LLMModelUsage) usageReport {
	r := usageReport{Purposes: []purposeLine{}, Models: []modelLine{}}
	for _, p := range purposes {
		r.Purposes = append(r.Purposes, purposeLine(p))
		r.Calls += p.Calls
		r.InputTokens += p.InputTokens
		r.OutputTokens += p.OutputTokens
	}
	for _, m := range models {
		line := modelLine{Model: m.Model, Calls: m.Calls, InputTokens: m.InputTokens, OutputTokens: m.OutputTokens}
		if cost := llm.LookupCost(m.Model); cost != nil {
			c := cost.Cost(m.InputTokens, m.OutputTokens)
			line.CostUSD = &c
			r.CostUSD += c
		} else {
			r.Unpriced = append(r.Unpriced, m.Model)
		}
		r.Models = append(r.Models, line)
	}
	return r
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage per purpose and estimated cost per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		purposes, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		models, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		report := buildUsageReport(purposes, models)

		if asJSON {
			return writeJSON(report)
		}
		if report.Calls == 0 {
			fmt.Println("No model usage recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(report.Purposes)+1)
		for _, p := range report.Purposes {
			rows = append(rows, []string{p.Purpose, strconv.Itoa(p.Calls),
				strconv.Itoa(p.InputTokens), strconv.Itoa(p.OutputTokens),
				strconv.FormatInt(p.AvgLatencyMs, 10)})
		}
		rows = append(rows, []string{"total", strconv.Itoa(report.Calls),
			strconv.Itoa(report.InputTokens), strconv.Itoa(report.OutputTokens), ""})
		fmt.Println("Usage by purpose")
		fmt.Println(renderTable([]string{"Purpose", "Calls", "In", "Out", "Avg ms"}, rows, 1, 2, 3, 4))

		if len(report.Models) == 0 {
			return nil
		}
		rows = make([][]string, 0, len(report.Models)+1)
		for _, m := range report.Models {
			cost := "?"
			if m.CostUSD != nil {
				cost = formatCost(*m.CostUSD)
			}
			rows = append(rows, []string{truncate(m.Model, 32), strconv.Itoa(m.Calls),
				strconv.Itoa(m.InputTokens), strconv.Itoa(m.OutputTokens), cost})
		}
		label := "total"
		if len(report.Unpriced) > 0 {
			label = "total (partial)"
		}
		rows = append(rows, []string{label, "", "", "", formatCost(report.CostUSD)})
		fmt.Println()
		fmt.Println("Estimated cost (USD)")
		fmt.Println(renderTable([]string{"Model", "Calls", "In", "Out", "Cost"}, rows, 1, 2, 3, 4))

		if len(report.Unpriced) > 0 {
			fmt.Printf("No pricing for: %s\n", strings.Join(report.Unpriced, ", "))
		}
		return nil
	},
}

// renderTable draws rows under headers; the listed columns are right-aligned.
func renderTable(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, c := range numeric {
		right[c] = true
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			if row == table.HeaderRow {
				s = s.Bold(true)
			}
			if right[col] {
				s = s.Align(lipgloss.Right)
			}
			return s
		}).
		String()
}

func printSection(title, body string) {
	rule := strings.Repeat("─", 60)
	fmt.Printf("\n%s\n%s\n%s\n", rule, title, rule)
	if body == "" {
		body = "(not captured)"
	}
	fmt.Println(body)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only calls with this purpose (intent, chat, exercise-gen, evaluate, ...)")
	llmListCmd.Flags().Duration("since", 0, "Only calls newer than this, e.g. 24h")
	for _, c := range []*cobra.Command{llmListCmd, llmViewCmd, llmStatsCmd} {
		c.Flags().Bool("json", false, "Print JSON instead of a table")
	}

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}
