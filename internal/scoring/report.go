package scoring

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/aospan/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Sparkline renders a single-line ASCII sparkline, resampled to at most width
// cells when width is positive.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	if width > 0 && len(values) > width {
		values = resample(values, width)
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// RenderReport prints scores, a per-set-size breakdown and an RT sparkline.
// width bounds the sparkline; zero leaves it unbounded.
func RenderReport(w io.Writer, log model.SessionLog, width int) error {
	scores := Compute(log)
	if log.Scores != nil {
		scores = *log.Scores
	}
	if _, err := fmt.Fprintf(w, "Participant: %s\n", log.ParticipantID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Started: %s\n\n", log.Timestamp.Format("2006-01-02 15:04:05")); err != nil {
		return err
	}

	overview := scoreTable{headers: []string{"Score", "Value"}}
	overview.add("Absolute span", fmt.Sprintf("%d", scores.AbsoluteSpan))
	overview.add("Partial-credit score", fmt.Sprintf("%d", scores.PartialCreditScore))
	overview.add("Partial-credit ratio", formatRatio(scores.PartialCreditRatio))
	overview.add("Math accuracy", formatRatio(scores.MathAccuracy))
	overview.add("Mean RT (ms)", formatMs(scores.MeanReactionTimeMs))
	overview.add("Timeouts", fmt.Sprintf("%d", scores.Timeouts))
	overview.add("Process limit (ms)", fmt.Sprintf("%d", scores.ProcessLimitMs))
	if err := overview.write(w); err != nil {
		return err
	}

	summaries := BySetSize(log)
	if len(summaries) > 0 {
		if _, err := fmt.Fprintln(w, "\nBy set size"); err != nil {
			return err
		}
		sizes := scoreTable{headers: []string{"Set size", "Series", "Positions", "Correct", "Ratio"}}
		for _, s := range summaries {
			sizes.add(
				fmt.Sprintf("%d", s.SetSize),
				fmt.Sprintf("%d", s.Series),
				fmt.Sprintf("%d", s.Positions),
				fmt.Sprintf("%d", s.Correct),
				fmt.Sprintf("%.2f%%", s.Ratio()*100),
			)
		}
		if err := sizes.write(w); err != nil {
			return err
		}
	}

	if rts := MainReactionTimes(log); len(rts) > 0 {
		if _, err := fmt.Fprintf(w, "\nRT  %s\n", Sparkline(rts, width)); err != nil {
			return err
		}
	}
	return nil
}

func formatRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

func formatMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
