package metrics

import (
	"fmt"
	"strconv"
	"strings"
)

// ClassificationReport formats per-class precision, recall, F1 and support
// with accuracy, macro and weighted averages, two decimals. Only classes
// present in either input are listed; undefined scores print as 0.
func ClassificationReport(trueLabels, predLabels []int) string {
	m, err := Confusion(trueLabels, predLabels)
	if err != nil || len(trueLabels) == 0 {
		return ""
	}
	var present []int
	for c := 0; c < 2; c++ {
		if m[c][0]+m[c][1]+m[0][c]+m[1][c] > 0 {
			present = append(present, c)
		}
	}

	const width = len("weighted avg")
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	total := len(trueLabels)
	var macro, weighted [3]float64
	for _, c := range present {
		support := m[c][0] + m[c][1]
		p := safeDiv(m[c][c], m[0][c]+m[1][c])
		r := safeDiv(m[c][c], support)
		f := 0.0
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		for i, v := range [3]float64{p, r, f} {
			macro[i] += v / float64(len(present))
			weighted[i] += v * float64(support) / float64(total)
		}
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, strconv.Itoa(c), p, r, f, support)
	}
	b.WriteString("\n")
	acc := float64(m[0][0]+m[1][1]) / float64(total)
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", acc, total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg", macro[0], macro[1], macro[2], total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", weighted[0], weighted[1], weighted[2], total)
	return b.String()
}

func safeDiv(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
