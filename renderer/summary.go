package renderer

import (
	"bytes"
	"fmt"
	"sort"

	md "github.com/nao1215/markdown"
	"github.com/ryokushen/financial"
)

// SummaryMarkdown renders the statistics of a date range to markdown.
func SummaryMarkdown(s *financial.Statistics) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	switch {
	case s.Range.IsZero():
		doc.H1("Summary")
	case s.Range.To.IsZero():
		doc.H1(fmt.Sprintf("Summary since %s", s.Range.From))
	case s.Range.From.IsZero():
		doc.H1(fmt.Sprintf("Summary until %s", s.Range.To))
	default:
		doc.H1(fmt.Sprintf("Summary %s to %s", s.Range.From, s.Range.To))
	}
	doc.PlainText(fmt.Sprintf("%d transactions", s.Count))

	doc.Table(md.TableSet{
		Header: []string{"", "Amount"},
		Rows: [][]string{
			{"Income", financial.M(s.Income, "").String()},
			{"Expenses", financial.M(s.Expenses, "").String()},
			{"Net", financial.M(s.Net, "").SignedString()},
		},
	})

	if len(s.ByCategory) > 0 {
		doc.H2("By Category")
		rows := make([][]string, 0, len(s.ByCategory))
		for _, cat := range sortedKeys(s.ByCategory) {
			rows = append(rows, []string{cat, financial.M(s.ByCategory[cat], "").SignedString()})
		}
		doc.Table(md.TableSet{Header: []string{"Category", "Total"}, Rows: rows})
	}

	if len(s.ByMonth) > 0 {
		doc.H2("By Month")
		rows := make([][]string, 0, len(s.ByMonth))
		for _, key := range sortedKeys(s.ByMonth) {
			month := s.ByMonth[key]
			rows = append(rows, []string{
				key,
				financial.M(month.Income, "").String(),
				financial.M(month.Expenses, "").String(),
				financial.M(month.Net(), "").SignedString(),
			})
		}
		doc.Table(md.TableSet{Header: []string{"Month", "Income", "Expenses", "Net"}, Rows: rows})
	}

	return doc.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
