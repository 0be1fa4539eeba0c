// Package renderer turns transactions and statistics into markdown reports.
package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/ryokushen/financial"
	"github.com/shopspring/decimal"
)

// Transaction renders a transaction to a one-line string.
func Transaction(t financial.Transaction) string {
	typ, id, ok := t.AccountRef()
	account := "unassigned"
	if ok {
		account = fmt.Sprintf("%s:%s", typ, id)
	}
	m := financial.M(t.Amount, "")
	if t.LinkedID != "" {
		return fmt.Sprintf("%s %s %q (%s) on %s, linked to %s", t.Date, m.SignedString(), t.Description, t.Category, account, t.LinkedID)
	}
	return fmt.Sprintf("%s %s %q (%s) on %s", t.Date, m.SignedString(), t.Description, t.Category, account)
}

// TransactionsMarkdown renders a list of transactions as a markdown table.
func TransactionsMarkdown(txs []financial.Transaction) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	if len(txs) == 0 {
		doc.PlainText("No transactions.")
		return doc.String()
	}

	rows := make([][]string, 0, len(txs))
	var total decimal.Decimal
	for _, t := range txs {
		typ, id, ok := t.AccountRef()
		account := ""
		if ok {
			account = fmt.Sprintf("%s:%s", typ, id)
		}
		cleared := ""
		if t.Cleared {
			cleared = "yes"
		}
		rows = append(rows, []string{
			t.Date.String(),
			t.Description,
			t.Category,
			financial.M(t.Amount, "").String(),
			account,
			cleared,
		})
		total = total.Add(t.Amount)
	}

	doc.Table(md.TableSet{
		Header: []string{"Date", "Description", "Category", "Amount", "Account", "Cleared"},
		Rows:   rows,
	})
	doc.PlainText(fmt.Sprintf("%d transactions, net %s", len(txs), financial.M(total, "").SignedString()))

	return doc.String()
}
