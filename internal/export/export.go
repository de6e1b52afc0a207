// Package export writes the ledger as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/report"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

const (
	SheetLoans    = "Loans"
	SheetPayments = "Payments"
	SheetSummary  = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// excelize built-in number format "#,##0.00"
	moneyFormat = 4
	dateLayout  = "2006-01-02"
)

var (
	loanHeaders = []interface{}{
		"Loan ID", "Kind", "Borrower", "Owner", "Status", "Principal", "Annual Rate (%)", "Months",
		"Installment", "Total Payable", "Total Paid", "Remaining", "Repayment Status", "Created",
	}
	paymentHeaders = []interface{}{"Loan ID", "Payment ID", "Amount", "Paid On", "Method", "Recorded By", "Notes"}
	summaryHeaders = []interface{}{"Metric", "Value", "Display"}
)

// Filename is the attachment name for a workbook generated at the given time.
func Filename(at time.Time) string {
	return fmt.Sprintf("loan-ledger_%s.xlsx", at.Format("20060102"))
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, loans []*domain.Loan, summary report.Summary, generatedAt time.Time) error {
	f, err := Workbook(loans, summary, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Write(w)
}

// Workbook lays out one sheet of loans, one of payments and one with the
// portfolio summary.
func Workbook(loans []*domain.Loan, summary report.Summary, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetLoans); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetPayments, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeLoans(f, loans, money); err != nil {
		return nil, err
	}
	if err := writePayments(f, loans, money); err != nil {
		return nil, err
	}
	if err := writeSummary(f, summary, generatedAt); err != nil {
		return nil, err
	}

	for _, sheet := range []string{SheetLoans, SheetPayments, SheetSummary} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeLoans(f *excelize.File, loans []*domain.Loan, money int) error {
	if err := f.SetSheetRow(SheetLoans, "A1", &loanHeaders); err != nil {
		return err
	}

	for i, l := range loans {
		row := []interface{}{
			l.LoanID, string(l.Kind), l.DisplayName(), l.Owner, string(l.Status),
			amount(l.Principal), nil, l.DurationMonths, nil, nil, amount(l.TotalPaid()), nil, nil,
			l.CreatedAt.Format(dateLayout),
		}
		if l.AnnualInterestRate.Valid {
			row[6] = amount(l.AnnualInterestRate.Decimal)
			figures, err := l.Figures()
			if err != nil {
				return err
			}
			row[8] = amount(figures.Installment)
			row[9] = amount(figures.TotalPayable)
			row[11] = amount(figures.Remaining)
			if l.Status == domain.LoanStatusApproved {
				row[12] = string(figures.Status)
			}
		}

		if err := setRow(f, SheetLoans, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetColStyle(SheetLoans, "F", money); err != nil {
		return err
	}
	if err := f.SetColStyle(SheetLoans, "I:L", money); err != nil {
		return err
	}
	return f.SetColWidth(SheetLoans, "A", "C", 20)
}

func writePayments(f *excelize.File, loans []*domain.Loan, money int) error {
	if err := f.SetSheetRow(SheetPayments, "A1", &paymentHeaders); err != nil {
		return err
	}

	row := 2
	for _, l := range loans {
		for _, p := range l.Payments {
			values := []interface{}{
				l.LoanID, p.ID.String(), amount(p.Amount), p.PaidOn.Format(dateLayout),
				string(p.Method), p.RecordedBy, p.Notes,
			}
			if err := setRow(f, SheetPayments, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColStyle(SheetPayments, "C", money); err != nil {
		return err
	}
	return f.SetColWidth(SheetPayments, "A", "B", 38)
}

func writeSummary(f *excelize.File, s report.Summary, generatedAt time.Time) error {
	if err := f.SetSheetRow(SheetSummary, "A1", &summaryHeaders); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Total loans", s.TotalLoans, ""},
		{"Active borrowers", s.ActiveBorrowers, ""},
		moneyRow("Total principal", s.TotalPrincipal),
		moneyRow("Total payable", s.TotalPayable),
		moneyRow("Total interest", s.TotalInterest),
		moneyRow("Total paid", s.TotalPaid),
		moneyRow("Outstanding", s.Outstanding),
		moneyRow("Overpaid", s.Overpaid),
		{"Collection rate (%)", amount(s.CollectionRate), s.CollectionRate.StringFixed(1) + "%"},
		{"Generated at", generatedAt.UTC().Format(time.RFC3339), ""},
	}
	for i, values := range rows {
		if err := setRow(f, SheetSummary, i+2, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "C", 22)
}

func moneyRow(label string, d decimal.Decimal) []interface{} {
	return []interface{}{label, amount(d), utils.FormatINR(d, 2)}
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// amount converts for display only; every figure was computed in decimal.
func amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
