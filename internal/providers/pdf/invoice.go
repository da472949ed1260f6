package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Tax Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Due date: "+data.DueDate, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New(data.SellerName, props.Text{Style: fontstyle.Bold}),
			text.New("State: "+data.SellerState, props.Text{Top: 5}),
		),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.ClientName, props.Text{Top: 5}),
			text.New(data.ClientAddress, props.Text{Top: 9}),
			text.New(data.ClientEmail, props.Text{Top: 17}),
		),
		col.New(6).Add(
			text.New("Tax ID: "+data.ClientTaxID, props.Text{Top: 5}),
			text.New("State: "+data.ClientState, props.Text{Top: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "HSN", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Tax", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(12,
			text.NewCol(4, item.Description, props.Text{Size: 9}),
			text.NewCol(1, item.HSNCode, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity+" "+item.Unit, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Rate, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, item.TaxRate, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	totals := []struct {
		label string
		value string
		bold  bool
	}{
		{"Subtotal", data.Subtotal, false},
		{"Discount", data.Discount, false},
		{"Taxable amount", data.TaxableAmount, false},
		{"CGST", data.TaxA, false},
		{"SGST", data.TaxB, false},
		{"IGST", data.TaxCross, false},
		{"Round off", data.RoundOff, false},
		{"Grand total", data.GrandTotal, true},
	}
	for _, row := range totals {
		if row.value == "" {
			continue
		}
		style := fontstyle.Normal
		if row.bold {
			style = fontstyle.Bold
		}
		m.AddRow(8,
			col.New(7),
			text.NewCol(3, row.label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, row.value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}

	if data.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, data.Notes, props.Text{Size: 8, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
