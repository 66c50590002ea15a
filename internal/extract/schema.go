package extract

import (
	"google.golang.org/genai"

	"github.com/Veraticus/expense-ledger/internal/model"
)

// responseSchema constrains the model to {"expenses": [...]} where each item
// uses the nested invoice or salarySlip shape.
func responseSchema() *genai.Schema {
	mains := model.MainCategories()
	mainEnum := make([]string, len(mains))
	for i, m := range mains {
		mainEnum[i] = string(m)
	}

	subs := model.SubCategories("")
	subEnum := make([]string, len(subs))
	for i, s := range subs {
		subEnum[i] = string(s)
	}

	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	num := func() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }

	expense := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"date":         {Type: genai.TypeString, Description: "YYYY-MM-DD"},
			"mainCategory": {Type: genai.TypeString, Enum: mainEnum},
			"subCategory":  {Type: genai.TypeString, Enum: subEnum},
			"expenseType": {
				Type: genai.TypeString,
				Enum: []string{string(model.TypeInvoice), string(model.TypeSalarySlip)},
			},
			"providerName": str(),
			"currency":     {Type: genai.TypeString, Description: "ISO 4217 code"},
			"invoice": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"invoiceNumber": str(),
					"invoiceTotal":  num(),
				},
				Required: []string{"invoiceNumber"},
			},
			"salarySlip": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"employeeId":     str(),
					"employeeName":   str(),
					"employeeNumber": {Type: genai.TypeInteger},
					"grossSalary":    num(),
					"netSalary":      num(),
				},
				Required: []string{"employeeId", "employeeName", "grossSalary", "netSalary"},
			},
		},
		Required: []string{"date", "mainCategory", "subCategory", "expenseType", "providerName"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"expenses": {Type: genai.TypeArray, Items: expense},
		},
		Required: []string{"expenses"},
	}
}
