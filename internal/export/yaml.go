package export

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlReport struct {
	Email      string         `yaml:"email"`
	Currency   string         `yaml:"currency,omitempty"`
	Timezone   string         `yaml:"timezone"`
	Period     string         `yaml:"period"`
	From       string         `yaml:"from"`
	To         string         `yaml:"to"`
	Total      string         `yaml:"total"`
	Categories []yamlCategory `yaml:"categories"`
	Expenses   []yamlExpense  `yaml:"expenses"`
}

type yamlCategory struct {
	Name       string `yaml:"name"`
	Color      string `yaml:"color,omitempty"`
	Count      int    `yaml:"count"`
	Total      string `yaml:"total"`
	Percentage string `yaml:"percentage"`
}

type yamlExpense struct {
	Date        string `yaml:"date"`
	Category    string `yaml:"category"`
	Description string `yaml:"description,omitempty"`
	Amount      string `yaml:"amount"`
}

// RenderYAML writes the report as a YAML document. Amounts are strings so no precision is lost.
func RenderYAML(w io.Writer, r Report) error {
	doc := yamlReport{
		Email:      r.Email,
		Currency:   r.Currency,
		Timezone:   r.Timezone,
		Period:     string(r.Period),
		From:       r.Start.Format(time.DateOnly),
		To:         r.LastDay().Format(time.DateOnly),
		Total:      r.Total.StringFixed(2),
		Categories: make([]yamlCategory, len(r.Categories)),
		Expenses:   make([]yamlExpense, len(r.Lines)),
	}
	for i, c := range r.Categories {
		doc.Categories[i] = yamlCategory{
			Name:       c.CategoryName,
			Color:      c.CategoryColor,
			Count:      c.Count,
			Total:      c.TotalAmount.StringFixed(2),
			Percentage: c.Percentage,
		}
	}
	for i, l := range r.Lines {
		doc.Expenses[i] = yamlExpense{
			Date:        l.Date,
			Category:    l.Category,
			Description: l.Description,
			Amount:      l.Amount.StringFixed(2),
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}
