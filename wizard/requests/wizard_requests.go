package requests

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NavigateRequest carries a user navigation intent. IssuesResolved is the
// Correction screen's own gate claim; the engine does not re-check it but
// the controller refuses a Correction→Payment advance without it.
type NavigateRequest struct {
	Action         string `json:"action"` // "next" | "previous" | "jump"
	CurrentStep    int    `json:"current_step"`
	TargetStep     int    `json:"target_step,omitempty"`
	IssuesResolved bool   `json:"issues_resolved,omitempty"`
}

func (r *NavigateRequest) Validate() error {
	switch r.Action {
	case "next", "previous":
	case "jump":
		if r.TargetStep == 0 {
			return errors.New("jump requires a target_step")
		}
	default:
		return fmt.Errorf("unknown navigation action: %q", r.Action)
	}
	if r.CurrentStep < 1 || r.CurrentStep > 4 {
		return fmt.Errorf("current_step out of range: %d", r.CurrentStep)
	}
	return nil
}

// EmailReportRequest asks for the report to be sent by email.
type EmailReportRequest struct {
	Email string `json:"email"`
}

func (r *EmailReportRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address: %s", email)
	}
	r.Email = email
	return nil
}

// OrderRequest selects an optional add-on purchase.
type OrderRequest struct {
	AddOnCode   string `json:"add_on_code"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
}

func (r *OrderRequest) Validate() (decimal.Decimal, error) {
	if strings.TrimSpace(r.AddOnCode) == "" {
		return decimal.Zero, errors.New("add_on_code cannot be empty")
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price format: %v", err)
	}
	if price.IsNegative() {
		return decimal.Zero, errors.New("price cannot be negative")
	}
	return price, nil
}
