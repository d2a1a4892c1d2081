package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/urwriter/marketplace/internal/domain/job"
)

const budgetRangeTag = "budget_range"

var registerOnce sync.Once

// RegisterValidators installs the struct-level rules the binding tags cannot
// express. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterStructValidation(createJobBudget, job.CreateRequest{})
		v.RegisterStructValidation(updateJobBudget, job.UpdateRequest{})
	})
}

func createJobBudget(sl validator.StructLevel) {
	req := sl.Current().Interface().(job.CreateRequest)
	if job.CheckBudget(req.BudgetMin, req.BudgetMax) != nil {
		sl.ReportError(req.BudgetMin, "budgetMin", "BudgetMin", budgetRangeTag, "")
	}
}

// updateJobBudget only sees the patch. A patch that moves one bound past the
// stored other bound is caught when the update is applied.
func updateJobBudget(sl validator.StructLevel) {
	req := sl.Current().Interface().(job.UpdateRequest)
	if job.CheckBudget(req.BudgetMin, req.BudgetMax) != nil {
		sl.ReportError(req.BudgetMin, "budgetMin", "BudgetMin", budgetRangeTag, "")
	}
}
