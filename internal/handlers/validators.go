package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/internal/services/workflow"
	"github.com/vtria/erp/internal/utils"
)

// RegisterValidators adds the ERP binding tags to gin's validator:
// fiscal_doc (VESPL/PO/2526/001 style numbers), state (a workflow state)
// and cidr_list (comma separated IPs or CIDR blocks).
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("fiscal_doc", func(fl validator.FieldLevel) bool {
		return utils.IsDocNumber(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("state", func(fl validator.FieldLevel) bool {
		_, ok := workflow.ParseState(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("cidr_list", func(fl validator.FieldLevel) bool {
		return services.ValidateIPRules(fl.Field().String()) == nil
	})
}
