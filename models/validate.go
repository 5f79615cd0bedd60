package models

import "github.com/go-playground/validator/v10"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Reuse the gin binding tags so HTTP and websocket payloads share one set
	// of rules.
	v.SetTagName("binding")
	return v
}

// ValidateStruct runs the binding rules on request structs that arrive
// outside gin's binding path, such as the websocket envelope.
func ValidateStruct(req interface{}) error {
	return validate.Struct(req)
}
