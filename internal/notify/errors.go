package notify

import "fmt"

// TemplateError is a failure parsing or executing a notification template.
type TemplateError struct {
	Template string
	Cause    error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Template, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// DeliveryError is a failure handing a message to its channel.
type DeliveryError struct {
	To    string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.To, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}
