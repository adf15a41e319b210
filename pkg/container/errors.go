package container

import (
	"fmt"
	"reflect"
	"strings"
)

// Error codes carried by every container error
const (
	CodeInvalidBeanDefinition = "INVALID_BEAN_DEFINITION"
	CodeUnsatisfiedDependency = "UNSATISFIED_DEPENDENCY"
	CodeAmbiguousResolution   = "AMBIGUOUS_RESOLUTION"
	CodeCircularDependency    = "CIRCULAR_DEPENDENCY"
	CodeInstantiation         = "INSTANTIATION_FAILED"
	CodeTypeMismatch          = "TYPE_MISMATCH"
	CodeContextStopped        = "CONTEXT_STOPPED"
	CodeValidation            = "VALIDATION_FAILED"
	CodeConfiguration         = "CONFIGURATION_ERROR"
)

// ContainerError represents a generic error that occurred in the container
type ContainerError struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ContainerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *ContainerError) Unwrap() error {
	return e.Cause
}

// ConfigurationError returns an error for when configuration is invalid
func ConfigurationError(msg string, cause error) *ContainerError {
	return &ContainerError{
		Code:    CodeConfiguration,
		Message: msg,
		Cause:   cause,
	}
}

// InvalidBeanDefinitionError reports a class that cannot become a bean.
type InvalidBeanDefinitionError struct {
	Class  reflect.Type
	Reason string
}

func (e *InvalidBeanDefinitionError) Error() string {
	return fmt.Sprintf("[%s] invalid bean definition for %s: %s", e.Code(), typeName(e.Class), e.Reason)
}

// Code returns the stable error code.
func (e *InvalidBeanDefinitionError) Code() string { return CodeInvalidBeanDefinition }

// UnsatisfiedDependencyError reports a required type and qualifier set with no matching bean.
type UnsatisfiedDependencyError struct {
	Type       reflect.Type
	Qualifiers QualifierSet
	// InjectionPoint is empty for dynamic lookups.
	InjectionPoint string
}

func (e *UnsatisfiedDependencyError) Error() string {
	msg := fmt.Sprintf("[%s] no bean matches type %s", e.Code(), typeName(e.Type))
	if e.Qualifiers.Len() > 0 {
		msg += " with qualifiers " + e.Qualifiers.String()
	}
	if e.InjectionPoint != "" {
		msg += " required by " + e.InjectionPoint
	}
	return msg
}

// Code returns the stable error code.
func (e *UnsatisfiedDependencyError) Code() string { return CodeUnsatisfiedDependency }

// AmbiguousResolutionError reports more than one candidate class for a lookup.
type AmbiguousResolutionError struct {
	Type           reflect.Type
	Qualifiers     QualifierSet
	Candidates     []reflect.Type
	InjectionPoint string
}

func (e *AmbiguousResolutionError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = typeName(c)
	}
	msg := fmt.Sprintf("[%s] type %s", e.Code(), typeName(e.Type))
	if e.Qualifiers.Len() > 0 {
		msg += " with qualifiers " + e.Qualifiers.String()
	}
	msg += " resolves to multiple beans: " + strings.Join(names, ", ")
	if e.InjectionPoint != "" {
		msg += " (required by " + e.InjectionPoint + ")"
	}
	return msg
}

// Code returns the stable error code.
func (e *AmbiguousResolutionError) Code() string { return CodeAmbiguousResolution }

// CircularDependencyError reports a dependency cycle as the list of bean names along it.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("[%s] circular dependency detected: %s", e.Code(), strings.Join(e.Cycle, " -> "))
}

// Code returns the stable error code.
func (e *CircularDependencyError) Code() string { return CodeCircularDependency }

// InstantiationError reports a constructor, initializer or PostConstruct failure.
type InstantiationError struct {
	Bean  *BeanDefinition
	Cause error
}

func (e *InstantiationError) Error() string {
	name := "<unknown>"
	if e.Bean != nil {
		name = e.Bean.String()
	}
	return fmt.Sprintf("[%s] failed to instantiate %s: %v", e.Code(), name, e.Cause)
}

// Unwrap returns the cause of the error
func (e *InstantiationError) Unwrap() error { return e.Cause }

// Code returns the stable error code.
func (e *InstantiationError) Code() string { return CodeInstantiation }

// TypeMismatchError represents a type assertion failure in the generic helpers.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("[%s] type mismatch: expected %s, got %s", e.Code(), e.Expected, e.Got)
}

// Code returns the stable error code.
func (e *TypeMismatchError) Code() string { return CodeTypeMismatch }

// ContextStoppedError is returned by lookups on a stopped context.
type ContextStoppedError struct {
	ContextID string
}

func (e *ContextStoppedError) Error() string {
	return fmt.Sprintf("[%s] application context %s is stopped", e.Code(), e.ContextID)
}

// Code returns the stable error code.
func (e *ContextStoppedError) Code() string { return CodeContextStopped }

// ValidationError aggregates every structural problem found while starting a context.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("[%s] %v", CodeValidation, e.Errors[0])
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("[%s] %d problems: %s", CodeValidation, len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.Errors }

// Code returns the stable error code.
func (e *ValidationError) Code() string { return CodeValidation }

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
