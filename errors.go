package openvocab

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeConsistency ErrorType = "consistency"
	ErrorTypeInternal    ErrorType = "internal"
)

// Error is the error type returned by the projection engine and its stores.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to an Error
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to an Error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to an Error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds field context to an Error
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeIncompleteReference  = "INCOMPLETE_REFERENCE"
	ErrCodeInvalidCardinality   = "INVALID_CARDINALITY"
	ErrCodeVocabularyNotFound   = "VOCABULARY_NOT_FOUND"
	ErrCodeAssociationNotFound  = "ASSOCIATION_NOT_FOUND"
	ErrCodeAssociationExists    = "ASSOCIATION_ALREADY_EXISTS"
	ErrCodeVocabularyInUse      = "VOCABULARY_IN_USE"
	ErrCodeHandlerNotFound      = "HANDLER_NOT_FOUND"
	ErrCodeAnchorFieldNotFound  = "ANCHOR_FIELD_NOT_FOUND"
	ErrCodeVirtualFieldNotFound = "VIRTUAL_FIELD_NOT_FOUND"
	ErrCodeFieldNameCollision   = "FIELD_NAME_COLLISION"
	ErrCodeRegistryInconsistent = "REGISTRY_INCONSISTENT"
	ErrCodeWeightOutOfRange     = "WEIGHT_OUT_OF_RANGE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeStoreFailed          = "STORE_FAILED"
	ErrCodeSnapshotFailed       = "SNAPSHOT_FAILED"
	ErrCodeCardinalityExceeded  = "CARDINALITY_EXCEEDED"
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	ErrCodeItemIndexOutOfBounds = "ITEM_INDEX_OUT_OF_BOUNDS"
	ErrCodeUnsupportedDriver    = "UNSUPPORTED_STORE_DRIVER"
)

// NewError creates a new Error
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewIncompleteReferenceError reports a tuple with only one of association and target set.
func NewIncompleteReferenceError(field, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeIncompleteReference,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewInvalidCardinalityError creates an error for a cardinality that is neither positive nor unlimited.
func NewInvalidCardinalityError(associationID string, cardinality int) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidCardinality,
		Message: fmt.Sprintf("cardinality %d is invalid: use a positive number or %d for unlimited", cardinality, CardinalityUnlimited),
		Field:   "cardinality",
		Details: map[string]any{
			"association": associationID,
			"cardinality": cardinality,
		},
	}
}

// NewVocabularyNotFoundError creates a vocabulary not found error
func NewVocabularyNotFoundError(vocabularyID string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeVocabularyNotFound,
		Message: fmt.Sprintf("vocabulary '%s' not found", vocabularyID),
		Details: map[string]any{
			"vocabulary": vocabularyID,
		},
	}
}

// NewAssociationNotFoundError creates an association not found error
func NewAssociationNotFoundError(associationID string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeAssociationNotFound,
		Message: fmt.Sprintf("association '%s' not found", associationID),
		Details: map[string]any{
			"association": associationID,
		},
	}
}

// NewAssociationExistsError is returned when creating an association whose identity is taken.
func NewAssociationExistsError(associationID string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeAssociationExists,
		Message: fmt.Sprintf("association '%s' already exists", associationID),
		Details: map[string]any{
			"association": associationID,
		},
	}
}

// NewVocabularyInUseError is returned when deleting a vocabulary still referenced by associations.
func NewVocabularyInUseError(vocabularyID string, associationIDs []string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeVocabularyInUse,
		Message: fmt.Sprintf("vocabulary '%s' is used by %d association(s)", vocabularyID, len(associationIDs)),
		Details: map[string]any{
			"vocabulary":   vocabularyID,
			"associations": associationIDs,
		},
	}
}

// NewHandlerNotFoundError is returned when no target provider is registered for a handler id.
func NewHandlerNotFoundError(handlerID string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeHandlerNotFound,
		Message: fmt.Sprintf("vocabulary reference handler '%s' not found", handlerID),
		Details: map[string]any{
			"handler": handlerID,
		},
	}
}

// NewAnchorFieldNotFoundError creates an error for a missing physical anchor field.
func NewAnchorFieldNotFoundError(ref AnchorFieldRef) *Error {
	return &Error{
		Type:    ErrorTypeConsistency,
		Code:    ErrCodeAnchorFieldNotFound,
		Message: fmt.Sprintf("anchor field '%s' not found", ref.ID()),
		Field:   ref.FieldName,
		Details: map[string]any{
			"anchor_field": ref.ID(),
		},
	}
}

// NewVirtualFieldNotFoundError is returned when a generated field name is unknown for a bundle.
func NewVirtualFieldNotFoundError(hostType, bundle, fieldName string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeVirtualFieldNotFound,
		Message: fmt.Sprintf("virtual field '%s' not found on %s.%s", fieldName, hostType, bundle),
		Field:   fieldName,
		Details: map[string]any{
			"host_type": hostType,
			"bundle":    bundle,
		},
	}
}

// NewFieldNameCollisionError reports two (association, anchor field) pairs deriving the same name.
func NewFieldNameCollisionError(fieldName, first, second string) *Error {
	return &Error{
		Type:    ErrorTypeConsistency,
		Code:    ErrCodeFieldNameCollision,
		Message: fmt.Sprintf("generated field name '%s' is derived by both %s and %s", fieldName, first, second),
		Field:   fieldName,
		Details: map[string]any{
			"first":  first,
			"second": second,
		},
	}
}

// NewRegistryInconsistentError reports an association whose vocabulary does not exist.
func NewRegistryInconsistentError(associationID, vocabularyID string) *Error {
	return &Error{
		Type:    ErrorTypeConsistency,
		Code:    ErrCodeRegistryInconsistent,
		Message: fmt.Sprintf("association '%s' references missing vocabulary '%s'", associationID, vocabularyID),
		Details: map[string]any{
			"association": associationID,
			"vocabulary":  vocabularyID,
		},
	}
}

// NewWeightOutOfRangeError is returned when an association weight cannot be placed without
// colliding with neighbouring layout components.
func NewWeightOutOfRangeError(associationID string, weight, limit int) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeWeightOutOfRange,
		Message: fmt.Sprintf("association weight %d is outside the placement range ±%d", weight, limit),
		Field:   "weight",
		Details: map[string]any{
			"association": associationID,
			"weight":      weight,
			"limit":       limit,
		},
	}
}

// NewStoreError wraps a failure of the configuration store.
func NewStoreError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeStoreFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
