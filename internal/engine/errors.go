package engine

import "fmt"

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(typeName string, id int64) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %d not found", typeName, id),
	}
}

func UnknownTypeError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_TYPE",
		Status:  404,
		Message: fmt.Sprintf("Unknown content type: %s", name),
	}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

// SaveFailedError describes the fields a save could not store.
func SaveFailedError(res *SaveResult) *AppError {
	details := make([]ErrorDetail, 0, len(res.Failures))
	for _, f := range res.Failures {
		d := ErrorDetail{Field: f.Field, Rule: string(f.Kind)}
		if f.Err != nil {
			d.Message = f.Err.Error()
		} else {
			d.Message = "value failed validation"
		}
		details = append(details, d)
	}
	return &AppError{
		Code:    "SAVE_INCOMPLETE",
		Status:  422,
		Message: "Some fields were not saved",
		Details: details,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ValidationError(msg string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Status: 422, Message: msg}
}
