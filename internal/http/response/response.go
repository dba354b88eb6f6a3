// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Все ответы API имеют единый
// конверт: признак успеха, сообщение, данные и список ошибок валидации.
package response

import (
	"fmt"

	"github.com/go-playground/validator"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Success — признак успешного выполнения запроса.
// Поле Message — человекочитаемое сообщение (опционально).
// Поле Data — данные ответа (опционально, при успехе).
// Поле Errors — ошибки валидации по полям (опционально, при неуспехе).
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError — одна ошибка валидации входных данных.
type FieldError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"field email is a required field"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"invalid request body"`
}

// OK возвращает успешный Response с сообщением.
func OK(msg string) Response {
	return Response{
		Success: true,
		Message: msg,
	}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Success: false,
		Message: msg,
	}
}

// ValidationError формирует Response на основе ошибок валидации.
// Каждое нарушение превращается в пару поле-сообщение.
func ValidationError(errs validator.ValidationErrors) Response {
	var fieldErrs []FieldError

	for _, err := range errs {
		var msg string
		switch err.ActualTag() {
		case "required":
			msg = fmt.Sprintf("field %s is a required field", err.Field())
		case "email":
			msg = fmt.Sprintf("field %s must be a valid email address", err.Field())
		case "min":
			msg = fmt.Sprintf("field %s must be at least %s characters long", err.Field(), err.Param())
		case "max":
			msg = fmt.Sprintf("field %s must be at most %s characters long", err.Field(), err.Param())
		case "oneof":
			msg = fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param())
		case "uuid":
			msg = fmt.Sprintf("field %s must be a valid uuid", err.Field())
		default:
			msg = fmt.Sprintf("field %s is not valid", err.Field())
		}
		fieldErrs = append(fieldErrs, FieldError{Field: err.Field(), Message: msg})
	}
	return Response{
		Success: false,
		Message: "validation failed",
		Errors:  fieldErrs,
	}
}
