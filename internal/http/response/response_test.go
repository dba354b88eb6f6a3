package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
)

func TestOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := OKWithData(data)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Message)
	assert.Equal(t, data, resp.Data)
	assert.Empty(t, resp.Errors)
}

func TestOK(t *testing.T) {
	resp := OK("user created successfully")

	assert.True(t, resp.Success)
	assert.Equal(t, "user created successfully", resp.Message)
	assert.Nil(t, resp.Data)
}

func TestError(t *testing.T) {
	msg := "something went wrong"
	resp := Error(msg)

	assert.False(t, resp.Success)
	assert.Equal(t, msg, resp.Message)
	assert.Nil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type TestStruct struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}

	v := validator.New()
	ts := TestStruct{
		Email:    "not-an-email",
		Password: "123",
	}

	err := v.Struct(ts)
	assert.Error(t, err)

	validationErrors := err.(validator.ValidationErrors)
	resp := ValidationError(validationErrors)

	assert.False(t, resp.Success)
	assert.Equal(t, "validation failed", resp.Message)
	assert.Len(t, resp.Errors, 2)
	assert.Equal(t, "Email", resp.Errors[0].Field)
	assert.Contains(t, resp.Errors[0].Message, "must be a valid email address")
	assert.Equal(t, "Password", resp.Errors[1].Field)
	assert.Contains(t, resp.Errors[1].Message, "at least 6 characters")
}

func TestValidationErrorRequired(t *testing.T) {
	type TestStruct struct {
		Email string `validate:"required"`
	}

	v := validator.New()
	ts := TestStruct{}

	err := v.Struct(ts)
	assert.Error(t, err)

	validationErrors := err.(validator.ValidationErrors)
	resp := ValidationError(validationErrors)

	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "field Email is a required field")
}
