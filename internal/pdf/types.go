// Package pdf extracts positioned text from PDF files and reconstructs
// translated pages by stamping text over a copy of the original.
package pdf

import "fmt"

// TextRun is one extracted span of text with its page position. Coordinates
// follow the PDF convention: origin at the bottom-left, Y growing upward.
type TextRun struct {
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

// Cluster is a group of vertically adjacent runs forming one visual block
// (a paragraph, heading, or caption).
type Cluster struct {
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

// Info describes a PDF file before processing.
type Info struct {
	PageCount int   `json:"page_count"`
	FileSize  int64 `json:"file_size"`
	HasText   bool  `json:"has_text"`
}

// ErrorCode classifies PDF processing failures.
type ErrorCode string

const (
	ErrNotFound       ErrorCode = "PDF_NOT_FOUND"
	ErrInvalid        ErrorCode = "PDF_INVALID"
	ErrNoText         ErrorCode = "PDF_NO_TEXT"
	ErrExtractFailed  ErrorCode = "EXTRACT_FAILED"
	ErrGenerateFailed ErrorCode = "GENERATE_FAILED"
)

// Error is a classified PDF processing error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified PDF error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
