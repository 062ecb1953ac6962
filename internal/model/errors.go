// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// バリデーションエラーメッセージ。外部APIの契約文字列のため変更しないこと。
const (
	MsgInvalidPlateFormat = "Invalid plate, please use the format AAA-9999"
	MsgDepartureNotPaid   = "You cannot register the departure without confirming the payment"
	MsgDuplicateOpen      = "It is not possible to enter this data because the same plate is in a record without having been finalized."
)

// バリデーションルール識別子。メトリクスのラベルに使用する。
const (
	RulePlateFormat             = "plate_format"
	RuleDepartureWithoutPayment = "departure_without_payment"
	RuleDuplicateOpenSession    = "duplicate_open_session"
)

// フィールドエラーのキー。
const (
	FieldPlate = "plate"
	FieldPaid  = "paid"
)

// ValidationError はフィールド単位のバリデーションエラーを保持する。
// 1つのフィールドに複数の違反が重なる場合はメッセージが追記される。
type ValidationError struct {
	Fields map[string][]string
	// Rules は違反したルール識別子の一覧（メトリクス用）。
	Rules []string
}

// NewValidationError は空のValidationErrorを生成する。
func NewValidationError() *ValidationError {
	return &ValidationError{
		Fields: make(map[string][]string),
	}
}

// Add はフィールドへのエラーメッセージとルール識別子を追記する。
func (e *ValidationError) Add(field, message, rule string) {
	e.Fields[field] = append(e.Fields[field], message)
	e.Rules = append(e.Rules, rule)
}

// HasErrors は1件以上の違反が記録されているかを返す。
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Error はerrorインターフェースを実装する。
// フィールド名順で安定した文字列を返す。
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// APIError は統一エラーフォーマットを表す。
// バリデーション以外のエラー（NotFound等）に使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, parking, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodePlateNotFound   = "PLATE_NOT_FOUND"
)

// NewSessionNotFoundError は記録未検出エラーを生成する。
func NewSessionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("parking session not found: %s", id),
		Category: "parking",
	}
}

// NewPlateNotFoundError は該当プレートの記録が1件もない場合のエラーを生成する。
func NewPlateNotFoundError(plate string) *APIError {
	return &APIError{
		Code:     ErrCodePlateNotFound,
		Message:  fmt.Sprintf("no parking records for plate: %s", plate),
		Category: "parking",
	}
}
