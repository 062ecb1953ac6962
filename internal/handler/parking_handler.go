// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/parkman/internal/model"
	"github.com/hitoshi/parkman/internal/parking"
)

// ParkingServiceInterface は駐車ハンドラーが必要とするサービスインターフェース。
type ParkingServiceInterface interface {
	// Register は入庫を登録する。
	Register(ctx context.Context, plate string) (*model.ParkingSession, error)
	// ConfirmPayment は支払いを確定する。
	ConfirmPayment(ctx context.Context, id string) (*model.ParkingSession, error)
	// RegisterDeparture は出庫を登録する。
	RegisterDeparture(ctx context.Context, id string) (*model.ParkingSession, error)
	// SearchByPlate は指定プレートの全セッションを投影付きで返す。
	SearchByPlate(ctx context.Context, plate string) ([]parking.SessionView, error)
}

// ParkingHandler は駐車セッションAPIのHTTPハンドラー。
type ParkingHandler struct {
	service ParkingServiceInterface
}

// NewParkingHandler はParkingHandlerを生成する。
func NewParkingHandler(service ParkingServiceInterface) *ParkingHandler {
	return &ParkingHandler{service: service}
}

// registerRequest は入庫登録リクエストのボディ。
type registerRequest struct {
	Plate string `json:"plate"`
}

// sessionResponse は書き込み系エンドポイントのレスポンス。
// タイムスタンプは内部情報のため公開しない。
type sessionResponse struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
	Paid  bool   `json:"paid"`
}

// searchResponseItem はプレート照会エンドポイントのレスポンス要素。
// 経過時間の文言（time）と在車フラグ（left）を付加する。
type searchResponseItem struct {
	ID    string `json:"id"`
	Plate string `json:"plate"`
	Paid  bool   `json:"paid"`
	Time  string `json:"time"`
	Left  bool   `json:"left"`
}

// Register は入庫登録を処理する。
// POST /parking
func (h *ParkingHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "failed to parse request body",
			Category: "validation",
		})
		return
	}

	session, err := h.service.Register(r.Context(), req.Plate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// ConfirmPayment は支払い確定を処理する。
// PUT /parking/{id}/pay
func (h *ParkingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.ConfirmPayment(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toSessionResponse(session))
}

// RegisterDeparture は出庫登録を処理する。
// PUT /parking/{id}/out
func (h *ParkingHandler) RegisterDeparture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.RegisterDeparture(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toSessionResponse(session))
}

// SearchByPlate はプレートによる照会を処理する。
// GET /parking/{plate}
//
// ルート定義上のパラメータ名はPUT系エンドポイントと共有する"id"だが、
// GETではトークンをプレートとして解釈する。
// パストークンがAAA-9999形式に一致しない場合は、ルートパターン自体に
// 一致しなかった扱いとして405を返す（照会APIのルート形状の契約）。
func (h *ParkingHandler) SearchByPlate(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "id")

	if !model.ValidPlateFormat(plate) {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	views, err := h.service.SearchByPlate(r.Context(), plate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]searchResponseItem, 0, len(views))
	for _, v := range views {
		items = append(items, searchResponseItem{
			ID:    v.Session.ID,
			Plate: v.Session.Plate,
			Paid:  v.Session.Paid,
			Time:  v.Elapsed,
			Left:  !v.StillParked,
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// toSessionResponse はParkingSessionをレスポンス形式に変換する。
func toSessionResponse(session *model.ParkingSession) sessionResponse {
	return sessionResponse{
		ID:    session.ID,
		Plate: session.Plate,
		Paid:  session.Paid,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// validationErrorResponse はフィールド単位のバリデーションエラーレスポンス。
type validationErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスに変換する。
// バリデーションエラーはフィールド単位の400、NotFound系は404、それ以外は500。
func handleServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{Errors: verr.Fields})
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "internal server error",
		Category: "system",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSessionNotFound, model.ErrCodePlateNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
