package parking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/parkman/internal/model"
	"github.com/hitoshi/parkman/internal/repository"
)

// MetricsCollector はサービス層が記録するメトリクスのインターフェース。
type MetricsCollector interface {
	RecordSessionRegistered()
	RecordPaymentConfirmed()
	RecordDepartureRegistered()
	RecordValidationReject(rule string)
}

// noopMetrics はメトリクス未設定時に使用する何もしない実装。
type noopMetrics struct{}

func (noopMetrics) RecordSessionRegistered()           {}
func (noopMetrics) RecordPaymentConfirmed()            {}
func (noopMetrics) RecordDepartureRegistered()         {}
func (noopMetrics) RecordValidationReject(rule string) {}

// SessionView は照会APIに返すセッションの投影。
// 経過時間の文言と在車フラグを含み、タイムスタンプ自体は外部に出さない。
type SessionView struct {
	Session     *model.ParkingSession
	Elapsed     string
	StillParked bool
}

// Service は駐車セッションのライフサイクル操作を提供する。
// IDの採番とサーバー側タイムスタンプの付与はこの層のみが行い、
// すべての書き込みはValidateを通過してから永続化される。
type Service struct {
	repo    repository.SessionRepository
	metrics MetricsCollector

	// now は時刻の取得関数。1操作につき1回だけ読み、保存値と派生計算の
	// 両方に同じ値を使う。テストで固定時刻に差し替える。
	now func() time.Time
}

// NewService はServiceを生成する。metricsがnilの場合は記録を行わない。
func NewService(repo repository.SessionRepository, metrics MetricsCollector) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register は入庫を登録する。
// 到着時刻はサーバー側で付与し、paid=false・出庫未登録の状態で作成する。
// バリデーション拒否時は何も永続化せずValidationErrorを返す。
func (s *Service) Register(ctx context.Context, plate string) (*model.ParkingSession, error) {
	now := s.now().UTC()

	candidate := &model.ParkingSession{
		Plate:       plate,
		Paid:        false,
		ArrivalTime: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	open, err := s.repo.FindOpenByPlateExcluding(ctx, plate, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load open sessions for plate: %w", err)
	}

	if verr := Validate(candidate, open); verr != nil {
		s.recordRejects(verr)
		return nil, verr
	}

	candidate.ID = uuid.NewString()

	if err := s.repo.Insert(ctx, candidate); err != nil {
		// 事前チェックと書き込みの間に他の入庫が割り込んだ場合、
		// ストレージの一意制約が同じ違反を検出する。エラーの見え方を
		// 事前チェックと揃える。
		if errors.Is(err, repository.ErrDuplicateOpenSession) {
			verr := model.NewValidationError()
			verr.Add(model.FieldPlate, model.MsgDuplicateOpen, model.RuleDuplicateOpenSession)
			s.recordRejects(verr)
			return nil, verr
		}
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	s.metrics.RecordSessionRegistered()
	return candidate, nil
}

// ConfirmPayment は支払いを確定する。
// paidをtrueにするだけの操作はどの不変条件も破れないため再検証しない。
// 既に支払い済みの場合も成功を返す（冪等）。
// 更新はpaidカラムのみを対象とし、読み取りと書き込みの間に割り込んだ
// 出庫登録を上書きしない。
func (s *Service) ConfirmPayment(ctx context.Context, id string) (*model.ParkingSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(id)
	}

	now := s.now().UTC()

	if err := s.repo.SetPaid(ctx, id, now); err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	session.Paid = true
	session.UpdatedAt = now

	s.metrics.RecordPaymentConfirmed()
	return session, nil
}

// RegisterDeparture は出庫を登録する。
// 出庫時刻を設定したコピーを検証し、拒否された場合は保存済みの記録を
// 一切変更しない。
func (s *Service) RegisterDeparture(ctx context.Context, id string) (*model.ParkingSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(id)
	}

	now := s.now().UTC()

	updated := *session
	updated.DepartureTime = &now
	updated.UpdatedAt = now

	open, err := s.repo.FindOpenByPlateExcluding(ctx, session.Plate, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open sessions for plate: %w", err)
	}

	if verr := Validate(&updated, open); verr != nil {
		s.recordRejects(verr)
		return nil, verr
	}

	// 出庫時刻のみを更新し、他のカラムに読み取り時点の値を書き戻さない。
	if err := s.repo.SetDeparture(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("failed to register departure: %w", err)
	}

	s.metrics.RecordDepartureRegistered()
	return &updated, nil
}

// SearchByPlate は指定プレートの全セッションを経過時間付きの投影で返す。
// 1件も存在しないプレートはNotFoundとして扱う（空の成功とは区別する）。
func (s *Service) SearchByPlate(ctx context.Context, plate string) ([]SessionView, error) {
	sessions, err := s.repo.FindByPlate(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("failed to search sessions by plate: %w", err)
	}
	if len(sessions) == 0 {
		return nil, model.NewPlateNotFoundError(plate)
	}

	now := s.now().UTC()

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			Session:     session,
			Elapsed:     ElapsedDescription(session, now),
			StillParked: session.Open(),
		})
	}
	return views, nil
}

// recordRejects は違反した全ルールをメトリクスに記録する。
func (s *Service) recordRejects(verr *model.ValidationError) {
	for _, rule := range verr.Rules {
		s.metrics.RecordValidationReject(rule)
	}
}
