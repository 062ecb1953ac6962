// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/parkman/internal/model"
)

// ErrDuplicateOpenSession はストレージ層の一意制約（オープンなセッションは
// プレートごとに1件）への違反を表す。事前チェックをすり抜けた同時実行の
// 書き込みはこのエラーとして検出され、サービス層で同一のバリデーション
// エラーに変換される。
var ErrDuplicateOpenSession = errors.New("duplicate open session for plate")

// SessionRepository は駐車セッションの永続化インターフェース。
type SessionRepository interface {
	// Insert は新規セッションを作成する。
	// オープンなセッションの一意制約に違反した場合はErrDuplicateOpenSessionを返す。
	Insert(ctx context.Context, session *model.ParkingSession) error

	// SetPaid は指定IDのセッションの支払い済みフラグのみをtrueに更新する。
	// 他のカラムには触れないため、読み取り後に割り込んだ出庫登録を上書きしない。
	SetPaid(ctx context.Context, id string, updatedAt time.Time) error

	// SetDeparture は指定IDのセッションの出庫時刻のみを設定する。
	// 他のカラムには触れない。
	SetDeparture(ctx context.Context, id string, departedAt time.Time) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ParkingSession, error)

	// FindByPlate は指定プレートの全セッション（オープン・クローズ問わず）を
	// 作成順の安定した並びで返す。
	FindByPlate(ctx context.Context, plate string) ([]*model.ParkingSession, error)

	// FindOpenByPlateExcluding は指定プレートのオープンなセッションのうち、
	// excludeID以外のものを返す。新規作成時はexcludeIDに空文字を渡す。
	FindOpenByPlateExcluding(ctx context.Context, plate, excludeID string) ([]*model.ParkingSession, error)
}
