// Package parking は駐車セッションの検証とライフサイクル操作を提供する。
package parking

import (
	"github.com/hitoshi/parkman/internal/model"
)

// Validate は永続化前の候補セッションを検証する純粋な判定関数。
// 副作用を持たず、違反があれば全件をフィールド単位で収集して返す。
// 違反がない場合はnilを返す。
//
// openSamePlateには同一プレートのオープンなセッションのうち、候補自身を
// 除いた集合を渡す（更新時に自分自身と衝突しないようにするため）。
//
// 検証ルール:
//  1. プレート形式（AAA-9999）
//  2. 支払い前の出庫登録の禁止
//  3. 同一プレートのオープンなセッションの重複禁止
func Validate(candidate *model.ParkingSession, openSamePlate []*model.ParkingSession) *model.ValidationError {
	verr := model.NewValidationError()

	if !model.ValidPlateFormat(candidate.Plate) {
		verr.Add(model.FieldPlate, model.MsgInvalidPlateFormat, model.RulePlateFormat)
	}

	if candidate.DepartureTime != nil && !candidate.Paid {
		verr.Add(model.FieldPaid, model.MsgDepartureNotPaid, model.RuleDepartureWithoutPayment)
	}

	for _, other := range openSamePlate {
		// 呼び出し側が除外済みのはずだが、候補自身との衝突は判定しない。
		if other.ID == candidate.ID {
			continue
		}
		verr.Add(model.FieldPlate, model.MsgDuplicateOpen, model.RuleDuplicateOpenSession)
		break
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
