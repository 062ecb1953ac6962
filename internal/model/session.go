// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"time"
)

// ParkingSession は駐車場への1回の入出庫記録を表す。
// DepartureTimeがnilの間は「オープンなセッション」（出庫未登録）として扱う。
type ParkingSession struct {
	ID            string
	Plate         string
	Paid          bool
	ArrivalTime   time.Time
	DepartureTime *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Open は出庫が未登録かどうかを返す。
func (s *ParkingSession) Open() bool {
	return s.DepartureTime == nil
}

// platePattern はナンバープレートの正規形式（AAA-9999）。
var platePattern = regexp.MustCompile(`^[A-Z]{3}-[0-9]{4}$`)

// ValidPlateFormat はプレート文字列が AAA-9999 形式かどうかを返す。
func ValidPlateFormat(plate string) bool {
	return platePattern.MatchString(plate)
}
