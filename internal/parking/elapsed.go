package parking

import (
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/parkman/internal/model"
)

// ElapsedDescription は到着から出庫（未出庫の場合はnow）までの経過時間を
// 分単位の文言として返す。端数は最近接の整数分に丸める。
// 1分のみ単数形（"1 minute"）、それ以外は0分を含めて複数形で表記する。
func ElapsedDescription(session *model.ParkingSession, now time.Time) string {
	end := now
	if session.DepartureTime != nil {
		end = *session.DepartureTime
	}

	minutes := int(math.Round(end.Sub(session.ArrivalTime).Minutes()))
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
