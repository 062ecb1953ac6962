// Package cleanup は出庫済み駐車セッションの自動削除ジョブを提供する。
// 保持期間（デフォルト180日）を超過したクローズ済みの記録を
// 日次バッチで削除する。オープンな記録（departure_time未設定）は
// 保持期間に関わらず削除しない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// RetentionJob は保持期間を超過した出庫済みセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type RetentionJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 出庫済み記録の保持日数（デフォルト: 180）
}

// NewRetentionJob は新しいRetentionJobを生成する。
// デフォルトの保持日数は180日。
func NewRetentionJob(db Executor, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{
		db:            db,
		logger:        logger,
		RetentionDays: 180,
	}
}

// Run は保持期間を超過した出庫済みセッションを削除する。
// departure_timeがRetentionDays日前より古い記録をDELETEする。
// departure_timeがNULLのオープンな記録は削除対象に含まれない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *RetentionJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM parking_sessions
		WHERE departure_time IS NOT NULL
		AND departure_time < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
