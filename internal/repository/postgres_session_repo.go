package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/parkman/internal/model"
)

// openPlateConstraint は「オープンなセッションはプレートごとに1件」を保証する
// 部分一意インデックスの名前。マイグレーションの定義と一致させること。
const openPlateConstraint = "parking_sessions_open_plate_key"

// PostgresSessionRepo はPostgreSQLを使用した駐車セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Insert は新規セッションを作成する。
// 部分一意インデックスへの違反はErrDuplicateOpenSessionに変換する。
func (r *PostgresSessionRepo) Insert(ctx context.Context, session *model.ParkingSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO parking_sessions (id, plate, paid, arrival_time, departure_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.Plate, session.Paid, session.ArrivalTime,
		nullableTime(session.DepartureTime), session.CreatedAt, session.UpdatedAt,
	)
	if isOpenPlateViolation(err) {
		return fmt.Errorf("insert session %s: %w", session.ID, ErrDuplicateOpenSession)
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// SetPaid は指定IDのセッションの支払い済みフラグのみを更新する。
// 読み取り時点の値を書き戻さないため、割り込んだ出庫登録を消さない。
func (r *PostgresSessionRepo) SetPaid(ctx context.Context, id string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_sessions SET paid = TRUE, updated_at = $2 WHERE id = $1`,
		id, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set paid: %w", err)
	}
	return requireRowUpdated(res, id)
}

// SetDeparture は指定IDのセッションの出庫時刻のみを設定する。
func (r *PostgresSessionRepo) SetDeparture(ctx context.Context, id string, departedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_sessions SET departure_time = $2, updated_at = $2 WHERE id = $1`,
		id, departedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set departure: %w", err)
	}
	return requireRowUpdated(res, id)
}

// requireRowUpdated は更新が1行に適用されたことを確認する。
func requireRowUpdated(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no session row updated for id %s", id)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.ParkingSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, plate, paid, arrival_time, departure_time, created_at, updated_at
		 FROM parking_sessions
		 WHERE id = $1`,
		id,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// FindByPlate は指定プレートの全セッションを作成順で返す。
func (r *PostgresSessionRepo) FindByPlate(ctx context.Context, plate string) ([]*model.ParkingSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plate, paid, arrival_time, departure_time, created_at, updated_at
		 FROM parking_sessions
		 WHERE plate = $1
		 ORDER BY created_at, id`,
		plate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions by plate: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// FindOpenByPlateExcluding は指定プレートのオープンなセッションのうち
// excludeID以外のものを返す。
func (r *PostgresSessionRepo) FindOpenByPlateExcluding(ctx context.Context, plate, excludeID string) ([]*model.ParkingSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plate, paid, arrival_time, departure_time, created_at, updated_at
		 FROM parking_sessions
		 WHERE plate = $1 AND departure_time IS NULL AND id::text <> $2
		 ORDER BY created_at, id`,
		plate, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession は1行をParkingSessionに読み取る。
func scanSession(row rowScanner) (*model.ParkingSession, error) {
	session := &model.ParkingSession{}
	var departure sql.NullTime

	err := row.Scan(
		&session.ID, &session.Plate, &session.Paid, &session.ArrivalTime,
		&departure, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if departure.Valid {
		t := departure.Time
		session.DepartureTime = &t
	}
	return session, nil
}

// collectSessions は結果セット全体をスライスに読み取る。
func collectSessions(rows *sql.Rows) ([]*model.ParkingSession, error) {
	var sessions []*model.ParkingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// nullableTime は*time.TimeをNULL許容のバインド値に変換する。
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isOpenPlateViolation はオープンなセッションの部分一意インデックスへの
// 違反かどうかを判定する。
func isOpenPlateViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == openPlateConstraint
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
