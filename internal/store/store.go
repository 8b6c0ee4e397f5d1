package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/store/config"
)

// Store is the operator action journal.
type Store interface {
	StatusChangePost(ctx context.Context, change model.StatusChange) error
	StatusChangeGet(ctx context.Context, operator string, limit int) ([]model.StatusChange, error)
	ExportPost(ctx context.Context, export model.ReportExport) error
	ExportGet(ctx context.Context, operator string, limit int) ([]model.ReportExport, error)
	Close() error
}

var ErrLimitIncorrect = errors.New("limit value is incorrect")

const defaultLimit = 50

func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return NewMemStore(), nil
	}
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	s, err := newDBStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

type store struct {
	database *sql.DB
}

func newDBStore(db *sql.DB) (*store, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &store{database: db}, nil
}

func migrate(db *sql.DB) error {
	// Журнал смены статусов.
	// Одна запись на одну массовую операцию, номера заказов хранятся JSON-массивом
	_, err := db.Exec(
		"CREATE TABLE IF NOT EXISTS status_change (" +
			" id SERIAL PRIMARY KEY," +
			" operator VARCHAR (64) NOT NULL," +
			" marketplace VARCHAR (20) NOT NULL," +
			" order_ids TEXT NOT NULL," +
			" from_status VARCHAR (40) NOT NULL," +
			" to_status VARCHAR (40) NOT NULL," +
			" changed_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return err
	}

	// Журнал выгрузок документов
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS report_export (" +
			" id SERIAL PRIMARY KEY," +
			" operator VARCHAR (64) NOT NULL," +
			" marketplace VARCHAR (20) NOT NULL," +
			" kind VARCHAR (20) NOT NULL," +
			" filename VARCHAR (255) NOT NULL," +
			" items INTEGER NOT NULL," +
			" skipped INTEGER NOT NULL," +
			" exported_at TIMESTAMP NOT NULL" +
			" );")
	return err
}

func (store *store) StatusChangePost(ctx context.Context, change model.StatusChange) error {
	ids, err := json.Marshal(change.OrderIDs)
	if err != nil {
		return err
	}
	_, err = store.database.ExecContext(ctx,
		"INSERT INTO status_change (operator, marketplace, order_ids, from_status, to_status, changed_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		change.Operator,
		string(change.Marketplace),
		string(ids),
		change.FromStatus,
		change.ToStatus,
		change.ChangedAt)
	return err
}

func (store *store) StatusChangeGet(ctx context.Context, operator string, limit int) ([]model.StatusChange, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	// Последние операции оператора, новые сверху
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, operator, marketplace, order_ids, from_status, to_status, changed_at"+
			" FROM status_change"+
			" WHERE operator = $1"+
			" ORDER BY id DESC"+
			" LIMIT $2",
		operator,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []model.StatusChange
	for rows.Next() {
		var row model.StatusChange
		var ids string
		err := rows.Scan(&row.ID,
			&row.Operator,
			&row.Marketplace,
			&ids,
			&row.FromStatus,
			&row.ToStatus,
			&row.ChangedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &row.OrderIDs); err != nil {
			return nil, err
		}
		changes = append(changes, row)
	}
	return changes, rows.Err()
}

func (store *store) ExportPost(ctx context.Context, export model.ReportExport) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO report_export (operator, marketplace, kind, filename, items, skipped, exported_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		export.Operator,
		string(export.Marketplace),
		export.Kind,
		export.Filename,
		export.Items,
		export.Skipped,
		export.ExportedAt)
	return err
}

func (store *store) ExportGet(ctx context.Context, operator string, limit int) ([]model.ReportExport, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, operator, marketplace, kind, filename, items, skipped, exported_at"+
			" FROM report_export"+
			" WHERE operator = $1"+
			" ORDER BY id DESC"+
			" LIMIT $2",
		operator,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []model.ReportExport
	for rows.Next() {
		var row model.ReportExport
		err := rows.Scan(&row.ID,
			&row.Operator,
			&row.Marketplace,
			&row.Kind,
			&row.Filename,
			&row.Items,
			&row.Skipped,
			&row.ExportedAt)
		if err != nil {
			return nil, err
		}
		exports = append(exports, row)
	}
	return exports, rows.Err()
}

func (store *store) Close() error {
	return store.database.Close()
}

func checkLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, ErrLimitIncorrect
	case limit == 0:
		return defaultLimit, nil
	default:
		return limit, nil
	}
}

// Журнал в памяти, когда база не настроена

type memStore struct {
	mu      sync.Mutex
	changes []model.StatusChange
	exports []model.ReportExport
}

func NewMemStore() Store {
	return &memStore{}
}

func (m *memStore) StatusChangePost(_ context.Context, change model.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	change.ID = int64(len(m.changes) + 1)
	change.OrderIDs = append([]string(nil), change.OrderIDs...)
	m.changes = append(m.changes, change)
	return nil
}

func (m *memStore) StatusChangeGet(_ context.Context, operator string, limit int) ([]model.StatusChange, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.StatusChange
	for i := len(m.changes) - 1; i >= 0 && len(res) < limit; i-- {
		if m.changes[i].Operator == operator {
			res = append(res, m.changes[i])
		}
	}
	return res, nil
}

func (m *memStore) ExportPost(_ context.Context, export model.ReportExport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	export.ID = int64(len(m.exports) + 1)
	m.exports = append(m.exports, export)
	return nil
}

func (m *memStore) ExportGet(_ context.Context, operator string, limit int) ([]model.ReportExport, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.ReportExport
	for _, e := range m.exports {
		if e.Operator == operator {
			res = append(res, e)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *memStore) Close() error {
	return nil
}
