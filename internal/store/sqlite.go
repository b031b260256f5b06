package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"salonbook/internal/model"
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and creates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks database liveness for readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS shops (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			address TEXT,
			phone TEXT,
			slot_interval_minutes INTEGER NOT NULL DEFAULT 30,
			approval_status TEXT NOT NULL DEFAULT 'pending',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS shop_hours (
			shop_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			open_time TEXT,
			close_time TEXT,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (shop_id, day_of_week),
			FOREIGN KEY (shop_id) REFERENCES shops(id)
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (shop_id) REFERENCES shops(id)
		)`,

		`CREATE TABLE IF NOT EXISTS stylists (
			id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			name TEXT NOT NULL,
			title TEXT,
			regular_days_off TEXT NOT NULL DEFAULT '[]',
			days_off TEXT NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (shop_id) REFERENCES shops(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			stylist_id TEXT,
			customer_id TEXT NOT NULL,
			booking_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (shop_id) REFERENCES shops(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_shop_date ON bookings(shop_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_services_shop ON services(shop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stylists_shop ON stylists(shop_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

const bookingColumns = `id, shop_id, service_id, stylist_id, customer_id,
	booking_date, start_time, end_time, status, notes, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	var stylistID, notes sql.NullString
	err := row.Scan(
		&b.ID, &b.ShopID, &b.ServiceID, &stylistID, &b.CustomerID,
		&b.BookingDate, &b.StartTime, &b.EndTime, &b.Status, &notes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stylistID.Valid {
		b.StylistID = &stylistID.String
	}
	if notes.Valid {
		b.Notes = notes.String
	}
	return &b, nil
}

func (s *SQLiteStore) queryBookings(ctx context.Context, where string, args ...any) ([]model.Booking, error) {
	q := "SELECT " + bookingColumns + " FROM bookings"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY booking_date, start_time, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListByShop(ctx context.Context, shopID, date string) ([]model.Booking, error) {
	return s.ListBookings(ctx, Filter{ShopID: shopID, Date: date})
}

func (s *SQLiteStore) ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	return s.ListBookings(ctx, Filter{CustomerID: customerID})
}

func (s *SQLiteStore) ListBookings(ctx context.Context, f Filter) ([]model.Booking, error) {
	var conds []string
	var args []any
	if f.ShopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, f.ShopID)
	}
	if f.CustomerID != "" {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.StylistID != "" {
		conds = append(conds, "stylist_id = ?")
		args = append(args, f.StylistID)
	}
	if f.Date != "" {
		conds = append(conds, "booking_date = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	return s.queryBookings(ctx, strings.Join(conds, " AND "), args...)
}

func (s *SQLiteStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE id = ?", b.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check booking id: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateID
	}

	var stylistID any
	if b.StylistID != nil {
		stylistID = *b.StylistID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, shop_id, service_id, stylist_id, customer_id,
			booking_date, start_time, end_time, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ShopID, b.ServiceID, stylistID, b.CustomerID,
		b.BookingDate, b.StartTime, b.EndTime, string(b.Status), b.Notes,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetBooking(ctx, id)
}

func (s *SQLiteStore) GetShop(ctx context.Context, id string) (*model.Shop, error) {
	var sh model.Shop
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, address, phone, slot_interval_minutes,
		       approval_status, is_active, created_at, updated_at
		FROM shops WHERE id = ?`, id,
	).Scan(&sh.ID, &sh.OwnerID, &sh.Name, &sh.Address, &sh.Phone,
		&sh.SlotIntervalMinutes, &sh.ApprovalStatus, &sh.IsActive,
		&sh.CreatedAt, &sh.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day_of_week, open_time, close_time, is_closed
		FROM shop_hours WHERE shop_id = ? ORDER BY day_of_week`, id)
	if err != nil {
		return nil, fmt.Errorf("get shop hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var oh model.OperatingHours
		var open, close sql.NullString
		if err := rows.Scan(&oh.DayOfWeek, &open, &close, &oh.IsClosed); err != nil {
			return nil, fmt.Errorf("scan shop hours: %w", err)
		}
		oh.OpenTime = open.String
		oh.CloseTime = close.String
		sh.OperatingHours = append(sh.OperatingHours, oh)
	}
	return &sh, rows.Err()
}

func (s *SQLiteStore) GetService(ctx context.Context, id string) (*model.Service, error) {
	var svc model.Service
	var category sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, duration_minutes, price, category, is_active, created_at
		FROM services WHERE id = ?`, id,
	).Scan(&svc.ID, &svc.ShopID, &svc.Name, &svc.DurationMinutes,
		&svc.Price, &category, &svc.IsActive, &svc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	svc.Category = category.String
	return &svc, nil
}

func (s *SQLiteStore) GetStylist(ctx context.Context, id string) (*model.Stylist, error) {
	var st model.Stylist
	var title sql.NullString
	var regularOff, daysOff string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, title, regular_days_off, days_off, is_active, created_at
		FROM stylists WHERE id = ?`, id,
	).Scan(&st.ID, &st.ShopID, &st.Name, &title, &regularOff, &daysOff,
		&st.IsActive, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stylist: %w", err)
	}
	st.Title = title.String
	if err := json.Unmarshal([]byte(regularOff), &st.RegularDaysOff); err != nil {
		return nil, fmt.Errorf("decode regular_days_off: %w", err)
	}
	if err := json.Unmarshal([]byte(daysOff), &st.DaysOff); err != nil {
		return nil, fmt.Errorf("decode days_off: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) PutShop(ctx context.Context, sh *model.Shop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shops (id, owner_id, name, address, phone, slot_interval_minutes,
			approval_status, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id, name = excluded.name,
			address = excluded.address, phone = excluded.phone,
			slot_interval_minutes = excluded.slot_interval_minutes,
			approval_status = excluded.approval_status,
			is_active = excluded.is_active, updated_at = excluded.updated_at`,
		sh.ID, sh.OwnerID, sh.Name, sh.Address, sh.Phone, sh.SlotIntervalMinutes,
		string(sh.ApprovalStatus), sh.IsActive, sh.CreatedAt, sh.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert shop: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM shop_hours WHERE shop_id = ?", sh.ID); err != nil {
		return fmt.Errorf("clear shop hours: %w", err)
	}
	for _, oh := range sh.OperatingHours {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shop_hours (shop_id, day_of_week, open_time, close_time, is_closed)
			VALUES (?, ?, ?, ?, ?)`,
			sh.ID, oh.DayOfWeek, oh.OpenTime, oh.CloseTime, oh.IsClosed)
		if err != nil {
			return fmt.Errorf("insert shop hours day %d: %w", oh.DayOfWeek, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) PutService(ctx context.Context, svc *model.Service) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, shop_id, name, duration_minutes, price, category, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, duration_minutes = excluded.duration_minutes,
			price = excluded.price, category = excluded.category,
			is_active = excluded.is_active`,
		svc.ID, svc.ShopID, svc.Name, svc.DurationMinutes, svc.Price,
		svc.Category, svc.IsActive, svc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PutStylist(ctx context.Context, st *model.Stylist) error {
	regularOff, err := json.Marshal(st.RegularDaysOff)
	if err != nil {
		return fmt.Errorf("encode regular_days_off: %w", err)
	}
	daysOff, err := json.Marshal(st.DaysOff)
	if err != nil {
		return fmt.Errorf("encode days_off: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stylists (id, shop_id, name, title, regular_days_off, days_off, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, title = excluded.title,
			regular_days_off = excluded.regular_days_off,
			days_off = excluded.days_off, is_active = excluded.is_active`,
		st.ID, st.ShopID, st.Name, st.Title, string(regularOff), string(daysOff),
		st.IsActive, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stylist: %w", err)
	}
	return nil
}
