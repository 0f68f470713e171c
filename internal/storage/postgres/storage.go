package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/domain/repository"
	"github.com/vinocellar/vinocellar/internal/domain/state"
)

// querier is the subset of pgx operations shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool abstracts *pgxpool.Pool for tests.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// txRunner executes fn atomically: the root storage opens a transaction, a
// tx-scoped factory reuses the one already in progress.
type txRunner interface {
	run(ctx context.Context, fn func(q querier) error) error
}

// Storage acts as repository factory backed by PostgreSQL.
type Storage struct {
	pool   Pool
	logger *slog.Logger
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{db: s.pool, tx: poolRunner{pool: s.pool}, logger: s.logger}
}

func (s *Storage) Users() repository.UserRepository {
	return &userRepository{db: s.pool}
}

func (s *Storage) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepository{db: s.pool}
}

func (s *Storage) Offers() repository.OfferRepository {
	return &offerRepository{db: s.pool}
}

func (s *Storage) Sources() repository.SourceRepository {
	return &sourceRepository{db: s.pool}
}

// WithinTransaction runs fn against a factory bound to a single transaction.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(repository.Factory) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(&txFactory{tx: tx, logger: s.logger})
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

type poolRunner struct {
	pool Pool
}

func (r poolRunner) run(ctx context.Context, fn func(q querier) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

type reuseRunner struct {
	tx pgx.Tx
}

func (r reuseRunner) run(ctx context.Context, fn func(q querier) error) error {
	return fn(r.tx)
}

// txFactory exposes repositories bound to one open transaction.
type txFactory struct {
	tx     pgx.Tx
	logger *slog.Logger
}

func (f *txFactory) Orders() repository.OrderRepository {
	return &orderRepository{db: f.tx, tx: reuseRunner{tx: f.tx}, logger: f.logger}
}

func (f *txFactory) Users() repository.UserRepository {
	return &userRepository{db: f.tx}
}

func (f *txFactory) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepository{db: f.tx}
}

func (f *txFactory) Offers() repository.OfferRepository {
	return &offerRepository{db: f.tx}
}

func (f *txFactory) Sources() repository.SourceRepository {
	return &sourceRepository{db: f.tx}
}

func (f *txFactory) WithinTransaction(ctx context.Context, fn func(repository.Factory) error) error {
	return fn(f)
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            wine_expert_id BIGINT REFERENCES users(id),
            payment_customer_id TEXT,
            primary_address_id BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS user_addresses (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id),
            street1 TEXT NOT NULL DEFAULT '',
            street2 TEXT NOT NULL DEFAULT '',
            city TEXT NOT NULL DEFAULT '',
            state_region TEXT NOT NULL DEFAULT '',
            country TEXT NOT NULL DEFAULT '',
            postcode TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS user_themes (
            user_id BIGINT NOT NULL REFERENCES users(id),
            theme_id BIGINT NOT NULL,
            PRIMARY KEY (user_id, theme_id)
        )`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id),
            type TEXT NOT NULL,
            bottle_qty INT NOT NULL,
            budget DOUBLE PRECISION NOT NULL,
            state TEXT NOT NULL DEFAULT 'active',
            last_order_searched_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id SERIAL PRIMARY KEY,
            order_number TEXT NOT NULL DEFAULT '',
            user_id BIGINT NOT NULL REFERENCES users(id),
            subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
            state TEXT NOT NULL,
            action TEXT,
            scheduled_for TIMESTAMPTZ,
            state_changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            timed_out BOOLEAN NOT NULL DEFAULT FALSE,
            exception_message TEXT,
            shipping_name TEXT NOT NULL DEFAULT '',
            shipping_street1 TEXT NOT NULL DEFAULT '',
            shipping_street2 TEXT NOT NULL DEFAULT '',
            shipping_city TEXT NOT NULL DEFAULT '',
            shipping_state_region TEXT NOT NULL DEFAULT '',
            shipping_country TEXT NOT NULL DEFAULT '',
            shipping_postcode TEXT NOT NULL DEFAULT '',
            shipping_phone TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS order_history (
            id SERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES orders(id),
            state TEXT NOT NULL,
            parent_id BIGINT REFERENCES order_history(id),
            exception_message TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS subscription_snapshots (
            order_id BIGINT PRIMARY KEY REFERENCES orders(id),
            type TEXT NOT NULL,
            bottle_qty INT NOT NULL,
            budget DOUBLE PRECISION NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS product_offers (
            id SERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES orders(id),
            source_id BIGINT NOT NULL,
            total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
            accepted BOOLEAN NOT NULL DEFAULT FALSE,
            charge_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS offer_items (
            id SERIAL PRIMARY KEY,
            offer_id BIGINT NOT NULL REFERENCES product_offers(id),
            master_product_id BIGINT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            sku TEXT NOT NULL DEFAULT '',
            price DOUBLE PRECISION NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS sources (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS source_states (
            source_id BIGINT NOT NULL REFERENCES sources(id),
            state_code TEXT NOT NULL,
            PRIMARY KEY (source_id, state_code)
        )`,
		`CREATE TABLE IF NOT EXISTS shipping_rates (
            id SERIAL PRIMARY KEY,
            source_id BIGINT NOT NULL REFERENCES sources(id),
            bottle_qty INT NOT NULL,
            from_postcode TEXT NOT NULL,
            to_postcode TEXT NOT NULL,
            shipping_cost DOUBLE PRECISION NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS salestax_rates (
            id SERIAL PRIMARY KEY,
            source_id BIGINT NOT NULL REFERENCES sources(id),
            from_postcode TEXT NOT NULL,
            to_postcode TEXT NOT NULL,
            taxrate DOUBLE PRECISION NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_scheduled ON orders(scheduled_for) WHERE action IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

const orderColumns = `id, order_number, user_id, subscription_id, state, action, scheduled_for,
        state_changed_at, timed_out, exception_message,
        shipping_name, shipping_street1, shipping_street2, shipping_city,
        shipping_state_region, shipping_country, shipping_postcode, shipping_phone, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o         model.Order
		st        string
		action    *string
		excMsg    *string
		scheduled *time.Time
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.SubscriptionID, &st, &action, &scheduled,
		&o.StateChangedAt, &o.TimedOut, &excMsg,
		&o.Shipping.Name, &o.Shipping.Street1, &o.Shipping.Street2, &o.Shipping.City,
		&o.Shipping.StateRegion, &o.Shipping.Country, &o.Shipping.Postcode, &o.Shipping.Phone,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.State = state.State(st)
	if action != nil {
		a := state.Action(*action)
		o.Action = &a
	}
	o.ScheduledFor = scheduled
	o.ExceptionMessage = excMsg
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()
	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- OrderRepository implementation ---

type orderRepository struct {
	db     querier
	tx     txRunner
	logger *slog.Logger
}

func (r *orderRepository) Create(ctx context.Context, userID, subscriptionID int64, scheduledFor *time.Time) (*model.Order, error) {
	var created *model.Order
	err := r.tx.run(ctx, func(q querier) error {
		const userQuery = `SELECT u.first_name, u.phone, a.street1, a.street2, a.city,
                                  a.state_region, a.country, a.postcode
                           FROM users u JOIN user_addresses a ON u.primary_address_id = a.id
                           WHERE u.id=$1`
		var shipping model.ShippingAddress
		err := q.QueryRow(ctx, userQuery, userID).Scan(
			&shipping.Name, &shipping.Phone, &shipping.Street1, &shipping.Street2,
			&shipping.City, &shipping.StateRegion, &shipping.Country, &shipping.Postcode,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		const subQuery = `SELECT type, bottle_qty, budget FROM subscriptions WHERE id=$1`
		var (
			subType   string
			bottleQty int
			budget    float64
		)
		if err := q.QueryRow(ctx, subQuery, subscriptionID).Scan(&subType, &bottleQty, &budget); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		const insertOrder = `INSERT INTO orders (
                user_id, subscription_id, state, action, scheduled_for,
                shipping_name, shipping_street1, shipping_street2, shipping_city,
                shipping_state_region, shipping_country, shipping_postcode, shipping_phone
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
            RETURNING id, state_changed_at, created_at`
		order := model.Order{
			UserID:         userID,
			SubscriptionID: subscriptionID,
			State:          state.Started,
			Shipping:       shipping,
			ScheduledFor:   scheduledFor,
		}
		action := state.ActionSearch
		order.Action = &action
		err = q.QueryRow(ctx, insertOrder,
			userID, subscriptionID, string(state.Started), string(state.ActionSearch), scheduledFor,
			shipping.Name, shipping.Street1, shipping.Street2, shipping.City,
			shipping.StateRegion, shipping.Country, shipping.Postcode, shipping.Phone,
		).Scan(&order.ID, &order.StateChangedAt, &order.CreatedAt)
		if err != nil {
			return err
		}

		order.Number = fmt.Sprintf("%07d", order.ID)
		if _, err := q.Exec(ctx, `UPDATE orders SET order_number=$1 WHERE id=$2`, order.Number, order.ID); err != nil {
			return err
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO order_history (order_id, state) VALUES ($1, $2)`,
			order.ID, string(state.Started),
		); err != nil {
			return err
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO subscription_snapshots (order_id, type, bottle_qty, budget) VALUES ($1,$2,$3,$4)`,
			order.ID, subType, bottleQty, budget,
		); err != nil {
			return err
		}

		created = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepository) Move(ctx context.Context, order *model.Order, action *state.Action, st state.State, exceptionMsg *string) (*model.Order, error) {
	moved := *order
	err := r.tx.run(ctx, func(q querier) error {
		const headQuery = `SELECT id FROM order_history WHERE order_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`
		var parentID *int64
		var head int64
		err := q.QueryRow(ctx, headQuery, order.ID).Scan(&head)
		switch {
		case err == nil:
			parentID = &head
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return err
		}

		const insertEntry = `INSERT INTO order_history (order_id, state, parent_id, exception_message)
                             VALUES ($1,$2,$3,$4) RETURNING id, created_at`
		var (
			entryID   int64
			createdAt time.Time
		)
		if err := q.QueryRow(ctx, insertEntry, order.ID, string(st), parentID, exceptionMsg).Scan(&entryID, &createdAt); err != nil {
			return err
		}

		var actionValue *string
		if action != nil {
			v := string(*action)
			actionValue = &v
		}
		const updateOrder = `UPDATE orders
                             SET state=$1, action=$2, scheduled_for=NULL, exception_message=$3, state_changed_at=$4
                             WHERE id=$5`
		if _, err := q.Exec(ctx, updateOrder, string(st), actionValue, exceptionMsg, createdAt, order.ID); err != nil {
			return err
		}

		moved.State = st
		moved.Action = action
		moved.ScheduledFor = nil
		moved.ExceptionMessage = exceptionMsg
		moved.StateChangedAt = createdAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

func (r *orderRepository) ListDue(ctx context.Context, now time.Time) ([]model.Order, error) {
	query := `SELECT ` + qualifiedOrderColumns("o") + `
              FROM orders o JOIN subscriptions s ON o.subscription_id = s.id
              WHERE o.scheduled_for <= $1
                AND o.action IS NOT NULL
                AND (s.state = $2 OR o.state <> $3)`
	rows, err := r.db.Query(ctx, query, now, string(model.SubscriptionActive), string(state.Started))
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepository) ListTimedOut(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	exempt := state.TimeoutExemptStates()
	states := make([]string, 0, len(exempt))
	for _, s := range exempt {
		states = append(states, string(s))
	}

	query := `SELECT ` + qualifiedOrderColumns("o") + `
              FROM orders o JOIN subscriptions s ON o.subscription_id = s.id
              WHERE s.state = $1
                AND o.state_changed_at < $2
                AND o.timed_out = FALSE
                AND o.state <> ALL($3::text[])`
	rows, err := r.db.Query(ctx, query, string(model.SubscriptionActive), cutoff, states)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *orderRepository) MarkTimedOut(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE orders SET timed_out=TRUE WHERE id = ANY($1::bigint[])`, orderIDs)
	return err
}

func (r *orderRepository) History(ctx context.Context, orderID int64) ([]model.OrderHistory, error) {
	const query = `SELECT id, order_id, state, parent_id, exception_message, created_at
                   FROM order_history WHERE order_id=$1 ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OrderHistory
	for rows.Next() {
		var (
			h  model.OrderHistory
			st string
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &st, &h.ParentID, &h.ExceptionMessage, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.State = state.State(st)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) UpdateShipping(ctx context.Context, orderID int64, shipping model.ShippingAddress) error {
	const query = `UPDATE orders SET
            shipping_name=$1, shipping_street1=$2, shipping_street2=$3, shipping_city=$4,
            shipping_state_region=$5, shipping_country=$6, shipping_postcode=$7, shipping_phone=$8
        WHERE id=$9`
	_, err := r.db.Exec(ctx, query,
		shipping.Name, shipping.Street1, shipping.Street2, shipping.City,
		shipping.StateRegion, shipping.Country, shipping.Postcode, shipping.Phone, orderID,
	)
	return err
}

func (r *orderRepository) UpdateSnapshot(ctx context.Context, orderID int64, sub *model.Subscription) error {
	const query = `INSERT INTO subscription_snapshots (order_id, type, bottle_qty, budget)
                   VALUES ($1,$2,$3,$4)
                   ON CONFLICT (order_id) DO UPDATE SET type=$2, bottle_qty=$3, budget=$4`
	_, err := r.db.Exec(ctx, query, orderID, string(sub.Type), sub.BottleQty, sub.Budget)
	return err
}

func (r *orderRepository) Snapshot(ctx context.Context, orderID int64) (*model.SubscriptionSnapshot, error) {
	const query = `SELECT order_id, type, bottle_qty, budget FROM subscription_snapshots WHERE order_id=$1`
	var (
		snap    model.SubscriptionSnapshot
		subType string
	)
	err := r.db.QueryRow(ctx, query, orderID).Scan(&snap.OrderID, &subType, &snap.BottleQty, &snap.Budget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	snap.Type = model.SubscriptionType(subType)
	return &snap, nil
}

func (r *orderRepository) SetScheduledFor(ctx context.Context, orderID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET scheduled_for=$1 WHERE id=$2`, at, orderID)
	return err
}

func qualifiedOrderColumns(alias string) string {
	return alias + `.id, ` + alias + `.order_number, ` + alias + `.user_id, ` + alias + `.subscription_id, ` +
		alias + `.state, ` + alias + `.action, ` + alias + `.scheduled_for, ` + alias + `.state_changed_at, ` +
		alias + `.timed_out, ` + alias + `.exception_message, ` + alias + `.shipping_name, ` +
		alias + `.shipping_street1, ` + alias + `.shipping_street2, ` + alias + `.shipping_city, ` +
		alias + `.shipping_state_region, ` + alias + `.shipping_country, ` + alias + `.shipping_postcode, ` +
		alias + `.shipping_phone, ` + alias + `.created_at`
}

// --- UserRepository implementation ---

type userRepository struct {
	db querier
}

const userColumns = `id, email, password_hash, first_name, phone, wine_expert_id,
        payment_customer_id, primary_address_id, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.Phone,
		&u.WineExpertID, &u.PaymentCustomerID, &u.PrimaryAddressID, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, email, passwordHash string) (*model.User, error) {
	const query = `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id, created_at`
	var u model.User
	err := r.db.QueryRow(ctx, query, email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	u.Email = email
	u.PasswordHash = passwordHash
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) WineExpertFor(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT e.id, e.email, e.password_hash, e.first_name, e.phone, e.wine_expert_id,
                     e.payment_customer_id, e.primary_address_id, e.created_at
              FROM users e JOIN users u ON u.wine_expert_id = e.id
              WHERE u.id=$1`
	u, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) PrimaryAddress(ctx context.Context, userID int64) (*model.Address, error) {
	const query = `SELECT a.id, a.user_id, a.street1, a.street2, a.city, a.state_region, a.country, a.postcode
                   FROM user_addresses a JOIN users u ON u.primary_address_id = a.id
                   WHERE u.id=$1`
	var a model.Address
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.Street1, &a.Street2, &a.City, &a.StateRegion, &a.Country, &a.Postcode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *userRepository) ThemeIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT theme_id FROM user_themes WHERE user_id=$1 ORDER BY theme_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) SetPaymentCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET payment_customer_id=$1 WHERE id=$2`, customerID, userID)
	return err
}

// --- SubscriptionRepository implementation ---

type subscriptionRepository struct {
	db querier
}

const subscriptionColumns = `id, user_id, type, bottle_qty, budget, state, last_order_searched_at, created_at`

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var (
		s       model.Subscription
		subType string
		st      string
	)
	err := row.Scan(&s.ID, &s.UserID, &subType, &s.BottleQty, &s.Budget, &st, &s.LastOrderSearchedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Type = model.SubscriptionType(subType)
	s.State = model.SubscriptionState(st)
	return &s, nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	s, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepository) PrimaryForUser(ctx context.Context, userID int64) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at LIMIT 1`
	s, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepository) SetLastOrderSearchedAt(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE subscriptions SET last_order_searched_at=$1 WHERE id=$2`, at, id)
	return err
}

// --- OfferRepository implementation ---

type offerRepository struct {
	db querier
}

func (r *offerRepository) Replace(ctx context.Context, orderID int64, products []model.Product) error {
	const deleteItems = `DELETE FROM offer_items WHERE offer_id IN (SELECT id FROM product_offers WHERE order_id=$1)`
	if _, err := r.db.Exec(ctx, deleteItems, orderID); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM product_offers WHERE order_id=$1`, orderID); err != nil {
		return err
	}

	bySource := make(map[int64][]model.Product)
	sourceOrder := make([]int64, 0)
	for _, p := range products {
		if _, seen := bySource[p.SourceID]; !seen {
			sourceOrder = append(sourceOrder, p.SourceID)
		}
		bySource[p.SourceID] = append(bySource[p.SourceID], p)
	}

	for _, sourceID := range sourceOrder {
		group := bySource[sourceID]
		var total float64
		for _, p := range group {
			total += p.Price
		}

		var offerID int64
		const insertOffer = `INSERT INTO product_offers (order_id, source_id, total_cost) VALUES ($1,$2,$3) RETURNING id`
		if err := r.db.QueryRow(ctx, insertOffer, orderID, sourceID, total).Scan(&offerID); err != nil {
			return err
		}

		for _, p := range group {
			const insertItem = `INSERT INTO offer_items (offer_id, master_product_id, name, sku, price) VALUES ($1,$2,$3,$4,$5)`
			if _, err := r.db.Exec(ctx, insertItem, offerID, p.MasterProductID, p.Name, p.SKU, p.Price); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, offerID int64) (*model.ProductOffer, error) {
	const query = `SELECT id, order_id, source_id, total_cost, accepted, charge_id, created_at
                   FROM product_offers WHERE id=$1`
	var o model.ProductOffer
	err := r.db.QueryRow(ctx, query, offerID).Scan(
		&o.ID, &o.OrderID, &o.SourceID, &o.TotalCost, &o.Accepted, &o.ChargeID, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *offerRepository) Accepted(ctx context.Context, orderID int64) (*model.ProductOffer, error) {
	const query = `SELECT id, order_id, source_id, total_cost, accepted, charge_id, created_at
                   FROM product_offers WHERE order_id=$1 AND accepted ORDER BY created_at LIMIT 1`
	var o model.ProductOffer
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.OrderID, &o.SourceID, &o.TotalCost, &o.Accepted, &o.ChargeID, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *offerRepository) Accept(ctx context.Context, offerID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE product_offers SET accepted=TRUE WHERE id=$1`, offerID)
	return err
}

func (r *offerRepository) SetChargeID(ctx context.Context, offerID int64, chargeID string) error {
	_, err := r.db.Exec(ctx, `UPDATE product_offers SET charge_id=$1 WHERE id=$2`, chargeID, offerID)
	return err
}

func (r *offerRepository) Items(ctx context.Context, offerID int64) ([]model.OfferItem, error) {
	const query = `SELECT id, offer_id, master_product_id, name, sku, price FROM offer_items WHERE offer_id=$1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OfferItem
	for rows.Next() {
		var item model.OfferItem
		if err := rows.Scan(&item.ID, &item.OfferID, &item.MasterProductID, &item.Name, &item.SKU, &item.Price); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *offerRepository) AcceptedWineIDs(ctx context.Context, userID int64) ([]int64, error) {
	const query = `SELECT oi.master_product_id
                   FROM offer_items oi
                   JOIN product_offers po ON oi.offer_id = po.id
                   JOIN orders o ON po.order_id = o.id
                   WHERE po.accepted AND o.user_id=$1`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- SourceRepository implementation ---

type sourceRepository struct {
	db querier
}

func (r *sourceRepository) ShippingTo(ctx context.Context, statePostcode string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT source_id FROM source_states WHERE state_code=$1 ORDER BY source_id`, statePostcode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *sourceRepository) ShippingCost(ctx context.Context, sourceID int64, bottleQty int, postcode string) (float64, error) {
	const query = `SELECT shipping_cost FROM shipping_rates
                   WHERE source_id=$1 AND bottle_qty=$2 AND from_postcode <= $3 AND to_postcode >= $3
                   LIMIT 1`
	var cost float64
	err := r.db.QueryRow(ctx, query, sourceID, bottleQty, postcode).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("shipping cost not found for source %d, postcode %s, bottle_qty %d: %w",
				sourceID, postcode, bottleQty, domainErrors.ErrNotFound)
		}
		return 0, err
	}
	return cost, nil
}

func (r *sourceRepository) TaxRate(ctx context.Context, sourceID int64, postcode string) (float64, error) {
	const query = `SELECT taxrate FROM salestax_rates
                   WHERE source_id=$1 AND from_postcode <= $2 AND to_postcode >= $2
                   LIMIT 1`
	var rate float64
	err := r.db.QueryRow(ctx, query, sourceID, postcode).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("tax rate not found for source %d, postcode %s: %w",
				sourceID, postcode, domainErrors.ErrNotFound)
		}
		return 0, err
	}
	return rate, nil
}
