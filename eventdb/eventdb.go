// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists vault events in sqlite and serves filtered
// queries over them.
package eventdb

import (
	"context"
	"database/sql"
	"math/big"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/vault"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	vault BLOB(20) NOT NULL,
	name TEXT NOT NULL,
	actor BLOB(20) NOT NULL,
	amount TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS event_vault_i ON event(vault);
CREATE INDEX IF NOT EXISTS event_ts_i ON event(ts);`

// OrderType query result order.
type OrderType string

const (
	ASC  OrderType = "ASC"
	DESC OrderType = "DESC"
)

// Range filters events by timestamp, inclusive.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Options paginates query results.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Filter selects events to return.
type Filter struct {
	Vault   *helios.Address `json:"vault"`
	Name    string          `json:"name"`
	Order   OrderType       `json:"order"`
	Range   *Range          `json:"range"`
	Options *Options        `json:"options"`
}

// Event is one stored vault event.
type Event struct {
	Sequence uint64         `json:"sequence"`
	Time     uint64         `json:"time"`
	Vault    helios.Address `json:"vault"`
	Name     string         `json:"name"`
	Actor    helios.Address `json:"actor"`
	Amount   *big.Int       `json:"amount"`
}

// EventDB stores vault events.
type EventDB struct {
	path string
	db   *sql.DB
}

// New opens an event db at path, creating the schema when missing.
func New(path string) (*EventDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(eventTableSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &EventDB{path: path, db: db}, nil
}

// NewMem opens an in-memory event db, for tests.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close closes the db.
func (e *EventDB) Close() error {
	return e.db.Close()
}

// Path returns the db file path.
func (e *EventDB) Path() string {
	return e.path
}

// Post stores one vault event. It implements vault.EventSink.
func (e *EventDB) Post(ev *vault.Event) error {
	amount := "0"
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	_, err := e.db.Exec(
		"INSERT INTO event(ts, vault, name, actor, amount) VALUES(?,?,?,?,?)",
		ev.Time, ev.Vault.Bytes(), ev.Name, ev.Actor.Bytes(), amount,
	)
	return err
}

// Filter returns events matching the filter, oldest first unless DESC is
// requested.
func (e *EventDB) Filter(ctx context.Context, filter *Filter) ([]*Event, error) {
	query := "SELECT seq, ts, vault, name, actor, amount FROM event WHERE 1"
	var args []any

	if filter != nil {
		if filter.Vault != nil {
			query += " AND vault = ?"
			args = append(args, filter.Vault.Bytes())
		}
		if filter.Name != "" {
			query += " AND name = ?"
			args = append(args, filter.Name)
		}
		if filter.Range != nil {
			query += " AND ts >= ? AND ts <= ?"
			args = append(args, filter.Range.From, filter.Range.To)
		}
		if filter.Order == DESC {
			query += " ORDER BY seq DESC"
		} else {
			query += " ORDER BY seq ASC"
		}
		if filter.Options != nil {
			query += " LIMIT ? OFFSET ?"
			args = append(args, filter.Options.Limit, filter.Options.Offset)
		}
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		var (
			event         Event
			vaultB, actor []byte
			amount        string
		)
		if err := rows.Scan(&event.Sequence, &event.Time, &vaultB, &event.Name, &actor, &amount); err != nil {
			return nil, err
		}
		event.Vault = helios.BytesToAddress(vaultB)
		event.Actor = helios.BytesToAddress(actor)
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, errors.Errorf("corrupt amount %q at seq %d", amount, event.Sequence)
		}
		event.Amount = value
		events = append(events, &event)
	}
	return events, rows.Err()
}
