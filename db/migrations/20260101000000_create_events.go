package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateEvents, downCreateEvents)
}

func upCreateEvents(_ context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`
create table if not exists events
(
    id         integer not null primary key autoincrement,
    service    varchar(64) not null,
    kind       varchar(32) not null,
    name       varchar(128) not null,
    detail     text default '' not null,
    created_at datetime not null default current_timestamp
);

create index if not exists events_created_at on events(created_at);
create index if not exists events_service on events(service);
`)
	return err
}

func downCreateEvents(_ context.Context, tx *sql.Tx) error {
	_, err := tx.Exec(`drop table if exists events;`)
	return err
}
