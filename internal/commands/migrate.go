package commands

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"presence/backend/internal/pkg/repository/postgresql"
)

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

type Scheme struct {
	Index       int
	Description string
	Query       string
}

var scheme = []Scheme{
	{
		Index:       1,
		Description: "CREATE TYPE \"user_role\" AS ENUM",
		Query: `
        CREATE TYPE "user_role" AS ENUM ('EMPLOYEE', 'ADMIN', 'DASHBOARD');`,
	},
	{
		Index:       2,
		Description: "Create table: users.",
		Query: `
        CREATE TABLE IF NOT EXISTS users (
            id serial primary key,
            employee_id text not null,
            password text not null,
            role user_role,
            first_name text,
            last_name text,
            organization_id int,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );`,
	},
	{
		Index:       3,
		Description: "Create admin with employee_id: Admin01, password: 1",
		Query: `
        INSERT INTO users(employee_id, role, password, organization_id)
        SELECT 'Admin01', 'ADMIN', '$2a$10$NKtnMwDPFSQLG6uOi4Zqheru5Ygbj9TWFHjpl478rRSaO5cJ9QuH2', 1
        WHERE NOT EXISTS (SELECT employee_id FROM users WHERE employee_id = 'Admin01');
        `,
	},
	{
		Index:       4,
		Description: "Create table: organization.",
		Query: `
        CREATE TABLE IF NOT EXISTS organization (
            id serial primary key,
            name varchar(250) not null,
            latitude float not null,
            longitude float not null,
            radius_meters float not null,
            timezone varchar(64),
            work_start_time varchar(5),
            work_end_time varchar(5),
            full_day_minutes int,
            half_day_minutes int,
            late_grace_minutes int,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );`,
	},
	{
		Index:       5,
		Description: "Insert default organization.",
		Query: `
        INSERT INTO organization (id, name, latitude, longitude, radius_meters, timezone, work_start_time, work_end_time, full_day_minutes, half_day_minutes, late_grace_minutes)
        SELECT 1, 'Digital Knowledge', 35.7031509, 139.7745439, 3000.0, 'Asia/Tokyo', '09:00', '18:00', 480, 240, 20
        WHERE NOT EXISTS (SELECT id FROM organization WHERE id = 1);
        `,
	},
	{
		Index:       6,
		Description: "Create table: organization_qr_codes.",
		Query: `
        CREATE TABLE IF NOT EXISTS organization_qr_codes (
            id serial primary key,
            organization_id int not null references organization(id),
            kind varchar(16) not null,
            code text not null unique,
            issued_at timestamp not null,
            expires_at timestamp,
            usage_count bigint not null default 0,
            active boolean not null default true,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );
        CREATE INDEX IF NOT EXISTS organization_qr_codes_lookup
            ON organization_qr_codes (organization_id, kind) WHERE active;`,
	},
	{
		Index:       7,
		Description: "Create table: device_bindings.",
		Query: `
        CREATE TABLE IF NOT EXISTS device_bindings (
            id serial primary key,
            user_id int not null references users(id),
            device_id text not null,
            device_type varchar(32),
            fingerprint_hash text not null,
            registered_at timestamp not null,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );
        CREATE UNIQUE INDEX IF NOT EXISTS device_bindings_one_per_user
            ON device_bindings (user_id) WHERE deleted_at IS NULL;`,
	},
	{
		Index:       8,
		Description: "Create table: device_change_requests.",
		Query: `
        CREATE TABLE IF NOT EXISTS device_change_requests (
            id serial primary key,
            user_id int not null references users(id),
            current_device_id text,
            requested_device_id text not null,
            requested_device_type varchar(32),
            requested_fingerprint text not null,
            reason text not null,
            status varchar(16) not null default 'PENDING',
            requested_at timestamp not null,
            resolved_at timestamp,
            admin_reason text,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );
        CREATE UNIQUE INDEX IF NOT EXISTS device_change_requests_one_pending
            ON device_change_requests (user_id) WHERE status = 'PENDING';`,
	},
	{
		Index:       9,
		Description: "Create table: day_ledgers.",
		Query: `
        CREATE TABLE IF NOT EXISTS day_ledgers (
            id serial primary key,
            user_id int not null references users(id),
            organization_id int not null references organization(id),
            work_day date not null,
            sessions jsonb not null default '[]',
            manual_status varchar(16),
            version bigint not null default 0,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id),
            CONSTRAINT day_ledgers_user_day UNIQUE (user_id, work_day)
        );`,
	},
	{
		Index:       10,
		Description: "Create table: working_policies.",
		Query: `
        CREATE TABLE IF NOT EXISTS working_policies (
            id serial primary key,
            user_id int not null references users(id),
            work_start_time varchar(5),
            work_end_time varchar(5),
            timezone varchar(64),
            weekly_schedule jsonb not null default '[true,true,true,true,true,false,false]',
            custom_holidays jsonb not null default '[]',
            full_day_minutes int,
            half_day_minutes int,
            late_grace_minutes int,
            created_at timestamp default now(),
            created_by int references users(id),
            updated_at timestamp,
            updated_by int references users(id),
            deleted_at timestamp,
            deleted_by int references users(id)
        );
        CREATE UNIQUE INDEX IF NOT EXISTS working_policies_one_per_user
            ON working_policies (user_id) WHERE deleted_at IS NULL;`,
	},
}

// Migrate creates the scheme in the database.
func Migrate(db *postgresql.Database) {
	for _, s := range scheme {
		if _, err := db.Query(s.Query); err != nil {
			log.Fatalln("migrate error", err)
		}
	}
}

func MigrateUP(db *postgresql.Database) {
	var (
		version int
		dirty   bool
		er      *string
	)
	err := db.QueryRow("SELECT version, dirty, error FROM schema_migrations").Scan(&version, &dirty, &er)
	if err != nil {
		if err.Error() == `ERROR: relation "schema_migrations" does not exist (SQLSTATE=42P01)` {
			if _, err = db.Exec(`
				CREATE TABLE IF NOT EXISTS schema_migrations (version int not null, dirty bool not null, error text);
				DELETE FROM schema_migrations;
				INSERT INTO schema_migrations (version, dirty) values (0, false);
			`); err != nil {
				log.Fatalln("migrate schema_migrations create error", err)
			}
			version = 0
			dirty = false
		} else {
			log.Fatalln("migrate schema_migrations scan: ", err)
		}
	}

	if dirty {
		for _, v := range scheme {
			if v.Index == version {
				if _, err = db.Exec(v.Query); err != nil {
					if _, err = db.Exec(fmt.Sprintf(`UPDATE schema_migrations SET error = '%s'`, err.Error())); err != nil {
						log.Fatalln("migrate error", err)
					}
					log.Fatalln(fmt.Sprintf("migrate error version: %d", version), err)
				}
				if _, err = db.Exec(`UPDATE schema_migrations SET dirty = false, error = null`); err != nil {
					log.Fatalln("migrate error", err)
				}
			}
		}
	}

	for _, s := range scheme {
		if s.Index > version {
			if _, err = db.Exec(s.Query); err != nil {
				if _, err = db.Exec(fmt.Sprintf(`UPDATE schema_migrations SET error = '%s', version = %d, dirty = true`, err.Error(), s.Index)); err != nil {
					log.Fatalln("migrate error", err)
				}
				log.Fatalln(fmt.Sprintf("migrate error version: %d", s.Index), err)
			}
			if _, err = db.Exec(fmt.Sprintf(`UPDATE schema_migrations SET version = %d`, s.Index)); err != nil {
				log.Fatalln("migrate error", err)
			}
		}
	}
}
