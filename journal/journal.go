// Package journal records executed command invocations in SQLite.
//
// The journal is an operational audit trail: who invoked what, where, and
// when. It is append-only from the pipeline's point of view; pruning is the
// operator's business.
package journal

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Entry is one executed invocation.
type Entry struct {
	// Bot is the bot that executed the command.
	Bot string
	// Client is the client type the invocation arrived on.
	Client string
	// Channel and Author locate the triggering message.
	Channel string
	Author  string
	// Command is the matched command key.
	Command string
	// Args is the raw argument text.
	Args string
	// Time is when execution finished.
	Time time.Time
}

// Journal is an invocation journal backed by an SQL database.
type Journal struct {
	db *sqlitex.Pool
}

// Open opens an existing journal in an SQL database.
func Open(ctx context.Context, db *sqlitex.Pool) (*Journal, error) {
	return &Journal{db: db}, nil
}

//go:embed schema.sql
var schemaSQL string

// Init initializes the journal schema. It is idempotent, so callers can run
// it on every start against a database that already has the schema.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("couldn't initialize journal schema: %w", err)
	}
	return nil
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	conn, err := j.db.Take(ctx)
	defer j.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to record invocation: %w", err)
	}
	st, err := conn.Prepare(`INSERT INTO journal (bot, client, channel, author, command, args, time) VALUES (:bot, :client, :channel, :author, :command, :args, :time)`)
	if err != nil {
		return fmt.Errorf("couldn't prepare statement to record invocation: %w", err)
	}
	st.SetText(":bot", e.Bot)
	st.SetText(":client", e.Client)
	st.SetText(":channel", e.Channel)
	st.SetText(":author", e.Author)
	st.SetText(":command", e.Command)
	st.SetText(":args", e.Args)
	st.SetInt64(":time", e.Time.UnixNano())
	if _, err := st.Step(); err != nil {
		return fmt.Errorf("couldn't insert journal entry: %w", err)
	}
	return nil
}

// Since returns a bot's entries at or after a time, oldest first.
func (j *Journal) Since(ctx context.Context, bot string, since time.Time) ([]Entry, error) {
	conn, err := j.db.Take(ctx)
	defer j.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to read journal: %w", err)
	}
	var out []Entry
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":bot": bot, ":time": since.UnixNano()},
		ResultFunc: func(st *sqlite.Stmt) error {
			out = append(out, Entry{
				Bot:     bot,
				Client:  st.ColumnText(0),
				Channel: st.ColumnText(1),
				Author:  st.ColumnText(2),
				Command: st.ColumnText(3),
				Args:    st.ColumnText(4),
				Time:    time.Unix(0, st.ColumnInt64(5)),
			})
			return nil
		},
	}
	err = sqlitex.Execute(conn, `SELECT client, channel, author, command, args, time FROM journal WHERE bot=:bot AND time>=:time ORDER BY time`, &opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't read journal: %w", err)
	}
	return out, nil
}

// Tally counts a bot's recorded invocations per command.
func (j *Journal) Tally(ctx context.Context, bot string) (map[string]int64, error) {
	conn, err := j.db.Take(ctx)
	defer j.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to tally journal: %w", err)
	}
	out := make(map[string]int64)
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":bot": bot},
		ResultFunc: func(st *sqlite.Stmt) error {
			out[st.ColumnText(0)] = st.ColumnInt64(1)
			return nil
		},
	}
	err = sqlitex.Execute(conn, `SELECT command, COUNT(*) FROM journal WHERE bot=:bot GROUP BY command`, &opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't tally journal: %w", err)
	}
	return out, nil
}
