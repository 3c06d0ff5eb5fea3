package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions, in the shape ent's migrate package expects. Auto-migration
// creates missing tables, columns and indexes on Open.

var (
	sessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "session_key", Type: field.TypeString, Unique: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "syllabus_id", Type: field.TypeString},
		{Name: "module_index", Type: field.TypeInt},
		{Name: "lesson_index", Type: field.TypeInt},
		{Name: "content_id", Type: field.TypeInt64, Default: 0},
		{Name: "status", Type: field.TypeString, Default: "not_started"},
		{Name: "interaction_mode", Type: field.TypeString, Default: "chatting"},
		{Name: "state", Type: field.TypeString, Size: 2147483647},
		{Name: "version", Type: field.TypeInt64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	sessionsTable = &schema.Table{
		Name:       "lesson_sessions",
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "lessonsession_user_id", Columns: []*schema.Column{sessionsColumns[2]}},
			{Name: "lessonsession_status", Columns: []*schema.Column{sessionsColumns[7]}},
		},
	}

	messagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeInt64},
		{Name: "role", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString, Default: "chat"},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "metadata", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	messagesTable = &schema.Table{
		Name:       "lesson_messages",
		Columns:    messagesColumns,
		PrimaryKey: []*schema.Column{messagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "lesson_messages_lesson_sessions_messages",
				Columns:    []*schema.Column{messagesColumns[3]},
				RefColumns: []*schema.Column{sessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "lessonmessage_session_id_sequence", Columns: []*schema.Column{messagesColumns[3], messagesColumns[1]}},
		},
	}

	expositionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "lesson_ref", Type: field.TypeString, Unique: true},
		{Name: "topic", Type: field.TypeString},
		{Name: "level", Type: field.TypeString, Default: ""},
		{Name: "module_title", Type: field.TypeString, Default: ""},
		{Name: "lesson_title", Type: field.TypeString},
		{Name: "body", Type: field.TypeString, Size: 2147483647},
		{Name: "source", Type: field.TypeString, Default: "catalog"},
		{Name: "created_at", Type: field.TypeTime},
	}
	expositionsTable = &schema.Table{
		Name:       "lesson_expositions",
		Columns:    expositionsColumns,
		PrimaryKey: []*schema.Column{expositionsColumns[0]},
	}

	llmEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	llmEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmEventsColumns,
		PrimaryKey: []*schema.Column{llmEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{llmEventsColumns[2]}},
			{Name: "llmrequestevent_provider", Columns: []*schema.Column{llmEventsColumns[3]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmEventsColumns[5]}},
			{Name: "llmrequestevent_success", Columns: []*schema.Column{llmEventsColumns[9]}},
		},
	}

	tables = []*schema.Table{
		sessionsTable,
		messagesTable,
		expositionsTable,
		llmEventsTable,
	}
)

func init() {
	messagesTable.ForeignKeys[0].RefTable = sessionsTable
}
