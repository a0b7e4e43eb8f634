package sqlmcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickchristie/sqlagent-mcp/internal/dialect"
	"github.com/rickchristie/sqlagent-mcp/internal/errprompt"
	"github.com/rickchristie/sqlagent-mcp/internal/protection"
	"github.com/rickchristie/sqlagent-mcp/internal/sanitize"
	"github.com/rickchristie/sqlagent-mcp/internal/timeout"
)

const (
	defaultMaxSQLLength    = 100000
	defaultMaxResultLength = 100000
)

// SQLMcp is the engine behind the four database tools.
// All exported methods are safe for concurrent use from multiple goroutines.
type SQLMcp struct {
	config        Config
	db            *sql.DB
	ownsDB        bool
	dialect       dialect.Dialect
	semaphore     chan struct{}
	protection    *protection.Checker
	goBeforeHooks []BeforeQueryHookEntry
	sanitizer     *sanitize.Sanitizer
	errPrompts    *errprompt.Matcher
	timeoutMgr    *timeout.Manager
	logger        zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	db *sql.DB
}

// WithDB makes New use db instead of opening one from Config.Connection.
// The caller keeps ownership: Close does not close db, and pool settings are
// left as they are.
func WithDB(db *sql.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// New creates a new SQLMcp instance. No connection is made until the first
// tool call.
// Panics on invalid config. Returns an error for missing credentials or an
// unsupported driver.
func New(config Config, logger zerolog.Logger, opts ...Option) (*SQLMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// --- Config validation (panics on invalid config) ---

	if config.Query.MaxConcurrent <= 0 {
		panic("sqlmcp: query.max_concurrent must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("sqlmcp: query.default_timeout_seconds must be > 0")
	}
	if config.Query.SchemaTimeoutSeconds <= 0 {
		panic("sqlmcp: query.schema_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("sqlmcp: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("sqlmcp: query.describe_table_timeout_seconds must be > 0")
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = defaultMaxSQLLength
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = defaultMaxResultLength
	}
	if config.Query.MaxSQLLength < 0 {
		panic("sqlmcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("sqlmcp: query.max_result_length must be > 0")
	}
	if len(config.BeforeQueryHooks) > 0 && config.DefaultHookTimeoutSeconds <= 0 {
		panic("sqlmcp: default_hook_timeout_seconds must be > 0 when Go hooks are configured")
	}
	for _, entry := range config.BeforeQueryHooks {
		if entry.Timeout < 0 {
			panic(fmt.Sprintf("sqlmcp: before_query hook %q has negative timeout", entry.Name))
		}
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		panic("sqlmcp: " + err.Error())
	}
	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		panic("sqlmcp: " + err.Error())
	}
	matcher, err := errprompt.NewMatcher(mapErrorPromptRules(config.ErrorPrompts))
	if err != nil {
		panic("sqlmcp: " + err.Error())
	}

	// --- Database handle ---

	d, err := dialect.ByName(config.Connection.Driver)
	if err != nil {
		return nil, err
	}
	db, ownsDB := o.db, false
	if db == nil {
		if err := config.Connection.Validate(); err != nil {
			return nil, err
		}
		db, err = d.Open(config.Connection.params())
		if err != nil {
			return nil, err
		}
		ownsDB = true
		// Connections are opened per tool call and released afterwards.
		db.SetMaxIdleConns(0)
		db.SetMaxOpenConns(config.Query.MaxConcurrent)
	}

	return &SQLMcp{
		config:        config,
		db:            db,
		ownsDB:        ownsDB,
		dialect:       d,
		semaphore:     make(chan struct{}, config.Query.MaxConcurrent),
		protection:    protection.NewChecker(protection.Config{ExtraKeywords: config.Protection.ExtraKeywords}),
		goBeforeHooks: config.BeforeQueryHooks,
		sanitizer:     san,
		errPrompts:    matcher,
		timeoutMgr:    tmgr,
		logger:        logger,
	}, nil
}

// Close releases the database handle when New opened it.
func (p *SQLMcp) Close() error {
	if !p.ownsDB {
		return nil
	}
	return p.db.Close()
}

// Ping verifies the database is reachable with the configured credentials.
func (p *SQLMcp) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Dialect returns the name of the database engine in use.
func (p *SQLMcp) Dialect() string {
	return p.dialect.Name()
}

// acquireSlot blocks until a slot is free or ctx is done.
func (p *SQLMcp) acquireSlot(ctx context.Context, op string) (func(), error) {
	select {
	case p.semaphore <- struct{}{}:
		return func() { <-p.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: failed to acquire query slot: all %d slots are in use, context cancelled while waiting: %w", op, cap(p.semaphore), ctx.Err())
	}
}

// mapSanitizationRules converts SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorPromptRules converts ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
