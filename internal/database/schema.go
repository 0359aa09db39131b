package database

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed schema/tables/*.sql schema/functions/*.sql
var schemaFS embed.FS

// tableOrder fixes the execution order for table DDL. Foreign keys and the
// schema-initialized probe (tenant_config) depend on this order.
var tableOrder = []string{
	"tenant_config",
	"branch_email_mappings",
	"email_sending_jobs",
	"email_send_history",
	"users",
	"locations",
	"processing_jobs",
	"page_view",
	"add_to_cart",
	"purchase",
	"view_item",
	"view_search_results",
	"no_search_results",
}

// schemaScript is one DDL file to execute during provisioning
type schemaScript struct {
	Name string
	SQL  string
}

// schemaScripts returns every DDL script in execution order: tables in the
// fixed order above, then function scripts in lexical order.
func schemaScripts() ([]schemaScript, error) {
	scripts := make([]schemaScript, 0, len(tableOrder)+16)

	for _, table := range tableOrder {
		name := "schema/tables/" + table + ".sql"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("missing table script %s: %w", name, err)
		}
		scripts = append(scripts, schemaScript{Name: name, SQL: string(data)})
	}

	entries, err := schemaFS.ReadDir("schema/functions")
	if err != nil {
		return nil, fmt.Errorf("failed to list function scripts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		full := "schema/functions/" + name
		data, err := schemaFS.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", full, err)
		}
		scripts = append(scripts, schemaScript{Name: full, SQL: string(data)})
	}

	return scripts, nil
}

// hasDollarQuote reports whether a script contains a dollar-quoted body
// (plpgsql functions, DO blocks). Such scripts must execute as a single
// statement because splitting on ';' would cut the body apart.
func hasDollarQuote(sql string) bool {
	return strings.Contains(sql, "$$")
}

// splitStatements splits a plain DDL script on ';' into executable
// statements, dropping empties and comment-only fragments.
func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		stmt := strings.TrimSpace(part)
		if stmt == "" || isCommentOnly(stmt) {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}
