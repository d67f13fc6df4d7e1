package llm

import (
	"fmt"
	"strings"
)

// SQLPrompt contains text-to-SQL generation parameters
type SQLPrompt struct {
	Question      string
	SchemaContext string
	Dialect       string
}

// BuildSQLPrompt creates a prompt for SQL generation
func BuildSQLPrompt(req SQLPrompt) string {
	dialect := req.Dialect
	if dialect == "" {
		dialect = "PostgreSQL"
	}

	return fmt.Sprintf(`You are an expert SQL query generator for %s databases.

Rules:
1. Generate ONLY the SQL query, no explanations or markdown
2. Use only SELECT statements (no INSERT, UPDATE, DELETE, DROP, etc.)
3. Use only tables and columns from the provided schema
4. Handle NULL values appropriately
5. Use proper date/time functions for the database dialect
6. Prefer explicit column names over SELECT *

Database Schema:
%s

Question: %s

SQL:`, dialect, req.SchemaContext, req.Question)
}

// ExtractSQL extracts SQL from LLM response
func ExtractSQL(content string) string {
	// Try to extract from markdown code blocks
	if sql, ok := extractFromCodeBlock(content, "```sql"); ok {
		return sql
	}
	if sql, ok := extractFromCodeBlock(content, "```"); ok {
		return sql
	}

	return trimSQL(content)
}

func extractFromCodeBlock(content, startMarker string) (string, bool) {
	_, rest, found := strings.Cut(content, startMarker)
	if !found {
		return "", false
	}
	rest = strings.TrimPrefix(rest, "\n")

	block, _, found := strings.Cut(rest, "```")
	if !found {
		return "", false
	}
	return trimSQL(block), true
}

func trimSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	// Remove trailing semicolon for consistency
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
