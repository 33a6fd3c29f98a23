// Package prompt holds the fixed instructions sent to the completion backend
// ahead of every user question.
package prompt

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindQuery       Kind = "query"
	KindSchemaAdmin Kind = "schema_admin"
)

// TableContext describes one live table appended to a template when schema
// context is enabled.
type TableContext struct {
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
}

type Template struct {
	Kind Kind
	text string
}

func (t Template) Text() string {
	return t.text
}

// Render returns the template text, followed by a listing of the supplied
// tables when there are any.
func (t Template) Render(tables []TableContext) string {
	if len(tables) == 0 {
		return t.text
	}

	var b strings.Builder
	b.WriteString(t.text)
	b.WriteString("\nThe database currently contains these tables:\n")
	for _, table := range tables {
		if len(table.Columns) == 0 {
			fmt.Fprintf(&b, "- Table name: %s\n", table.TableName)
			continue
		}
		fmt.Fprintf(&b, "- Table name: %s (columns: %s)\n", table.TableName, strings.Join(table.Columns, ", "))
	}
	return b.String()
}

var (
	Query = Template{Kind: KindQuery, text: `
You are an expert in converting English questions to SQL queries!
The SQL database has the following schema:
- Table name: STUDENT
- Columns: NAME, CLASS, SECTION, MARKS

For example:
Example 1 - How many entries of records are present?
The SQL command will be something like this: SELECT COUNT(*) FROM STUDENT;

Example 2 - Tell me all the students studying in Data Science class?
The SQL command will be something like this: SELECT * FROM STUDENT WHERE CLASS="Data Science";

The SQL code should not have ''' in the beginning or end, and the word SQL should not appear in the output.
`}

	SchemaAdmin = Template{Kind: KindSchemaAdmin, text: `
You are an expert in converting English tasks to SQL queries! The task is to create a new database, a table within that database, and insert some rows into the table.

For example:
Example 1 - Create a database named SCHOOL.
The SQL command will be something like this: CREATE DATABASE SCHOOL;

Example 2 - Create a table named STUDENT with columns NAME, CLASS, SECTION, and MARKS.
The SQL command will be something like this:
CREATE TABLE STUDENT (
    NAME VARCHAR(25),
    CLASS VARCHAR(25),
    SECTION VARCHAR(25),
    MARKS INT
);

Example 3 - Insert rows into the STUDENT table.
The SQL command will be something like this:
INSERT INTO STUDENT (NAME, CLASS, SECTION, MARKS) VALUES ('John Doe', '10th', 'A', 85);
INSERT INTO STUDENT (NAME, CLASS, SECTION, MARKS) VALUES ('Jane Smith', '11th', 'B', 90);
`}
)

func ByKind(kind Kind) (Template, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case KindQuery, "":
		return Query, nil
	case KindSchemaAdmin:
		return SchemaAdmin, nil
	default:
		return Template{}, fmt.Errorf("unknown prompt kind %q", kind)
	}
}
