// Package query implements the $filter, $top and $skip options of the
// cluster endpoints. $filter is a small OData subset evaluated against a
// cluster's primary article and its source list.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"stirimm/internal/models"
)

var comparisonOperators = []string{"eq", "ne", "gt", "ge", "lt", "le"}

var functions = []string{"startswith", "endswith", "contains"}

// Filterable fields. title, description, url, source and published_at refer
// to the primary article; sources matches any source in the cluster.
var fields = map[string]bool{
	"title":        true,
	"description":  true,
	"url":          true,
	"source":       true,
	"sources":      true,
	"published_at": true,
	"source_count": true,
}

type FilterParser struct{}

type FilterExpression struct {
	Operator string
	Field    string
	Value    string
	Left     *FilterExpression
	Right    *FilterExpression
	Function string
}

func NewFilterParser() *FilterParser {
	return &FilterParser{}
}

// Parse compiles a filter. An empty filter yields a nil expression, which
// matches everything.
func (p *FilterParser) Parse(filter string) (*FilterExpression, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	return p.parseExpression(filter)
}

func (p *FilterParser) parseExpression(expr string) (*FilterExpression, error) {
	expr = stripParens(strings.TrimSpace(expr))
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	// "or" binds looser than "and"
	for _, op := range []string{"or", "and"} {
		if idx := indexTopLevel(expr, " "+op+" "); idx != -1 {
			return p.parseLogicalOperator(expr, op, idx)
		}
	}

	lowerExpr := strings.ToLower(expr)
	for _, fn := range functions {
		if strings.HasPrefix(lowerExpr, fn+"(") {
			return p.parseFunction(expr, fn)
		}
	}

	for _, op := range comparisonOperators {
		if idx := indexTopLevel(expr, " "+op+" "); idx != -1 {
			return p.parseComparison(expr, op, idx)
		}
	}

	return nil, fmt.Errorf("unable to parse expression: %s", expr)
}

func (p *FilterParser) parseLogicalOperator(expr, op string, idx int) (*FilterExpression, error) {
	left, err := p.parseExpression(expr[:idx])
	if err != nil {
		return nil, err
	}
	right, err := p.parseExpression(expr[idx+len(op)+2:])
	if err != nil {
		return nil, err
	}

	return &FilterExpression{
		Operator: op,
		Left:     left,
		Right:    right,
	}, nil
}

func (p *FilterParser) parseComparison(expr, op string, idx int) (*FilterExpression, error) {
	field := strings.ToLower(strings.TrimSpace(expr[:idx]))
	value := strings.TrimSpace(expr[idx+len(op)+2:])

	if !fields[field] {
		return nil, fmt.Errorf("unknown field: %s", field)
	}
	if value == "" {
		return nil, fmt.Errorf("missing value in comparison: %s", expr)
	}
	value = unquote(value)

	if field == "source_count" {
		if _, err := strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("source_count expects an integer, got %q", value)
		}
	}

	return &FilterExpression{
		Operator: op,
		Field:    field,
		Value:    value,
	}, nil
}

func (p *FilterParser) parseFunction(expr, funcName string) (*FilterExpression, error) {
	// e.g. contains(title, 'Cluj') -> title, 'Cluj'
	argsStart := strings.Index(expr, "(")
	argsEnd := strings.LastIndex(expr, ")")
	if argsStart == -1 || argsEnd < argsStart {
		return nil, fmt.Errorf("invalid function call: %s", expr)
	}

	args := parseFunctionArguments(expr[argsStart+1 : argsEnd])
	if len(args) != 2 {
		return nil, fmt.Errorf("function %s expects 2 arguments, got %d", funcName, len(args))
	}

	field := strings.ToLower(args[0])
	if !fields[field] {
		return nil, fmt.Errorf("unknown field: %s", field)
	}
	if field == "source_count" {
		return nil, fmt.Errorf("function %s does not apply to source_count", funcName)
	}

	return &FilterExpression{
		Function: funcName,
		Field:    field,
		Value:    args[1],
	}, nil
}

func parseFunctionArguments(argsStr string) []string {
	var args []string
	var currentArg strings.Builder
	var inQuotes bool
	var quoteChar byte

	for i := 0; i < len(argsStr); i++ {
		char := argsStr[i]

		if !inQuotes && (char == '\'' || char == '"') {
			inQuotes = true
			quoteChar = char
			continue
		}
		if inQuotes && char == quoteChar {
			inQuotes = false
			continue
		}
		if !inQuotes && char == ',' {
			args = append(args, strings.TrimSpace(currentArg.String()))
			currentArg.Reset()
			continue
		}

		currentArg.WriteByte(char)
	}

	if currentArg.Len() > 0 {
		args = append(args, strings.TrimSpace(currentArg.String()))
	}
	return args
}

// Evaluate reports whether cluster matches expr
func (p *FilterParser) Evaluate(expr *FilterExpression, cluster models.Cluster) (bool, error) {
	if expr == nil {
		return true, nil
	}

	switch {
	case expr.Operator == "and":
		left, err := p.Evaluate(expr.Left, cluster)
		if err != nil || !left {
			return false, err
		}
		return p.Evaluate(expr.Right, cluster)

	case expr.Operator == "or":
		left, err := p.Evaluate(expr.Left, cluster)
		if err != nil || left {
			return left, err
		}
		return p.Evaluate(expr.Right, cluster)

	case expr.Function != "":
		return p.evaluateFunction(expr, cluster)

	case expr.Operator != "" && expr.Field != "":
		return p.evaluateComparison(expr, cluster)
	}

	return false, fmt.Errorf("invalid filter expression")
}

func (p *FilterParser) evaluateComparison(expr *FilterExpression, cluster models.Cluster) (bool, error) {
	switch expr.Field {
	case "source_count":
		want, err := strconv.Atoi(expr.Value)
		if err != nil {
			return false, fmt.Errorf("source_count expects an integer, got %q", expr.Value)
		}
		return compareResult(expr.Operator, cmpInt(cluster.SourceCount(), want))

	case "sources":
		// eq: some source matches; ne: no source matches
		anyEqual := false
		for _, source := range cluster.Sources() {
			if strings.EqualFold(source, expr.Value) {
				anyEqual = true
				break
			}
		}
		switch expr.Operator {
		case "eq":
			return anyEqual, nil
		case "ne":
			return !anyEqual, nil
		default:
			return false, fmt.Errorf("operator %s does not apply to sources", expr.Operator)
		}
	}

	fieldValue := getFieldValue(expr.Field, cluster.Primary)
	switch expr.Operator {
	case "eq":
		return fieldValue == expr.Value, nil
	case "ne":
		return fieldValue != expr.Value, nil
	default:
		return compareResult(expr.Operator, compareValues(fieldValue, expr.Value))
	}
}

func (p *FilterParser) evaluateFunction(expr *FilterExpression, cluster models.Cluster) (bool, error) {
	var match func(s, substr string) bool
	switch expr.Function {
	case "startswith":
		match = strings.HasPrefix
	case "endswith":
		match = strings.HasSuffix
	case "contains":
		match = strings.Contains
	default:
		return false, fmt.Errorf("unsupported function: %s", expr.Function)
	}

	searchValue := strings.ToLower(expr.Value)
	if expr.Field == "sources" {
		for _, source := range cluster.Sources() {
			if match(strings.ToLower(source), searchValue) {
				return true, nil
			}
		}
		return false, nil
	}
	return match(strings.ToLower(getFieldValue(expr.Field, cluster.Primary)), searchValue), nil
}

func getFieldValue(field string, article models.Article) string {
	switch field {
	case "title":
		return article.Title
	case "description":
		return article.Description
	case "url":
		return article.URL
	case "source":
		return article.Source
	case "published_at":
		return article.PublishDate.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func compareResult(op string, cmp int) (bool, error) {
	switch op {
	case "eq":
		return cmp == 0, nil
	case "ne":
		return cmp != 0, nil
	case "gt":
		return cmp > 0, nil
	case "ge":
		return cmp >= 0, nil
	case "lt":
		return cmp < 0, nil
	case "le":
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("unsupported comparison operator: %s", op)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareValues(a, b string) int {
	// Try to parse as dates first
	timeA, errA := time.Parse(time.RFC3339, a)
	timeB, errB := time.Parse(time.RFC3339, b)
	if errA == nil && errB == nil {
		return timeA.Compare(timeB)
	}

	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// indexTopLevel finds token (case-insensitive) outside quotes and parentheses
func indexTopLevel(expr, token string) int {
	lowerExpr := strings.ToLower(expr)
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		char := expr[i]
		switch {
		case quote != 0:
			if char == quote {
				quote = 0
			}
		case char == '\'' || char == '"':
			quote = char
		case char == '(':
			depth++
		case char == ')':
			depth--
		case depth == 0 && strings.HasPrefix(lowerExpr[i:], token):
			return i
		}
	}
	return -1
}

// stripParens removes parentheses wrapping the whole expression
func stripParens(expr string) string {
	for len(expr) >= 2 && expr[0] == '(' && expr[len(expr)-1] == ')' {
		depth := 0
		wraps := true
		for i := 0; i < len(expr)-1; i++ {
			switch expr[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				wraps = false
				break
			}
		}
		if !wraps {
			return expr
		}
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' || first == '"') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
