package export

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

// SchemaExporter renders a JSON Schema description of the form derived from
// the declared kinds and constraints. The output describes the answers a
// complete document would carry, not the document text itself.
type SchemaExporter struct{}

// Name implements Exporter.
func (e *SchemaExporter) Name() string { return "schema" }

// Export implements Exporter.
func (e *SchemaExporter) Export(doc *schema.Document) ([]byte, error) {
	if doc == nil || doc.Form == nil {
		return nil, fmt.Errorf("export: schema: document has no form")
	}

	root := openapi3.NewObjectSchema()
	root.Title = doc.Title
	root.Description = doc.Description
	root.Properties = make(openapi3.Schemas)

	for _, field := range doc.Fields() {
		root.Properties[field.ID] = fieldSchema(field).NewRef()
		if field.Required {
			root.Required = append(root.Required, field.ID)
		}
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: schema: %w", err)
	}
	return append(data, '\n'), nil
}

func fieldSchema(field *schema.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch field.Kind {
	case schema.KindString:
		s = openapi3.NewStringSchema()
		s.Pattern = field.Pattern

	case schema.KindNumber:
		s = openapi3.NewFloat64Schema()
		s.Min = field.Min
		s.Max = field.Max

	case schema.KindDate:
		s = openapi3.NewStringSchema()
		s.Format = "date"

	case schema.KindYear:
		s = openapi3.NewIntegerSchema()
		s.Min = field.Min
		s.Max = field.Max

	case schema.KindStringList, schema.KindURLList:
		item := openapi3.NewStringSchema()
		if field.Kind == schema.KindURLList {
			item.Format = "uri"
		} else {
			item.Pattern = field.Pattern
		}
		s = arraySchema(item, field)

	case schema.KindSingleSelect:
		s = openapi3.NewStringSchema()
		s.Enum = optionEnum(field)

	case schema.KindMultiSelect:
		item := openapi3.NewStringSchema()
		item.Enum = optionEnum(field)
		s = arraySchema(item, field)

	case schema.KindCheckboxes:
		s = openapi3.NewObjectSchema()
		s.Properties = make(openapi3.Schemas, len(field.Options))
		marks := markEnum(field.EffectiveMode())
		for _, opt := range field.Options {
			mark := openapi3.NewStringSchema()
			mark.Enum = marks
			mark.Description = opt.Label
			s.Properties[opt.ID] = mark.NewRef()
		}

	case schema.KindTable:
		row := openapi3.NewObjectSchema()
		row.Properties = make(openapi3.Schemas, len(field.Columns))
		for _, col := range field.Columns {
			row.Properties[col.ID] = columnSchema(col).NewRef()
			row.Required = append(row.Required, col.ID)
		}
		s = arraySchema(row, field)

	default:
		s = openapi3.NewSchema()
	}

	s.Description = field.Title
	return s
}

func arraySchema(item *openapi3.Schema, field *schema.Field) *openapi3.Schema {
	s := &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: item.NewRef(),
	}
	if field.MinItems != nil {
		s.MinItems = uint64(*field.MinItems)
	}
	if field.MaxItems != nil {
		max := uint64(*field.MaxItems)
		s.MaxItems = &max
	}
	return s
}

func columnSchema(col schema.Column) *openapi3.Schema {
	switch col.Kind {
	case schema.ColumnNumber:
		return openapi3.NewFloat64Schema()
	case schema.ColumnDate:
		s := openapi3.NewStringSchema()
		s.Format = "date"
		return s
	case schema.ColumnYear:
		return openapi3.NewIntegerSchema()
	case schema.ColumnURL:
		s := openapi3.NewStringSchema()
		s.Format = "uri"
		return s
	default:
		return openapi3.NewStringSchema()
	}
}

func optionEnum(field *schema.Field) []any {
	enum := make([]any, 0, len(field.Options))
	for _, opt := range field.Options {
		enum = append(enum, opt.ID)
	}
	return enum
}

func markEnum(mode schema.CheckboxMode) []any {
	marks := mode.Marks()
	enum := make([]any, 0, len(marks))
	for _, mark := range marks {
		enum = append(enum, string(mark))
	}
	return enum
}
