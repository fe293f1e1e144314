// Package validation checks request bodies against the JSON schemas embedded
// from schemas/. Top level files are request schemas, schemas/refs holds
// shared definitions they may reference.
package validation

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

const baseID = "https://fundraiseer.dev/schemas/"

// Request schema identifiers.
const (
	Register       = baseID + "register.json"
	Login          = baseID + "login.json"
	ForgotPassword = baseID + "forgot-password.json"
	VerifyOTP      = baseID + "verify-otp.json"
	ResetPassword  = baseID + "reset-password.json"
	CreateAdmin    = baseID + "create-admin.json"
	CampaignCreate = baseID + "campaign-create.json"
	Donation       = baseID + "donation.json"
	DonationDirect = baseID + "donation-direct.json"
	Comment        = baseID + "comment.json"
	ProfileUpdate  = baseID + "profile-update.json"
	RoleUpdate     = baseID + "role-update.json"
	Moderation     = baseID + "moderation.json"
	Contact        = baseID + "contact.json"
	ContactUpdate  = baseID + "contact-update.json"
)

//go:embed schemas
var schemaFS embed.FS

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a document does not match its schema.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator holds the compiled request schemas keyed by $id.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	top, err := readDir(sub, ".")
	if err != nil {
		return nil, err
	}
	refs, err := readDir(sub, "refs")
	if err != nil {
		return nil, err
	}
	return NewValidator(top, refs)
}

// NewValidator compiles schemas. Each schema may reference any of refs by
// $id but not the other top level schemas.
func NewValidator(schemas, refs []string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(schemas))}
	for _, str := range schemas {
		var head struct {
			ID string `json:"$id"`
		}
		if err := json.Unmarshal([]byte(str), &head); err != nil {
			return nil, fmt.Errorf("parse schema: %w", err)
		}
		if head.ID == "" {
			return nil, fmt.Errorf("schema without $id: %s", str)
		}

		loader := gojsonschema.NewSchemaLoader()
		for _, ref := range refs {
			if err := loader.AddSchemas(gojsonschema.NewStringLoader(ref)); err != nil {
				return nil, fmt.Errorf("add ref: %w", err)
			}
		}
		compiled, err := loader.Compile(gojsonschema.NewStringLoader(str))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", head.ID, err)
		}
		v.schemas[head.ID] = compiled
	}
	return v, nil
}

// Validate checks the raw JSON document against schemaID. A mismatch yields
// an *Error listing the offending fields.
func (v *Validator) Validate(document []byte, schemaID string) error {
	schema, ok := v.schemas[schemaID]
	if !ok {
		return fmt.Errorf("unknown schema %s", schemaID)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &Error{Fields: []FieldError{{Field: "body", Message: "must be a JSON object"}}}
	}
	if result.Valid() {
		return nil
	}

	fields := make([]FieldError, 0, len(result.Errors()))
	seen := map[string]bool{}
	for _, e := range result.Errors() {
		fe := FieldError{Field: fieldName(e), Message: e.Description()}
		if key := fe.Field + "\x00" + fe.Message; !seen[key] {
			seen[key] = true
			fields = append(fields, fe)
		}
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &Error{Fields: fields}
}

func fieldName(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() == "required" {
		if property, ok := e.Details()["property"].(string); ok {
			if field == gojsonschema.STRING_CONTEXT_ROOT {
				return property
			}
			return field + "." + property
		}
	}
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		return "body"
	}
	return field
}

func readDir(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := entry.Name()
		if dir != "." {
			name = dir + "/" + name
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, string(data))
	}
	return out, nil
}
