package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
)

// Scope is the resource kind an attribute applies to.
type Scope string

const (
	ScopeAPI     Scope = "API"
	ScopeVersion Scope = "VERSION"
)

// DataType is the attribute value type. Only enums are used here.
type DataType string

const DataTypeEnum DataType = "ENUM"

// AllowedValue is one member of an enum attribute.
type AllowedValue struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

// Definition is an attribute definition. It is created once per registry
// location and never mutated afterwards.
type Definition struct {
	// Name is the server-assigned resource name; empty on create.
	Name string `json:"name,omitempty"`
	// ID is the stable attribute id, carried in the attributeId query
	// parameter rather than the body.
	ID            string         `json:"-"`
	DisplayName   string         `json:"displayName"`
	Description   string         `json:"description,omitempty"`
	Scope         Scope          `json:"scope"`
	DataType      DataType       `json:"dataType"`
	AllowedValues []AllowedValue `json:"allowedValues"`
	Cardinality   int            `json:"cardinality"`
}

// Allows reports whether id is one of the definition's allowed values.
func (d *Definition) Allows(id string) bool {
	for _, v := range d.AllowedValues {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Version is the subset of a registry version record used here. Attribute
// entries are kept raw so entries this tool does not own round-trip
// unchanged.
type Version struct {
	Name        string                     `json:"name,omitempty"`
	DisplayName string                     `json:"displayName,omitempty"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
}

type enumValues struct {
	Values []AllowedValue `json:"values"`
}

// attributeValues is one entry of a version's attribute map.
type attributeValues struct {
	Attribute  string      `json:"attribute,omitempty"`
	EnumValues *enumValues `json:"enumValues,omitempty"`
}

// GetDefinition looks an attribute up by id. A missing attribute is
// reported as (nil, nil).
func (c *Client) GetDefinition(ctx context.Context, attributeID string) (*Definition, error) {
	const op = "get attribute"
	resp, err := c.send(ctx, op, http.MethodGet, c.AttributeName(attributeID), nil, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.notFound():
		return nil, nil
	case !resp.ok():
		return nil, resp.statusError(op)
	}

	var def Definition
	if err := resp.decode(op, &def); err != nil {
		return nil, err
	}
	def.ID = attributeID
	if def.Name != "" {
		def.ID = path.Base(def.Name)
	}
	return &def, nil
}

// EnsureDefinition creates def unless it already exists. Repeated and
// concurrent calls converge: the first creator gets Created, everyone else
// AlreadyExists.
func (c *Client) EnsureDefinition(ctx context.Context, def Definition) (EnsureResult, error) {
	const op = "create attribute"
	if def.ID == "" {
		return 0, fmt.Errorf("%s: attribute id is required", op)
	}

	existing, err := c.GetDefinition(ctx, def.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		slog.Debug("registry: attribute exists", "attribute", def.ID)
		return AlreadyExists, nil
	}

	body := def
	body.Name = ""
	resp, err := c.send(ctx, op, http.MethodPost, c.locationPath()+"/attributes",
		url.Values{"attributeId": {def.ID}}, body)
	if err != nil {
		return 0, err
	}

	result, ok := createOutcome(resp)
	if !ok {
		return 0, resp.statusError(op)
	}
	slog.Info("registry: attribute ensured", "attribute", def.ID, "result", result.String())
	return result, nil
}

// GetVersion reads a version record.
func (c *Client) GetVersion(ctx context.Context, ref VersionRef) (*Version, error) {
	const op = "get version"
	resp, err := c.send(ctx, op, http.MethodGet, c.versionPath(ref), nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.statusError(op)
	}

	var v Version
	if err := resp.decode(op, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Assign sets the attribute on a version to the single value valueID,
// replacing whatever it held before.
//
// The registry replaces the whole attribute map for updateMask=attributes,
// so the current map is read first and written back with only this entry
// changed. Concurrent writers to the same version are last-write-wins.
func (c *Client) Assign(ctx context.Context, ref VersionRef, attributeID, valueID string) error {
	const op = "assign attribute"
	if valueID == "" {
		return fmt.Errorf("%s: value id is required", op)
	}

	current, err := c.GetVersion(ctx, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	attrs := make(map[string]json.RawMessage, len(current.Attributes)+1)
	for k, v := range current.Attributes {
		attrs[k] = v
	}

	name := c.AttributeName(attributeID)
	entry, err := json.Marshal(attributeValues{
		EnumValues: &enumValues{Values: []AllowedValue{{ID: valueID}}},
	})
	if err != nil {
		return fmt.Errorf("%s: encode value: %w", op, err)
	}
	attrs[name] = entry

	body := map[string]any{"attributes": attrs}
	resp, err := c.send(ctx, op, http.MethodPatch, c.versionPath(ref),
		url.Values{"updateMask": {"attributes"}}, body)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.statusError(op)
	}

	slog.Info("registry: attribute assigned",
		"api", ref.APIID, "version", ref.VersionID, "attribute", attributeID, "value", valueID)
	return nil
}

// ReadAssignment returns the enum value ids assigned to attributeID on the
// version, or nil when the attribute is unset.
func (c *Client) ReadAssignment(ctx context.Context, ref VersionRef, attributeID string) ([]string, error) {
	v, err := c.GetVersion(ctx, ref)
	if err != nil {
		return nil, err
	}
	return EnumIDs(v, c.AttributeName(attributeID))
}

// EnumIDs extracts enum value ids for the named attribute from a version.
func EnumIDs(v *Version, attributeName string) ([]string, error) {
	raw, ok := v.Attributes[attributeName]
	if !ok {
		return nil, nil
	}
	var av attributeValues
	if err := json.Unmarshal(raw, &av); err != nil {
		return nil, fmt.Errorf("decode attribute %s: %w", attributeName, err)
	}
	if av.EnumValues == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(av.EnumValues.Values))
	for _, val := range av.EnumValues.Values {
		ids = append(ids, val.ID)
	}
	return ids, nil
}
