package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// SpecTypeAttribute is the system attribute that types uploaded documents.
const SpecTypeAttribute = "system-spec-type"

// VersionRef identifies one version of one API in the registry.
type VersionRef struct {
	APIID     string `json:"api_id"`
	VersionID string `json:"version_id"`
}

func (r VersionRef) String() string {
	return r.APIID + "/" + r.VersionID
}

// Registration describes the API and version to record.
type Registration struct {
	APIID              string
	VersionID          string
	DisplayName        string
	Description        string
	VersionDisplayName string

	// Spec, when set, is uploaded under the version.
	Spec *SpecUpload
}

// SpecUpload is a document attached to a version.
type SpecUpload struct {
	ID          string
	DisplayName string
	MimeType    string
	Contents    []byte
}

// Register creates the API and the version if they do not exist yet and
// returns their stable reference. Existing records are left untouched.
func (c *Client) Register(ctx context.Context, reg Registration) (VersionRef, error) {
	if reg.APIID == "" || reg.VersionID == "" {
		return VersionRef{}, errors.New("register: api id and version id are required")
	}
	ref := VersionRef{APIID: reg.APIID, VersionID: reg.VersionID}

	display := reg.DisplayName
	if display == "" {
		display = reg.APIID
	}
	apiBody := map[string]any{"displayName": display}
	if reg.Description != "" {
		apiBody["description"] = reg.Description
	}
	if err := c.create(ctx, "create api", c.locationPath()+"/apis", "apiId", reg.APIID, apiBody); err != nil {
		return VersionRef{}, err
	}

	vDisplay := reg.VersionDisplayName
	if vDisplay == "" {
		vDisplay = reg.VersionID
	}
	if err := c.create(ctx, "create version", c.apiPath(reg.APIID)+"/versions", "versionId", reg.VersionID,
		map[string]any{"displayName": vDisplay}); err != nil {
		return VersionRef{}, err
	}

	if reg.Spec != nil {
		if err := c.uploadSpec(ctx, ref, reg.Spec); err != nil {
			return VersionRef{}, err
		}
	}
	return ref, nil
}

func (c *Client) uploadSpec(ctx context.Context, ref VersionRef, spec *SpecUpload) error {
	if spec.ID == "" {
		return errors.New("upload spec: spec id is required")
	}
	mime := spec.MimeType
	if mime == "" {
		mime = "application/yaml"
	}
	display := spec.DisplayName
	if display == "" {
		display = spec.ID
	}

	body := map[string]any{
		"displayName": display,
		"specType": map[string]any{
			"attribute": c.AttributeName(SpecTypeAttribute),
			"enumValues": enumValues{
				Values: []AllowedValue{{ID: "openapi"}},
			},
		},
		"contents": map[string]string{
			"contents": base64.StdEncoding.EncodeToString(spec.Contents),
			"mimeType": mime,
		},
	}
	return c.create(ctx, "upload spec", c.versionPath(ref)+"/specs", "specId", spec.ID, body)
}

// create POSTs to a collection with the child id as a query parameter.
func (c *Client) create(ctx context.Context, op, collection, idParam, id string, body any) error {
	resp, err := c.send(ctx, op, http.MethodPost, collection, url.Values{idParam: {id}}, body)
	if err != nil {
		return err
	}
	result, ok := createOutcome(resp)
	if !ok {
		return resp.statusError(op)
	}
	slog.Debug(fmt.Sprintf("registry: %s", op), "id", id, "result", result.String())
	return nil
}
