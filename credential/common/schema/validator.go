package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks the structure of a JSON value against a JSON schema.
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewValidator compiles a JSON schema.
func NewValidator(name, schemaJSON string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}

	return &Validator{name: name, schema: s}, nil
}

// MustValidator is like NewValidator but panics on an invalid schema.
func MustValidator(name, schemaJSON string) *Validator {
	v, err := NewValidator(name, schemaJSON)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate validates a Go JSON value (maps, slices, scalars).
func (v *Validator) Validate(value interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", v.name, err)
	}

	if !result.Valid() {
		var errMsgs []string
		for _, desc := range result.Errors() {
			errMsgs = append(errMsgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}

		return fmt.Errorf("invalid %s: %s", v.name, strings.Join(errMsgs, "; "))
	}

	return nil
}

// Built-in validators.
var (
	DocumentValidator     = MustValidator("document", documentSchema)
	CredentialValidator   = MustValidator("credential", credentialSchema)
	PresentationValidator = MustValidator("presentation", presentationSchema)
	TicketValidator       = MustValidator("transfer ticket", ticketSchema)
)

const proofSchema = `{
	"type": "object",
	"required": ["verificationMethod", "signature"],
	"properties": {
		"type": {"type": "string"},
		"created": {"type": "string"},
		"verificationMethod": {"type": "string", "minLength": 1},
		"signature": {"type": "string", "minLength": 1}
	}
}`

const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "expires", "proof"],
	"properties": {
		"@context": {"type": ["string", "array"]},
		"id": {"type": "string", "minLength": 1},
		"controller": {"type": ["string", "array"], "items": {"type": "string"}},
		"multisig": {"type": "string"},
		"publicKey": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "controller", "publicKeyBase58"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"controller": {"type": "string", "minLength": 1},
					"publicKeyBase58": {"type": "string", "minLength": 1}
				}
			}
		},
		"authentication": {"type": "array", "items": {"type": "string"}},
		"authorization": {"type": "array", "items": {"type": "string"}},
		"verifiableCredential": {"type": "array", "items": {"type": "object"}},
		"service": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type", "serviceEndpoint"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"serviceEndpoint": {"type": "string", "minLength": 1}
				}
			}
		},
		"expires": {"type": "string"},
		"proof": {
			"oneOf": [
				{"$ref": "#/definitions/proof"},
				{"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/proof"}}
			]
		}
	},
	"definitions": {
		"proof": {
			"type": "object",
			"required": ["creator", "signatureValue"],
			"properties": {
				"type": {"type": "string"},
				"created": {"type": "string"},
				"creator": {"type": "string", "minLength": 1},
				"signatureValue": {"type": "string", "minLength": 1}
			}
		}
	}
}`

const credentialSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "type", "issuanceDate", "credentialSubject", "proof"],
	"properties": {
		"@context": {"type": ["string", "array"]},
		"id": {"type": "string", "minLength": 1},
		"type": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"issuer": {"type": "string", "minLength": 1},
		"issuanceDate": {"type": "string"},
		"expirationDate": {"type": "string"},
		"credentialSubject": {"type": "object"},
		"proof": ` + proofSchema + `
	}
}`

const presentationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "holder", "created", "proof"],
	"properties": {
		"@context": {"type": ["string", "array"]},
		"id": {"type": "string", "minLength": 1},
		"type": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"holder": {"type": "string", "minLength": 1},
		"created": {"type": "string"},
		"verifiableCredential": {"type": "array", "items": {"type": "object"}},
		"proof": {
			"type": "object",
			"required": ["verificationMethod", "nonce", "realm", "signature"],
			"properties": {
				"type": {"type": "string"},
				"verificationMethod": {"type": "string", "minLength": 1},
				"realm": {"type": "string"},
				"nonce": {"type": "string"},
				"signature": {"type": "string", "minLength": 1}
			}
		}
	}
}`

const ticketSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "to", "txid", "proof"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"to": {"type": "string", "minLength": 1},
		"txid": {"type": "string", "minLength": 1},
		"proof": {
			"oneOf": [
				` + proofSchema + `,
				{"type": "array", "minItems": 1, "items": ` + proofSchema + `}
			]
		}
	}
}`
