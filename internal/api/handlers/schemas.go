package handlers

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const leadPatchSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": false,
  "properties": {
    "company_name":     {"type": "string", "minLength": 1},
    "category":         {"type": ["string", "null"]},
    "city":             {"type": ["string", "null"]},
    "zip":              {"type": "string"},
    "website":          {"type": ["string", "null"]},
    "email":            {"type": ["string", "null"]},
    "contact_form_url": {"type": ["string", "null"]},
    "summary":          {"type": ["string", "null"]},
    "notes":            {"type": ["string", "null"]},
    "first_name":       {"type": ["string", "null"]},
    "source_url":       {"type": ["string", "null"]},
    "status": {
      "enum": ["Not Contacted", "Email 1 Sent", "Email 2 Sent", "Email 3 Sent", "Email 4 Sent",
               "Replied", "Not Fit", "Do Not Contact"]
    },
    "last_contacted":   {"type": ["string", "null"]},
    "next_follow_up":   {"type": ["string", "null"]},
    "reply_type":       {"type": ["string", "null"]}
  }
}`

const dealStageEnum = `{"enum": ["Discovery", "Proposal", "Closed Won", "Closed Lost"]}`

const dealCreateSchema = `{
  "type": "object",
  "properties": {
    "lead_id":      {"type": ["string", "null"]},
    "company_name": {"type": ["string", "null"]},
    "stage":        ` + dealStageEnum + `,
    "value":        {"type": "number", "minimum": 0},
    "notes":        {"type": ["string", "null"]}
  }
}`

const dealPatchSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "lead_id":      {"type": ["string", "null"]},
    "company_name": {"type": "string", "minLength": 1},
    "stage":        ` + dealStageEnum + `,
    "value":        {"type": "number", "minimum": 0},
    "notes":        {"type": "string"}
  }
}`

const contactSchema = `{
  "type": "object",
  "properties": {
    "full_name":    {"type": ["string", "null"]},
    "email":        {"type": ["string", "null"]},
    "phone":        {"type": ["string", "null"]},
    "company_name": {"type": ["string", "null"]},
    "interest":     {"type": ["string", "null"]},
    "message":      {"type": ["string", "null"]},
    "source":       {"type": ["string", "null"]}
  }
}`

const sendSchema = `{
  "type": "object",
  "properties": {
    "lead_id":  {"type": ["string", "null"]},
    "template": {"type": ["string", "null"]}
  }
}`

const resendWebhookSchema = `{
  "type": "object",
  "required": ["type", "data"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "data": {
      "type": "object",
      "properties": {"email_id": {"type": "string"}}
    }
  }
}`

const sendGridWebhookSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["event"],
    "properties": {
      "event":         {"type": "string"},
      "sg_message_id": {"type": "string"},
      "email":         {"type": "string"}
    }
  }
}`

var (
	leadPatchValidator       = mustCompileSchema("lead_patch.json", leadPatchSchema)
	dealCreateValidator      = mustCompileSchema("deal_create.json", dealCreateSchema)
	dealPatchValidator       = mustCompileSchema("deal_patch.json", dealPatchSchema)
	contactValidator         = mustCompileSchema("contact.json", contactSchema)
	sendValidator            = mustCompileSchema("send.json", sendSchema)
	resendWebhookValidator   = mustCompileSchema("resend_webhook.json", resendWebhookSchema)
	sendGridWebhookValidator = mustCompileSchema("sendgrid_webhook.json", sendGridWebhookSchema)
)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(src)))
	if err != nil {
		panic(fmt.Sprintf("parse schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// validateJSON parses body and checks it against schema.
func validateJSON(schema *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse body: %w", err)
	}
	return schema.Validate(inst)
}
