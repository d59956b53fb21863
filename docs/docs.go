// Package docs registers the OpenAPI description of the JSON API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/api/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Current session state",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.SessionResponse"}}}
            }
        },
        "/api/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Password login",
                "parameters": [{"in": "body", "name": "credentials", "required": true, "schema": {"$ref": "#/definitions/cmd.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        },
        "/api/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Logout",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.SessionResponse"}}}
            }
        },
        "/api/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Register a user",
                "parameters": [{"in": "body", "name": "form", "required": true, "schema": {"$ref": "#/definitions/auth.RegistrationForm"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/cmd.RegisterResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        },
        "/api/password-strength": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Score a password",
                "parameters": [{"in": "body", "name": "password", "required": true, "schema": {"$ref": "#/definitions/cmd.StrengthRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.StrengthResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        },
        "/api/oauth/url": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Discord authorization URL",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/api/sales": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Catalog"],
                "summary": "Record a sale",
                "parameters": [{"in": "body", "name": "sale", "required": true, "schema": {"$ref": "#/definitions/catalog.Sale"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/catalog.Sale"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        },
        "/api/audit": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Search the audit log",
                "parameters": [
                    {"in": "query", "name": "start_date", "type": "string"},
                    {"in": "query", "name": "end_date", "type": "string"},
                    {"in": "query", "name": "username", "type": "string"},
                    {"in": "query", "name": "action", "type": "string"},
                    {"in": "query", "name": "scope", "type": "string"},
                    {"in": "query", "name": "success", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.AuditResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        },
        "/api/audit/rotate": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "Archive and prune the audit log",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cmd.RotationResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/cmd.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "auth.RegistrationForm": {
            "type": "object",
            "properties": {
                "fullname": {"type": "string"},
                "email": {"type": "string"},
                "username": {"type": "string"},
                "password": {"type": "string"},
                "confirmPassword": {"type": "string"},
                "terms": {"type": "boolean"}
            }
        },
        "auth.Session": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "role": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "loginTime": {"type": "string"},
                "loginMethod": {"type": "string"}
            }
        },
        "catalog.Sale": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "date": {"type": "string"},
                "customerName": {"type": "string"},
                "email": {"type": "string"},
                "package": {"type": "string"},
                "amount": {"type": "number"}
            }
        },
        "cmd.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "reason": {"type": "string"},
                "field": {"type": "string"}
            }
        },
        "cmd.LoginRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "cmd.RegisterResponse": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "name": {"type": "string"}, "message": {"type": "string"}}
        },
        "cmd.SessionResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "session": {"$ref": "#/definitions/auth.Session"},
                "expires_at": {"type": "string"},
                "redirect": {"type": "string"}
            }
        },
        "cmd.StrengthRequest": {
            "type": "object",
            "properties": {"password": {"type": "string"}}
        },
        "cmd.AuditResponse": {
            "type": "object",
            "properties": {
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "count": {"type": "integer"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/auth.AuditEntry"}}
            }
        },
        "auth.AuditEntry": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string"},
                "scope": {"type": "string"},
                "username": {"type": "string"},
                "role": {"type": "string"},
                "action": {"type": "string"},
                "method": {"type": "string"},
                "success": {"type": "boolean"},
                "reason": {"type": "string"},
                "ip_address": {"type": "string"},
                "user_agent": {"type": "string"}
            }
        },
        "cmd.RotationResponse": {
            "type": "object",
            "properties": {
                "compressed": {"type": "integer"},
                "archives_written": {"type": "integer"},
                "archives_removed": {"type": "integer"},
                "logs_removed": {"type": "integer"}
            }
        },
        "cmd.StrengthResponse": {
            "type": "object",
            "properties": {"score": {"type": "integer"}, "label": {"type": "string"}, "acceptable": {"type": "boolean"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MUX Site API",
	Description:      "Session, registration and admin catalog API of the MUX site.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
