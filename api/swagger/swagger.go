package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Seating API",
        "description": "Classroom seat assignment with front/back preferences and separation pairs",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Seating", "description": "Proposals, roster import and saved plans"},
        {"name": "Seating Exports", "description": "Asynchronous CSV, PDF and XLSX chart exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/seating/generate": {
            "post": {
                "tags": ["Seating"],
                "summary": "Generate a seating proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateSeatingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid grid, roster or pairs", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Capacity exceeded, allocation exhausted or step budget exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/proposals/{id}": {
            "get": {
                "tags": ["Seating"],
                "summary": "Get a seating proposal",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Proposal not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/proposals/{id}/regenerate": {
            "post": {
                "tags": ["Seating"],
                "summary": "Re-run a proposal with another seed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RegenerateSeatingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Proposal not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/roster/import": {
            "post": {
                "tags": ["Seating"],
                "summary": "Parse a CSV or XLSX class roster",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed roster; details list each bad row", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/plans": {
            "get": {
                "tags": ["Seating"],
                "summary": "List saved seating plans",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Seating"],
                "summary": "Save a proposal as a class seating plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveSeatingPlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal breaks separation rules", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/plans/{id}": {
            "get": {
                "tags": ["Seating"],
                "summary": "Get a saved seating plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Seating"],
                "summary": "Delete a saved seating plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/plans/{id}/exports": {
            "post": {
                "tags": ["Seating Exports"],
                "summary": "Queue a seating chart export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSeatingExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/exports/{id}": {
            "get": {
                "tags": ["Seating Exports"],
                "summary": "Get export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seating/exports/download": {
            "get": {
                "tags": ["Seating Exports"],
                "summary": "Download a finished export via signed token",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated request, allocation and export counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SeatingStudent": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "gender": {"type": "string", "enum": ["M", "F"]},
                "special": {"type": "array", "items": {"type": "string", "enum": ["vision", "height", "hearing"]}}
            },
            "required": ["id", "gender"]
        },
        "SeparationPair": {
            "type": "object",
            "properties": {
                "a": {"type": "integer"},
                "b": {"type": "integer"}
            },
            "required": ["a", "b"]
        },
        "SeatPosition": {
            "type": "object",
            "properties": {
                "row": {"type": "integer"},
                "col": {"type": "integer"}
            }
        },
        "GenerateSeatingRequest": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"},
                "rows": {"type": "integer"},
                "cols": {"type": "integer"},
                "students": {"type": "array", "items": {"$ref": "#/definitions/SeatingStudent"}},
                "pairs": {"type": "array", "items": {"$ref": "#/definitions/SeparationPair"}},
                "seed": {"type": "integer", "format": "int64"},
                "order": {"type": "array", "items": {"$ref": "#/definitions/SeatPosition"}}
            },
            "required": ["rows", "cols", "students"]
        },
        "RegenerateSeatingRequest": {
            "type": "object",
            "properties": {
                "seed": {"type": "integer", "format": "int64"}
            }
        },
        "SaveSeatingPlanRequest": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string"},
                "classId": {"type": "string"},
                "name": {"type": "string"},
                "allowViolations": {"type": "boolean"}
            },
            "required": ["proposalId", "classId", "name"]
        },
        "CreateSeatingExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf", "xlsx"]}
            },
            "required": ["format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
